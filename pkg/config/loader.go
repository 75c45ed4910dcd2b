package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds process-level settings sourced from the environment. The
// execution controls live in ControlSnapshot; these are only the plumbing
// knobs that do not affect gating decisions.
type Config struct {
	LogLevel     string
	EvidenceDir  string
	DatabasePath string
	RedisAddr    string
	ControlsPath string
}

// Load reads process configuration from environment variables, with local
// defaults suitable for development.
func Load() *Config {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	evidenceDir := os.Getenv("EVIDENCE_DIR")
	if evidenceDir == "" {
		evidenceDir = "./evidence"
	}

	dbPath := os.Getenv("KERNEL_DB_PATH")
	if dbPath == "" {
		dbPath = "./kernel.db"
	}

	return &Config{
		LogLevel:     logLevel,
		EvidenceDir:  evidenceDir,
		DatabasePath: dbPath,
		RedisAddr:    os.Getenv("REDIS_ADDR"),
		ControlsPath: os.Getenv("CONTROLS_PATH"),
	}
}

// LoadControls reads and validates a control snapshot from a YAML file.
func LoadControls(path string) (*ControlSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load controls %q: %w", path, err)
	}

	var snapshot ControlSnapshot
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("parse controls %q: %w", path, err)
	}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// DefaultControls is the conservative baseline used when no controls file is
// configured: small caps, an hour of cooldown, and an empty allow-list that
// denies every action until an operator publishes a real snapshot.
func DefaultControls() *ControlSnapshot {
	snapshot := &ControlSnapshot{
		Version:          "1.0.0",
		KillSwitch:       false,
		AllowedActions:   nil,
		MaxItemsPerRun:   5,
		MaxDailyPerScope: 20,
		CooldownMinutes:  60,
	}
	// Validate only applies defaults here; the literal above is well formed.
	_ = snapshot.Validate()
	return snapshot
}
