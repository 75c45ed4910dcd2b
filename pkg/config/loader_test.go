package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("EVIDENCE_DIR", "")
	t.Setenv("KERNEL_DB_PATH", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("CONTROLS_PATH", "")

	cfg := Load()
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "./evidence", cfg.EvidenceDir)
	assert.Equal(t, "./kernel.db", cfg.DatabasePath)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.ControlsPath)
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("EVIDENCE_DIR", "/var/lib/kernel/evidence")
	t.Setenv("KERNEL_DB_PATH", "/var/lib/kernel/kernel.db")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("CONTROLS_PATH", "/etc/kernel/controls.yaml")

	cfg := Load()
	assert.Equal(t, "DEBUG", cfg.LogLevel)
	assert.Equal(t, "/var/lib/kernel/evidence", cfg.EvidenceDir)
	assert.Equal(t, "/var/lib/kernel/kernel.db", cfg.DatabasePath)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "/etc/kernel/controls.yaml", cfg.ControlsPath)
}
