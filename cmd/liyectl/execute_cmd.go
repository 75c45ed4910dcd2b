package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/liye-os/kernel/pkg/audit"
	"github.com/liye-os/kernel/pkg/config"
	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/executor"
	"github.com/liye-os/kernel/pkg/gate"
	"github.com/liye-os/kernel/pkg/store"
)

// executeInput is the document the execute command consumes: one proposal
// and the signals it was derived from.
type executeInput struct {
	Proposal contracts.ActionProposal `json:"proposal"`
	Signals  map[string]float64       `json:"signals"`
}

// runExecuteCmd implements `liyectl execute`.
//
// Gates one proposal through the full chain and prints the execution
// result. The CLI always runs with the write gate down, so a proposal that
// clears every gate lands in DRY_RUN, never in a real write. Process
// configuration (controls path, database path, Redis address, log level)
// comes from the environment; --controls overrides CONTROLS_PATH, and with
// neither set the default deny-everything snapshot applies.
//
// Exit codes:
//
//	0 = dry run completed or suggestion recorded
//	1 = proposal denied, blocked, or failed
//	2 = runtime error
func runExecuteCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("execute", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		proposalPath string
		controlsPath string
	)
	cmd.StringVar(&proposalPath, "proposal", "", "Path to the proposal JSON (REQUIRED)")
	cmd.StringVar(&controlsPath, "controls", "", "Control snapshot YAML (default: $CONTROLS_PATH)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if proposalPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --proposal is required")
		return 2
	}

	data, err := os.ReadFile(proposalPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read proposal: %v\n", err)
		return 2
	}
	var input executeInput
	if err := json.Unmarshal(data, &input); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse proposal: %v\n", err)
		return 2
	}

	cfg := config.Load()
	if controlsPath == "" {
		controlsPath = cfg.ControlsPath
	}
	snapshot := config.DefaultControls()
	if controlsPath != "" {
		snapshot, err = config.LoadControls(controlsPath)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 2
		}
	}
	controls, err := config.NewControls(snapshot)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	exec, cleanup, err := buildExecutor(cfg, controls, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	defer cleanup()

	result, err := exec.Execute(context.Background(), input.Proposal, input.Signals)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: execute: %v\n", err)
		return 2
	}

	out, _ := json.MarshalIndent(result, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))

	switch result.Status {
	case contracts.StatusDryRun, contracts.StatusSuggestOnly:
		return 0
	default:
		return 1
	}
}

// buildExecutor assembles the gate chain from process configuration: Redis
// counters when REDIS_ADDR is set, otherwise in-memory; the SQLite outcome
// feed at KERNEL_DB_PATH; audit and logs on stderr at LOG_LEVEL.
func buildExecutor(cfg *config.Config, controls *config.Controls, stderr io.Writer) (*executor.Executor, func(), error) {
	var counters gate.CounterStore
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		counters = gate.NewRedisCounterStore(client, controls.Current().TenantID, nil)
	} else {
		counters = gate.NewMemoryCounterStore(nil)
	}

	db, err := sql.Open("sqlite", cfg.DatabasePath)
	if err != nil {
		return nil, nil, fmt.Errorf("open database %q: %w", cfg.DatabasePath, err)
	}
	feed, err := store.NewSQLiteOutcomeFeed(db)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	writer := refusingWriter{}
	handlers, err := executor.NewRegistry(
		executor.NewPauseKeywordHandler(writer),
		executor.NewNegativeKeywordHandler(writer),
		executor.NewLowerBidHandler(writer),
	)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	auditLog := audit.NewLoggerWithWriter(stderr, controls.Current().TenantID, nil)
	exec := executor.New(controls, gate.DefaultProfiles(), counters, handlers, feed,
		auditLog, logger, false, nil)
	return exec, func() { _ = db.Close() }, nil
}

// logLevel maps the LOG_LEVEL setting onto slog levels. Unknown values
// fall back to info.
func logLevel(name string) slog.Level {
	switch strings.ToUpper(name) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

var errWriteGateDown = errors.New("write gate is down")

// refusingWriter fails every real write. The CLI never enables the write
// gate, so the executor must not reach it; reaching it is a fault, not a
// fallback.
type refusingWriter struct{}

func (refusingWriter) PauseKeyword(context.Context, string, string) error { return errWriteGateDown }
func (refusingWriter) AddNegativeKeyword(context.Context, string, string) error {
	return errWriteGateDown
}
func (refusingWriter) SetBid(context.Context, string, string, float64) error {
	return errWriteGateDown
}
