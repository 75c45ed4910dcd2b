package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/liye-os/kernel/pkg/config"
	"github.com/liye-os/kernel/pkg/replay"
	"github.com/liye-os/kernel/pkg/store"
)

// runReplayCmd implements `liyectl replay`.
//
// Re-verifies a stored evidence package: strict field presence, decision
// well-formedness, and recomputation of the package hash over the
// pre-integrity body. The package comes either from an explicit file via
// --package or from the evidence store at $EVIDENCE_DIR via --trace.
//
// Exit codes:
//
//	0 = decision_match and package_hash_match both true
//	1 = verification failed
//	2 = runtime error
func runReplayCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("replay", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		packagePath string
		traceID     string
		jsonOutput  bool
	)
	cmd.StringVar(&packagePath, "package", "", "Path to the stored evidence package")
	cmd.StringVar(&traceID, "trace", "", "Trace id to load from the evidence store at $EVIDENCE_DIR")
	cmd.BoolVar(&jsonOutput, "json", false, "Output the result as JSON")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if packagePath == "" && traceID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --package is required (or --trace)")
		return 2
	}

	var (
		result *replay.Result
		err    error
	)
	if packagePath != "" {
		result, err = replay.FromFile(packagePath)
	} else {
		result, err = replayFromStore(traceID)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: replay failed: %v\n", err)
		return 2
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(result, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(data))
	} else if result.OK() {
		_, _ = fmt.Fprintf(stdout, "replay PASSED\n")
		_, _ = fmt.Fprintf(stdout, "trace_id:     %s\n", result.TraceID)
		_, _ = fmt.Fprintf(stdout, "package_hash: %s\n", result.StoredHash)
	} else {
		_, _ = fmt.Fprintf(stdout, "replay FAILED\n")
		_, _ = fmt.Fprintf(stdout, "trace_id:           %s\n", result.TraceID)
		_, _ = fmt.Fprintf(stdout, "decision_match:     %t\n", result.DecisionMatch)
		_, _ = fmt.Fprintf(stdout, "package_hash_match: %t\n", result.PackageHashMatch)
		if result.Reason != "" {
			_, _ = fmt.Fprintf(stdout, "reason:             %s\n", result.Reason)
		}
		if result.StoredHash != result.ComputedHash {
			_, _ = fmt.Fprintf(stdout, "stored:             %s\n", result.StoredHash)
			_, _ = fmt.Fprintf(stdout, "computed:           %s\n", result.ComputedHash)
		}
	}

	if !result.OK() {
		return 1
	}
	return 0
}

// replayFromStore loads the package from the configured evidence store and
// replays its canonical JSON form.
func replayFromStore(traceID string) (*replay.Result, error) {
	evidenceStore, err := store.NewFSEvidenceStore(config.Load().EvidenceDir)
	if err != nil {
		return nil, err
	}
	pkg, err := evidenceStore.Get(context.Background(), traceID)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(pkg)
	if err != nil {
		return nil, fmt.Errorf("encode package: %w", err)
	}
	return replay.Replay(data)
}
