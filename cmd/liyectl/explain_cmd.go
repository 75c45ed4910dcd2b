package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/liye-os/kernel/pkg/contracts"
	"github.com/liye-os/kernel/pkg/explain"
	"github.com/liye-os/kernel/pkg/playbook"
)

// runExplainCmd implements `liyectl explain`.
//
// Reads an observation JSON file and prints the ranked explanation. An
// unsupported observation type prints the structured deny with the
// supported catalog and exits 1.
//
// Exit codes:
//
//	0 = explanation produced
//	1 = observation type unsupported
//	2 = runtime error
func runExplainCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("explain", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		observationPath string
		playbookDir     string
	)
	cmd.StringVar(&observationPath, "observation", "", "Path to the observation JSON (REQUIRED)")
	cmd.StringVar(&playbookDir, "playbooks", "", "Directory of playbook_*.yaml files (default: built-in set)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if observationPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --observation is required")
		return 2
	}

	data, err := os.ReadFile(observationPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read observation: %v\n", err)
		return 2
	}
	var obs contracts.Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse observation: %v\n", err)
		return 2
	}

	playbooks, err := loadPlaybooks(playbookDir)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: load playbooks: %v\n", err)
		return 2
	}
	registry, err := playbook.NewRegistry(playbooks...)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: build registry: %v\n", err)
		return 2
	}

	outcome, err := explain.NewEngine(registry).Explain(obs)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: explain: %v\n", err)
		return 2
	}

	if outcome.Unsupported != nil {
		out, _ := json.MarshalIndent(outcome.Unsupported, "", "  ")
		_, _ = fmt.Fprintln(stdout, string(out))
		return 1
	}

	out, _ := json.MarshalIndent(outcome.Explanation, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(out))
	return 0
}

func loadPlaybooks(dir string) ([]*playbook.Playbook, error) {
	if dir == "" {
		return playbook.Builtin()
	}
	return playbook.LoadDir(dir)
}
