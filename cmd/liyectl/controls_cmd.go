package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/liye-os/kernel/pkg/config"
)

// runControlsCmd implements `liyectl controls`.
//
// Validates a control snapshot YAML and prints its version and canonical
// content hash, so operators can confirm exactly which controls a running
// kernel has loaded.
//
// Exit codes:
//
//	0 = snapshot valid
//	2 = invalid snapshot or runtime error
func runControlsCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("controls", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var file string
	cmd.StringVar(&file, "file", "", "Path to the control snapshot YAML (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if file == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --file is required")
		return 2
	}

	snapshot, err := config.LoadControls(file)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	hash, err := snapshot.ContentHash()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: hash snapshot: %v\n", err)
		return 2
	}

	_, _ = fmt.Fprintf(stdout, "version:      %s\n", snapshot.Version)
	_, _ = fmt.Fprintf(stdout, "content_hash: %s\n", hash)
	_, _ = fmt.Fprintf(stdout, "kill_switch:  %t\n", snapshot.KillSwitch)
	_, _ = fmt.Fprintf(stdout, "actions:      %d allowed\n", len(snapshot.AllowedActions))
	return 0
}
