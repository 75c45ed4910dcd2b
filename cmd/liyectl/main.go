package main

import (
	"fmt"
	"io"
	"os"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint, split out for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "replay":
		return runReplayCmd(args[2:], stdout, stderr)
	case "explain":
		return runExplainCmd(args[2:], stdout, stderr)
	case "execute":
		return runExecuteCmd(args[2:], stdout, stderr)
	case "plan-verify":
		return runPlanVerifyCmd(args[2:], stdout, stderr)
	case "controls":
		return runControlsCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "liyectl - decision kernel tooling")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  liyectl replay   --package <file>      Verify a stored evidence package")
	_, _ = fmt.Fprintln(w, "  liyectl replay   --trace <id>          Verify a package from $EVIDENCE_DIR")
	_, _ = fmt.Fprintln(w, "  liyectl explain  --observation <file>  Rank root causes for an observation")
	_, _ = fmt.Fprintln(w, "  liyectl execute  --proposal <file>     Gate a proposal (write gate down)")
	_, _ = fmt.Fprintln(w, "  liyectl plan-verify --plan <file>      Check a plan's no-real-write guarantee")
	_, _ = fmt.Fprintln(w, "  liyectl controls --file <file>         Validate and hash a control snapshot")
	_, _ = fmt.Fprintln(w, "")
}
