package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/liye-os/kernel/pkg/approval"
	"github.com/liye-os/kernel/pkg/contracts"
)

// runPlanVerifyCmd implements `liyectl plan-verify`.
//
// Checks an action-plan JSON document against the no-real-write guarantee:
// with the guarantee set, write_calls_attempted must be 0 and every
// write-class action must be dry-run only.
//
// Exit codes:
//
//	0 = guarantee holds (or plan carries none)
//	1 = guarantee violated
//	2 = runtime error
func runPlanVerifyCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("plan-verify", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var planPath string
	cmd.StringVar(&planPath, "plan", "", "Path to the action plan JSON (REQUIRED)")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if planPath == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --plan is required")
		return 2
	}

	data, err := os.ReadFile(planPath)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: read plan: %v\n", err)
		return 2
	}
	var plan contracts.ActionPlan
	if err := json.Unmarshal(data, &plan); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: parse plan: %v\n", err)
		return 2
	}

	violations := approval.VerifyGuarantee(&plan)
	if len(violations) > 0 {
		_, _ = fmt.Fprintf(stdout, "plan %s: GUARANTEE VIOLATED\n", plan.PlanID)
		for _, v := range violations {
			_, _ = fmt.Fprintf(stdout, "  - %s\n", v)
		}
		return 1
	}

	if plan.Guarantee.NoRealWrite {
		_, _ = fmt.Fprintf(stdout, "plan %s: no-real-write guarantee holds\n", plan.PlanID)
	} else {
		_, _ = fmt.Fprintf(stdout, "plan %s: no guarantee attached\n", plan.PlanID)
	}
	return 0
}
