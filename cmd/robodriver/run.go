package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rahul/robodriver/internal/agent"
	"github.com/rahul/robodriver/internal/observability"
)

func newRunCmd(cfgFile *string) *cobra.Command {
	var maxSteps int

	cmd := &cobra.Command{
		Use:   "run <goal>",
		Short: "Execute one goal in a fresh browser session",
		Example: `  robodriver run "navigate to example.com and report the title"
  robodriver run --max-steps 30 "find the price of a wireless mouse on amazon.com"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			goal := strings.TrimSpace(strings.Join(args, " "))
			if goal == "" {
				return fmt.Errorf("goal must not be empty")
			}

			a, err := newApp(cmd.Context(), *cfgFile)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireModel(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			observability.PrintBanner(out)
			fmt.Fprintf(out, "Goal: %s\n\n", goal)

			res := a.runner.Run(cmd.Context(), goal,
				agent.WithMaxSteps(maxSteps),
				agent.OnStep(func(rec agent.StepRecord) { printStep(out, rec) }),
			)
			observability.RenderBox(out, resultBox(res))
			if !res.Success {
				return fmt.Errorf("goal not achieved")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&maxSteps, "max-steps", 0, "step budget for this run (default from config)")
	return cmd
}

func printStep(w io.Writer, rec agent.StepRecord) {
	mark := "✓"
	if !rec.Outcome.Success {
		mark = "✗"
	}
	fmt.Fprintf(w, "Step %d: %s\n", rec.Step, rec.Action)
	if why := rec.Action.Why(); why != "" {
		fmt.Fprintf(w, "  → %s\n", why)
	}
	fmt.Fprintf(w, "  %s %s\n", mark, rec.Outcome.Message)
}

func resultBox(res *agent.ExecutionResult) observability.Box {
	title := "SUCCESS"
	if !res.Success {
		title = "FAILED"
	}
	lines := []string{
		res.Message,
		fmt.Sprintf("Steps taken: %d", res.StepCount),
		fmt.Sprintf("Run: %s (%dms)", res.RunID, res.ElapsedMS),
	}
	if res.Reason != "" {
		lines = append(lines, fmt.Sprintf("Stopped: %s", res.Reason))
	}
	return observability.Box{Title: title, OK: res.Success, Lines: lines}
}
