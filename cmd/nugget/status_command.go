package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"nugget/internal/deps"
	"nugget/internal/preflight"
)

// newStatusCommand reports environment readiness: external tool availability
// plus the preflight checks that gate batch runs.
func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check external tools and workspace readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			toolRows := make([][]string, 0, len(statuses))
			missing := false
			for _, status := range statuses {
				state := "ok"
				if !status.Available {
					if status.Optional {
						state = "missing (optional)"
					} else {
						state = "missing"
						missing = true
					}
				}
				toolRows = append(toolRows, []string{
					status.Name,
					status.Command,
					state,
					status.Detail,
				})
			}
			fmt.Fprintln(out, "External tools:")
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status", "Detail"},
				toolRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))

			results := preflight.RunAll(cmd.Context(), cfg)
			checkRows := make([][]string, 0, len(results))
			failed := false
			for _, result := range results {
				state := "pass"
				if !result.Passed {
					state = "fail"
					failed = true
				}
				checkRows = append(checkRows, []string{result.Name, state, result.Detail})
			}
			fmt.Fprintln(out, "Preflight checks:")
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Status", "Detail"},
				checkRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			if missing || failed {
				return fmt.Errorf("environment is not ready")
			}
			fmt.Fprintln(out, "Environment is ready")
			return nil
		},
	}
}
