package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// planCommand creates the plan command.
func (c *CLI) planCommand() *cobra.Command {
	var (
		jsonOut bool
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "plan SYSTEM STAGING",
		Short: "Show the actions that turn SYSTEM into STAGING",
		Long: `Plan diffs two device graph files (JSON or YAML) and prints the actions that
transform the system graph into the staging graph, in commit order.

Devices are matched by sid, so the staging graph should be derived from the
system graph (e.g. an edited copy of a probed graph).`,
		Example: `  storagegraph plan system.yaml staging.yaml
  storagegraph plan system.yaml staging.yaml --json | jq '.steps[].text'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			lhs, rhs, err := loadGraphs(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			runner := c.newRunner(ctx, noCache)
			defer runner.Close()

			summary, cached, err := runner.Summary(ctx, lhs, rhs)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}

			printPlan(summary, cached)
			if len(summary.Steps) > 0 {
				printNewline()
				printNextStep("Commit with", fmt.Sprintf("%s commit %s %s", appName, args[0], args[1]))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the plan as JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}
