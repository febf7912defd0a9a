package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/davidahmann/pdogate/internal/cro"
)

func (c *cli) croCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "cro", Short: "Inspect the CRO risk policy"}
	cmd.AddCommand(c.croEvalCmd())
	return cmd
}

func (c *cli) croEvalCmd() *cobra.Command {
	var baseBand string
	cmd := &cobra.Command{
		Use:   "eval <risk-metadata.yaml>",
		Short: "Evaluate risk metadata against the threshold policy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meta, err := cro.LoadMetadata(args[0])
			if err != nil {
				return err
			}
			res := cro.NewEvaluator(nil).Evaluate(&meta)

			var override string
			if baseBand != "" {
				base, ok := cro.ParseBand(baseBand)
				if !ok {
					return fmt.Errorf("--band must be LOW, MEDIUM, HIGH or CRITICAL")
				}
				override = string(cro.ApplyOverride(base, res))
			}

			if c.jsonOutput() {
				out := map[string]any{"result": res, "blocks_execution": res.BlocksExecution()}
				if override != "" {
					out["effective_band"] = override
				}
				if err := c.printJSON(out); err != nil {
					return err
				}
				return blockedIf(res.BlocksExecution())
			}

			c.verdict(!res.BlocksExecution(), string(res.Decision))
			tw := table.NewWriter()
			tw.SetOutputMirror(c.stdout)
			tw.AppendRow(table.Row{"Reasons", strings.Join(res.Reasons, ", ")})
			tw.AppendRow(table.Row{"Risk band", res.OriginalRiskBand})
			if res.Snapshot != nil {
				tw.AppendRow(table.Row{"Decision ID", res.Snapshot.DecisionID})
			}
			tw.AppendRow(table.Row{"Policy", res.PolicyVersion})
			if override != "" {
				tw.AppendRow(table.Row{"Effective band", override})
			}
			tw.Render()
			return blockedIf(res.BlocksExecution())
		},
	}
	cmd.Flags().StringVar(&baseBand, "band", "", "base risk band to apply the decision override to")
	return cmd
}
