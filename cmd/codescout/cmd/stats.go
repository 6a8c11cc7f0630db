package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/telemetry"
)

func newStatsCmd() *cobra.Command {
	var asJSON bool
	var terms int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recorded search metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			if app.metrics == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Telemetry is disabled. Enable it in the config to collect search metrics.")
				return nil
			}

			snap, err := app.metrics.Snapshot(cmd.Context(), terms)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total searches:      %d\n", snap.TotalSearches)
			fmt.Fprintf(out, "Zero-result queries: %d\n", snap.ZeroResultCount)
			if len(snap.TopTerms) > 0 {
				fmt.Fprintln(out, "Top terms:")
				for _, tc := range snap.TopTerms {
					fmt.Fprintf(out, "  %-24s %d\n", tc.Term, tc.Count)
				}
			}
			if len(snap.LatencyDistribution) > 0 {
				fmt.Fprintln(out, "Latency distribution:")
				for _, bucket := range []string{"p10", "p50", "p100", "p500", "p1000"} {
					if count, ok := snap.LatencyDistribution[telemetry.LatencyBucket(bucket)]; ok {
						fmt.Fprintf(out, "  %-6s %d\n", bucket, count)
					}
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit metrics as JSON")
	cmd.Flags().IntVar(&terms, "terms", 10, "Number of top query terms to show")
	return cmd
}
