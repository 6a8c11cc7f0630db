package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/store"
)

func newSearchCmd() *cobra.Command {
	var workspace string
	var topK int
	var languages []string
	var globs []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search an indexed workspace",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if workspace == "" {
				workspace = defaultWorkspaceID(".")
			}
			query := strings.Join(args, " ")

			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			var filters *store.SearchFilters
			if len(languages) > 0 || len(globs) > 0 {
				filters = &store.SearchFilters{Languages: languages, PathGlobs: globs}
			}

			resp := app.service.Search(cmd.Context(), workspace, query, topK, filters)
			if !resp.Success {
				return fmt.Errorf("search failed: %s", resp.Message)
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(resp.Hits)
			}

			if len(resp.Hits) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No results.")
				return nil
			}
			for i, hit := range resp.Hits {
				md := hit.Metadata
				name := md.SymbolName
				if name == "" {
					name = "(block)"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%2d. %.3f  %s:%d-%d  %s\n",
					i+1, hit.Score, md.FilePath, md.StartLine, md.EndLine, name)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace id")
	cmd.Flags().IntVarP(&topK, "limit", "n", 10, "Maximum number of results")
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "Filter results to these languages")
	cmd.Flags().StringSliceVar(&globs, "path", nil, "Filter results to these path globs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit results as JSON")
	return cmd
}
