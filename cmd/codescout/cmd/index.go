package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/index"
	"github.com/codescout/codescout/internal/scanner"
)

func newIndexCmd() *cobra.Command {
	var workspace string
	var languages []string
	var full bool

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Index a source tree into a workspace",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}
			if workspace == "" {
				workspace = defaultWorkspaceID(root)
			}

			app, err := buildApp()
			if err != nil {
				return err
			}
			defer app.close()

			files, err := scanner.New(scanner.Options{Languages: languages}, app.logger).Scan(root)
			if err != nil {
				return err
			}
			changes := make([]index.FileChange, len(files))
			for i, f := range files {
				changes[i] = index.FileChange{Path: f.Path, Content: f.Content, Action: index.ActionUpsert}
			}

			var result index.IndexResult
			if full {
				result = app.service.Reindex(cmd.Context(), workspace, changes)
			} else {
				result = app.service.Index(cmd.Context(), workspace, changes)
			}
			if !result.Success {
				return fmt.Errorf("indexing failed: %s", result.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d files into workspace %q: %s\n",
				len(files), workspace, result.Message)
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace id (default: derived from path)")
	cmd.Flags().StringSliceVar(&languages, "lang", nil, "Restrict to these languages")
	cmd.Flags().BoolVar(&full, "full", false, "Clear the workspace and rebuild from scratch")
	return cmd
}
