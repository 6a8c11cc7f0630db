package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/index"
	"github.com/codescout/codescout/internal/lang"
	"github.com/codescout/codescout/internal/scanner"
	"github.com/codescout/codescout/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var workspace string
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Index a source tree and keep it fresh as files change",
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

			// Initial full pass so the watcher starts from a complete index.
			files, err := scanner.New(scanner.Options{}, app.logger).Scan(root)
			if err != nil {
				return err
			}
			changes := make([]index.FileChange, len(files))
			for i, f := range files {
				changes[i] = index.FileChange{Path: f.Path, Content: f.Content, Action: index.ActionUpsert}
			}
			result := app.service.Index(cmd.Context(), workspace, changes)
			if !result.Success {
				return fmt.Errorf("initial indexing failed: %s", result.Message)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (workspace %q, %d files indexed)\n",
				root, workspace, len(files))

			w, err := watcher.New(watcher.Options{DebounceWindow: debounce}, app.logger)
			if err != nil {
				return err
			}
			defer func() { _ = w.Stop() }()

			go func() {
				if err := w.Start(cmd.Context(), root); err != nil && cmd.Context().Err() == nil {
					app.logger.Error("watcher stopped", slog.String("error", err.Error()))
				}
			}()

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case batch, ok := <-w.Batches():
					if !ok {
						return nil
					}
					applyBatch(cmd.Context(), app, workspace, root, batch)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", "", "Workspace id (default: derived from path)")
	cmd.Flags().DurationVar(&debounce, "debounce", 200*time.Millisecond, "Event coalescing window")
	return cmd
}

// applyBatch converts watcher events to file changes and indexes them.
func applyBatch(ctx context.Context, app *app, workspace, root string, batch []watcher.FileEvent) {
	var changes []index.FileChange
	for _, ev := range batch {
		if lang.Detect(ev.Path) == "" {
			continue
		}
		switch ev.Operation {
		case watcher.OpDelete:
			changes = append(changes, index.FileChange{Path: ev.Path, Action: index.ActionDelete})
		default:
			content, err := os.ReadFile(filepath.Join(root, ev.Path))
			if err != nil {
				// Deleted or unreadable between event and read.
				changes = append(changes, index.FileChange{Path: ev.Path, Action: index.ActionDelete})
				continue
			}
			changes = append(changes, index.FileChange{
				Path:    ev.Path,
				Content: string(content),
				Action:  index.ActionUpsert,
			})
		}
	}
	if len(changes) == 0 {
		return
	}

	result := app.service.Index(ctx, workspace, changes)
	if !result.Success {
		app.logger.Warn("incremental index failed", slog.String("message", result.Message))
		return
	}
	app.logger.Info("applied file changes",
		slog.Int("changes", len(changes)),
		slog.Int("added", result.Added),
		slog.Int("removed", result.Removed))
}
