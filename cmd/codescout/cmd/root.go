// Package cmd provides the CLI commands for codescout.
package cmd

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codescout/codescout/internal/config"
	"github.com/codescout/codescout/internal/embed"
	"github.com/codescout/codescout/internal/index"
	"github.com/codescout/codescout/internal/logging"
	"github.com/codescout/codescout/internal/telemetry"
	"github.com/codescout/codescout/pkg/version"
)

var (
	cfgPath   string
	debugMode bool
)

// NewRootCmd creates the root command for the codescout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "codescout",
		Short: "Semantic code search over local workspaces",
		Long: `Codescout indexes source trees into symbol-aligned chunks, embeds them,
and serves ranked semantic search over the result. Everything runs and
stays local.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetVersionTemplate("codescout version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to config file")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the CLI, wiring signal handling for a clean shutdown.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// app holds the assembled engine shared by the subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	service  *index.Service
	registry *index.Registry
	metrics  *telemetry.Store
	cleanup  func()
}

// buildApp loads configuration and assembles the engine.
func buildApp() (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	level := cfg.Logging.Level
	if debugMode {
		level = "debug"
	}
	logger, logCleanup, err := logging.Setup(logging.Config{
		Level:         level,
		FilePath:      cfg.Logging.File,
		WriteToStderr: debugMode,
	})
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	embedder, err := newEmbedder(cfg)
	if err != nil {
		logCleanup()
		return nil, err
	}

	registry := index.NewRegistry(cfg, embedder, logger)

	var metrics *telemetry.Store
	var recorder index.QueryRecorder
	if cfg.Telemetry.Enabled {
		path := cfg.Telemetry.Path
		if path == "" {
			path = filepath.Join(cfg.DataDir, "telemetry.db")
		}
		if mkErr := os.MkdirAll(filepath.Dir(path), 0o755); mkErr == nil {
			store, openErr := telemetry.Open(path, logger)
			if openErr != nil {
				logger.Warn("telemetry disabled", slog.String("error", openErr.Error()))
			} else {
				metrics = store
				recorder = store
			}
		}
	}

	service := index.NewService(registry, recorder, logger)

	return &app{
		cfg:      cfg,
		logger:   logger,
		service:  service,
		registry: registry,
		metrics:  metrics,
		cleanup:  logCleanup,
	}, nil
}

// close releases the engine, persisting open workspaces.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.registry.Close(ctx); err != nil {
		a.logger.Warn("failed to close registry cleanly", slog.String("error", err.Error()))
	}
	if a.metrics != nil {
		_ = a.metrics.Close()
	}
	a.cleanup()
}

// defaultWorkspaceID derives a stable id from the workspace path.
func defaultWorkspaceID(root string) string {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = root
	}
	sum := sha256.Sum256([]byte(abs))
	return fmt.Sprintf("%s-%s", filepath.Base(abs), hex.EncodeToString(sum[:4]))
}

func newEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var inner embed.Embedder
	switch cfg.Embeddings.Provider {
	case "static":
		inner = embed.NewStaticEmbedder(cfg.Embeddings.Dimensions)
	default:
		dims := cfg.Embeddings.Dimensions
		if dims == 0 {
			dims = embed.DefaultDimensions
		}
		inner = embed.NewHTTPEmbedder(embed.HTTPConfig{
			Endpoint:   cfg.Embeddings.Endpoint,
			Model:      cfg.Embeddings.Model,
			Dimensions: dims,
			Timeout:    time.Duration(cfg.Embeddings.TimeoutSeconds) * time.Second,
			MaxRetries: cfg.Embeddings.MaxRetries,
		})
	}
	if cfg.Embeddings.CacheSize > 0 {
		return embed.NewCachedEmbedder(inner, cfg.Embeddings.CacheSize)
	}
	return inner, nil
}
