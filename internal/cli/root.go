// Package cli defines glance's command line: the interactive browser and the
// headless index and similar commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/five82/glance/internal/app"
	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/config"
	"github.com/five82/glance/internal/logging"
)

type rootFlags struct {
	configPath string
	prefsPath  string
	logLevel   string
}

// NewRootCommand returns the glance command tree.
func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "glance [folder]",
		Short: "Browse a photo library from the terminal",
		Long: `glance is a terminal client for a local photo service. It lists the photos
of a folder, loads their thumbnails on demand, and finds visually similar
photos while the service indexes embeddings in the background.

Without a folder argument the last opened folder is reopened.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := app.Options{ConfigPath: flags.configPath, PrefsPath: flags.prefsPath}
			if len(args) == 1 {
				opts.Folder = args[0]
			}
			return app.Run(cmd.Context(), opts)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "override config path (default ~/.config/glance/config.toml)")
	root.PersistentFlags().StringVar(&flags.prefsPath, "prefs", "", "override preferences path (default ~/.config/glance/prefs.toml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level for headless commands (debug, info, warn, error)")

	root.AddCommand(newIndexCommand(flags), newSimilarCommand(flags))
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

// headless loads config and returns a backend client and a stderr logger for
// commands that run without the TUI.
func (f *rootFlags) headless() (config.Config, *backend.Client, *slog.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if f.logLevel != "" {
		level = f.logLevel
	}
	logger, _ := logging.WithSession(logging.New(os.Stderr, logging.ParseLevel(level), true))
	client, err := backend.NewClient(cfg.APIBind, cfg.RequestTimeout())
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("init backend client: %w", err)
	}
	client.SetLogger(logger.With("component", "backend"))
	return cfg, client, logger, nil
}
