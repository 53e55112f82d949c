package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/config"
	"github.com/five82/glance/internal/logging"
	"github.com/five82/glance/internal/prefs"
	"github.com/five82/glance/internal/progress"
	"github.com/five82/glance/internal/session"
	"github.com/five82/glance/internal/similar"
	"github.com/five82/glance/internal/state"
	"github.com/five82/glance/internal/thumbs"
	"github.com/five82/glance/internal/ui"
	"github.com/five82/glance/internal/visibility"
)

// Options configure the glance application.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/glance/prefs.toml
	Folder     string // opened on start; empty reopens the last folder
}

// Runtime is one wired glance session: the service client and every
// component built on top of it.
type Runtime struct {
	Config   config.Config
	Service  backend.Service
	Store    *state.Store
	Thumbs   *thumbs.Loader
	Similar  *similar.Controller
	Session  *session.Session
	Listener *progress.Listener
	Visible  *visibility.Detector
	Logger   *slog.Logger
}

// NewRuntime wires the components for svc. Close releases them.
func NewRuntime(ctx context.Context, svc backend.Service, cfg config.Config, p prefs.Prefs, prefsPath string, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = logging.Discard()
	}
	rt := &Runtime{
		Config:  cfg,
		Service: svc,
		Store:   &state.Store{},
		Visible: visibility.New(cfg.PrefetchRows),
		Logger:  logger,
	}
	rt.Thumbs = thumbs.NewLoader(ctx, svc, thumbs.Options{
		Concurrency: cfg.ThumbnailConcurrency,
		BatchWindow: cfg.BatchWindow(),
		Logger:      logger.With("component", "thumbs"),
	})
	rt.Similar = similar.New(ctx, svc, rt.Store, similar.Options{
		Stride:       cfg.RefineStride,
		Debounce:     cfg.ThresholdDebounce(),
		DismissAfter: cfg.SuccessDismiss(),
		Logger:       logger.With("component", "similar"),
	})
	rt.Session = session.New(svc, rt.Store, rt.Thumbs, rt.Similar, p, session.Options{
		AutoIndex:        cfg.AutoIndex,
		DefaultThreshold: cfg.DefaultThreshold,
		PrefsPath:        prefsPath,
		Logger:           logger.With("component", "session"),
		OnFolderChange:   rt.folderChanged,
	})
	rt.Listener = progress.NewListener(rt.Store, rt.Similar, rt.Session, progress.Options{
		Interval: cfg.ProgressThrottle(),
		Logger:   logger.With("component", "progress"),
	})
	return rt
}

func (rt *Runtime) folderChanged(string) {
	// The listener is created after the session; folder switches only happen
	// once NewRuntime has returned.
	if rt.Listener != nil {
		rt.Listener.Reset()
	}
	rt.Similar.Reset()
	rt.Visible.Reset()
}

// Close cancels outstanding thumbnail loads and similarity queries.
func (rt *Runtime) Close() {
	rt.Similar.Close()
	rt.Thumbs.Close()
}

// Run boots the glance TUI until the context is cancelled or the user quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logFile, err := logging.OpenFile(cfg.LogPath(), logging.ParseLevel(cfg.LogLevel))
	if err != nil {
		return err
	}
	defer func() { _ = logFile.Close() }()
	logger, sessionID := logging.WithSession(logger)

	userPrefs, _ := prefs.Load(opts.PrefsPath)

	client, err := backend.NewClient(cfg.APIBind, cfg.RequestTimeout())
	if err != nil {
		return fmt.Errorf("init backend client: %w", err)
	}
	client.SetLogger(logger.With("component", "backend"))
	logger.Info("glance starting", "api", cfg.APIBind, "client", client.ID(), "session", sessionID)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rt := NewRuntime(ctx, client, cfg, userPrefs, opts.PrefsPath, logger)
	defer rt.Close()

	folder := strings.TrimSpace(opts.Folder)
	if folder == "" {
		folder = userPrefs.LastFolder
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return rt.PumpEvents(gctx)
	})
	g.Go(func() error {
		// Quitting the UI ends the session.
		defer cancel()
		return ui.Run(gctx, ui.Options{
			Store:     rt.Store,
			Session:   rt.Session,
			Thumbs:    rt.Thumbs,
			Visible:   rt.Visible,
			Logger:    logger.With("component", "ui"),
			LogPath:   cfg.LogPath(),
			ThemeName: userPrefs.Theme,
			Folder:    folder,
		})
	})
	if err := g.Wait(); err != nil {
		logger.Error("glance stopped", "error", err)
		return err
	}
	logger.Info("glance stopped")
	return nil
}
