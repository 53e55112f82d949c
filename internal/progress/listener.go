// Package progress applies the photo service's import and indexing progress
// events to the application state.
//
// Non-completion events are throttled to one applied update per interval
// (200ms) per stream, admitted on the leading edge. Completion events always
// pass. Indexing progress also feeds the similarity Refiner; indexing
// completion either finalises the active similarity search or, when none is
// active, reloads the listing so per-photo embedding flags are fresh.
package progress

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/five82/glance/internal/backend"
	"github.com/five82/glance/internal/schedule"
	"github.com/five82/glance/internal/state"
)

// DefaultInterval is the minimum spacing of applied progress updates.
const DefaultInterval = 200 * time.Millisecond

// Refiner receives indexing progress. It is implemented by
// *similar.Controller.
type Refiner interface {
	Advance(current, total int)
	// Finish reports whether it issued a final query for an active search.
	Finish() bool
}

// Reloader reloads the active folder's listing.
type Reloader interface {
	Reload(ctx context.Context) error
}

// Options tune a Listener.
type Options struct {
	Interval time.Duration
	Clock    schedule.Clock
	Logger   *slog.Logger
}

// Listener routes backend events to the store, the refiner and the reloader.
// Handle is meant to be called from a single goroutine.
type Listener struct {
	store    *state.Store
	refiner  Refiner
	reloader Reloader
	logger   *slog.Logger

	indexing *schedule.Throttle
	imports  *schedule.Throttle
}

// NewListener returns a listener. refiner and reloader may be nil.
func NewListener(store *state.Store, refiner Refiner, reloader Reloader, opts Options) *Listener {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Clock == nil {
		opts.Clock = schedule.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Listener{
		store:    store,
		refiner:  refiner,
		reloader: reloader,
		logger:   opts.Logger,
		indexing: schedule.NewThrottle(opts.Clock, opts.Interval),
		imports:  schedule.NewThrottle(opts.Clock, opts.Interval),
	}
}

// Run handles events until the channel closes or ctx is done.
func (l *Listener) Run(ctx context.Context, events <-chan backend.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			l.Handle(ctx, ev)
		}
	}
}

// Handle applies one event. It reports whether the event changed state; a
// throttled progress event returns false.
func (l *Listener) Handle(ctx context.Context, ev backend.Event) bool {
	switch ev.Type {
	case backend.EventIndexingProgress:
		return l.handleIndexing(ctx, ev.Progress)
	case backend.EventImportProgress:
		return l.handleImport(ev.Progress)
	case backend.EventFolderChanged:
		l.reload(ctx, "folder changed")
		return true
	default:
		return false
	}
}

// Reset drops throttle windows and clears progress, for a folder switch.
func (l *Listener) Reset() {
	l.indexing.Reset()
	l.imports.Reset()
	l.store.ClearIndexing()
	l.store.ClearImport()
}

func (l *Listener) handleIndexing(ctx context.Context, p backend.Progress) bool {
	if p.Done {
		l.indexing.Reset()
		l.store.ClearIndexing()
		if p.Total > 0 {
			l.store.SetIndexStatus(backend.IndexingStatus{Total: p.Total, Indexed: p.Current})
		}
		l.logger.Info("indexing complete", "total", p.Total)
		finalised := false
		if l.refiner != nil {
			finalised = l.refiner.Finish()
		}
		if !finalised {
			l.reload(ctx, "indexing complete")
		}
		return true
	}

	if !l.indexing.Allow() {
		return false
	}
	l.store.SetIndexing(p.Current, p.Total, p.File)
	if l.refiner != nil {
		l.refiner.Advance(p.Current, p.Total)
	}
	return true
}

func (l *Listener) handleImport(p backend.Progress) bool {
	if p.Done {
		l.imports.Reset()
		l.store.ClearImport()
		l.logger.Info("import complete", "total", p.Total)
		return true
	}
	if !l.imports.Allow() {
		return false
	}
	l.store.SetImport(p.Current, p.Total)
	return true
}

func (l *Listener) reload(ctx context.Context, reason string) {
	if l.reloader == nil {
		return
	}
	if err := l.reloader.Reload(ctx); err != nil {
		l.logger.Warn("listing reload failed", "reason", reason, "error", err)
		return
	}
	l.logger.Debug("listing reloaded", "reason", reason)
}
