package thumbs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/five82/glance/internal/schedule"
)

var (
	// ErrClosed is returned for requests made after, or outstanding at, Close.
	ErrClosed = errors.New("thumbnail loader closed")
	// ErrReset is returned for requests that were outstanding when the folder
	// session was reset.
	ErrReset = errors.New("thumbnail session reset")
	// ErrPending is returned by Future.Result before the future resolves.
	ErrPending = errors.New("thumbnail pending")
)

// DefaultBatchWindow is how long requests are collected before one bulk
// lookup is issued.
const DefaultBatchWindow = 10 * time.Millisecond

// Source is the backend the loader fetches from.
type Source interface {
	// ThumbnailsBatch returns the thumbnails already generated for paths.
	// Paths missing from the result are not available yet.
	ThumbnailsBatch(ctx context.Context, paths []string) (map[string]string, error)
	// Thumbnail generates or fetches one thumbnail.
	Thumbnail(ctx context.Context, path string) (string, error)
}

// Options tune a Loader. Zero values use the defaults.
type Options struct {
	Concurrency int
	BatchWindow time.Duration
	Clock       schedule.Clock
	Logger      *slog.Logger
}

// Stats counts loader activity since the last Reset.
type Stats struct {
	Requests   int64
	CacheHits  int64
	Shared     int64
	Batches    int64
	BatchHits  int64
	Individual int64
	Failures   int64
	Cached     int
	Pending    int
	Active     int
	Capacity   int
}

// Loader coalesces thumbnail requests into bulk lookups and falls back to
// individual fetches under a concurrency Limiter. One Loader serves one
// session; Reset clears it when the active folder changes.
type Loader struct {
	ctx    context.Context
	cancel context.CancelFunc
	src    Source
	cache  *Cache
	limit  *Limiter
	window time.Duration
	clock  schedule.Clock
	logger *slog.Logger
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[string]*Future
	batch   []string
	timer   schedule.Timer
	epoch   uint64
	closed  bool

	requests   atomic.Int64
	cacheHits  atomic.Int64
	shared     atomic.Int64
	batches    atomic.Int64
	batchHits  atomic.Int64
	individual atomic.Int64
	failures   atomic.Int64
}

// NewLoader returns a loader fetching from src. Backend calls use a context
// derived from ctx that is cancelled by Close.
func NewLoader(ctx context.Context, src Source, opts Options) *Loader {
	if opts.BatchWindow <= 0 {
		opts.BatchWindow = DefaultBatchWindow
	}
	if opts.Clock == nil {
		opts.Clock = schedule.RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Loader{
		ctx:     ctx,
		cancel:  cancel,
		src:     src,
		cache:   NewCache(),
		limit:   NewLimiter(opts.Concurrency),
		window:  opts.BatchWindow,
		clock:   opts.Clock,
		logger:  opts.Logger,
		pending: make(map[string]*Future),
	}
}

// Request returns the future for path's thumbnail. A cached thumbnail comes
// back as an already resolved future. Otherwise the path joins the current
// batch; callers asking for a path that is already outstanding share its
// future.
func (l *Loader) Request(path string) *Future {
	l.requests.Add(1)
	if data, ok := l.cache.Get(path); ok {
		l.cacheHits.Add(1)
		return resolvedFuture(path, data, nil)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return resolvedFuture(path, "", ErrClosed)
	}
	// completion stores into the cache under mu
	if data, ok := l.cache.Get(path); ok {
		l.cacheHits.Add(1)
		return resolvedFuture(path, data, nil)
	}
	if f, ok := l.pending[path]; ok {
		l.shared.Add(1)
		return f
	}

	f := newFuture(path)
	l.pending[path] = f
	l.batch = append(l.batch, path)
	if l.timer == nil {
		epoch := l.epoch
		l.timer = l.clock.AfterFunc(l.window, func() { l.flush(epoch) })
	}
	return f
}

// Get requests path and waits for the result.
func (l *Loader) Get(ctx context.Context, path string) (string, error) {
	return l.Request(path).Wait(ctx)
}

// Cached returns the thumbnail for path if it is already in the cache.
func (l *Loader) Cached(path string) (string, bool) {
	return l.cache.Get(path)
}

// Reset starts a new session: the cache is cleared and outstanding requests
// fail with ErrReset. Fetches already running finish but their results are
// dropped.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.epoch++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	stale := l.pending
	l.pending = make(map[string]*Future)
	l.batch = nil
	l.cache.Clear()
	l.mu.Unlock()

	for _, f := range stale {
		f.resolve("", ErrReset)
	}
	l.requests.Store(0)
	l.cacheHits.Store(0)
	l.shared.Store(0)
	l.batches.Store(0)
	l.batchHits.Store(0)
	l.individual.Store(0)
	l.failures.Store(0)
	l.logger.Debug("thumbnail cache reset", "outstanding", len(stale))
}

// Close fails outstanding requests with ErrClosed, cancels backend calls and
// waits for workers to exit.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.epoch++
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	stale := l.pending
	l.pending = make(map[string]*Future)
	l.batch = nil
	l.mu.Unlock()

	l.cancel()
	for _, f := range stale {
		f.resolve("", ErrClosed)
	}
	l.wg.Wait()
}

// Stats returns a snapshot of loader counters.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	pending := len(l.pending)
	l.mu.Unlock()
	return Stats{
		Requests:   l.requests.Load(),
		CacheHits:  l.cacheHits.Load(),
		Shared:     l.shared.Load(),
		Batches:    l.batches.Load(),
		BatchHits:  l.batchHits.Load(),
		Individual: l.individual.Load(),
		Failures:   l.failures.Load(),
		Cached:     l.cache.Len(),
		Pending:    pending,
		Active:     l.limit.Active(),
		Capacity:   l.limit.Capacity(),
	}
}

func (l *Loader) flush(epoch uint64) {
	l.mu.Lock()
	if l.closed || epoch != l.epoch {
		l.mu.Unlock()
		return
	}
	paths := l.batch
	l.batch = nil
	l.timer = nil
	l.wg.Add(1)
	l.mu.Unlock()
	defer l.wg.Done()

	if len(paths) == 0 {
		return
	}
	l.batches.Add(1)

	found, err := l.src.ThumbnailsBatch(l.ctx, paths)
	if err != nil {
		l.logger.Debug("bulk thumbnail lookup failed, fetching individually",
			"paths", len(paths),
			"error", err,
		)
		found = nil
	}
	for _, path := range paths {
		if data, ok := found[path]; ok && data != "" {
			l.batchHits.Add(1)
			l.complete(epoch, path, data, nil)
			continue
		}
		l.wg.Add(1)
		go l.loadUncached(epoch, path)
	}
}

func (l *Loader) loadUncached(epoch uint64, path string) {
	defer l.wg.Done()

	if err := l.limit.Acquire(l.ctx); err != nil {
		l.complete(epoch, path, "", ErrClosed)
		return
	}
	defer l.limit.Release()

	// the session may have moved on while waiting for a slot
	if !l.current(epoch) {
		return
	}
	l.individual.Add(1)
	data, err := l.src.Thumbnail(l.ctx, path)
	if err != nil {
		l.failures.Add(1)
		l.logger.Debug("thumbnail fetch failed", "path", path, "error", err)
	}
	l.complete(epoch, path, data, err)
}

func (l *Loader) current(epoch uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.closed && epoch == l.epoch
}

func (l *Loader) complete(epoch uint64, path, data string, err error) {
	l.mu.Lock()
	if epoch != l.epoch {
		l.mu.Unlock()
		return
	}
	f := l.pending[path]
	delete(l.pending, path)
	if err == nil {
		l.cache.Put(path, data)
	}
	l.mu.Unlock()

	if f != nil {
		f.resolve(data, err)
	}
}
