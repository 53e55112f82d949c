package thumbs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeSource struct {
	mu         sync.Mutex
	cached     map[string]string
	failBatch  bool
	failPaths  map[string]bool
	batchCalls [][]string
	thumbCalls map[string]int

	gate     chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
	started  chan string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		cached:     map[string]string{},
		failPaths:  map[string]bool{},
		thumbCalls: map[string]int{},
	}
}

func (s *fakeSource) ThumbnailsBatch(_ context.Context, paths []string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls = append(s.batchCalls, append([]string(nil), paths...))
	if s.failBatch {
		return nil, errors.New("batch unavailable")
	}
	out := map[string]string{}
	for _, p := range paths {
		if data, ok := s.cached[p]; ok {
			out[p] = data
		}
	}
	return out, nil
}

func (s *fakeSource) Thumbnail(ctx context.Context, path string) (string, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	s.mu.Lock()
	s.thumbCalls[path]++
	fail := s.failPaths[path]
	gate := s.gate
	started := s.started
	s.mu.Unlock()

	if started != nil {
		started <- path
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail {
		return "", fmt.Errorf("generate %s failed", path)
	}
	return "gen:" + path, nil
}

func (s *fakeSource) calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.thumbCalls[path]
}

func (s *fakeSource) batches() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]string(nil), s.batchCalls...)
}

func newTestLoader(t *testing.T, src Source, opts Options) *Loader {
	t.Helper()
	if opts.BatchWindow == 0 {
		opts.BatchWindow = time.Millisecond
	}
	l := NewLoader(context.Background(), src, opts)
	t.Cleanup(l.Close)
	return l
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestLoader_CacheHitIsAlreadyResolved(t *testing.T) {
	src := newFakeSource()
	l := newTestLoader(t, src, Options{})
	ctx := waitCtx(t)

	if _, err := l.Get(ctx, "/a.jpg"); err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	f := l.Request("/a.jpg")
	select {
	case <-f.Done():
	default:
		t.Fatalf("cache hit future not resolved on return")
	}
	data, err := f.Result()
	if err != nil || data != "gen:/a.jpg" {
		t.Fatalf("Result = %q, %v", data, err)
	}
	if got := src.calls("/a.jpg"); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}
	if st := l.Stats(); st.CacheHits != 1 || st.Cached != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLoader_OverlappingRequestsShareOneCall(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan string, 1)
	l := newTestLoader(t, src, Options{})
	ctx := waitCtx(t)

	const n = 8
	futures := make([]*Future, 0, n)
	futures = append(futures, l.Request("/same.jpg"))

	// wait until the individual fetch is in flight, then pile on
	select {
	case <-src.started:
	case <-ctx.Done():
		t.Fatalf("fetch never started")
	}
	for i := 1; i < n; i++ {
		futures = append(futures, l.Request("/same.jpg"))
	}
	close(src.gate)

	for i, f := range futures {
		if f != futures[0] {
			t.Fatalf("request %d got a different future", i)
		}
		data, err := f.Wait(ctx)
		if err != nil || data != "gen:/same.jpg" {
			t.Fatalf("request %d = %q, %v", i, data, err)
		}
	}
	if got := src.calls("/same.jpg"); got != 1 {
		t.Fatalf("backend calls = %d, want 1", got)
	}
	if got := len(src.batches()); got != 1 {
		t.Fatalf("batch calls = %d, want 1", got)
	}
}

func TestLoader_NeverExceedsConcurrency(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan string, 64)
	l := newTestLoader(t, src, Options{Concurrency: 6})
	ctx := waitCtx(t)

	const n = 20
	var futures []*Future
	for i := 0; i < n; i++ {
		futures = append(futures, l.Request(fmt.Sprintf("/p%02d.jpg", i)))
	}

	for i := 0; i < 6; i++ {
		select {
		case <-src.started:
		case <-ctx.Done():
			t.Fatalf("only %d fetches started", i)
		}
	}
	// give any over-admitted worker a chance to show up
	select {
	case p := <-src.started:
		t.Fatalf("seventh fetch %s started while six were blocked", p)
	case <-time.After(50 * time.Millisecond):
	}
	if got := l.Stats().Active; got != 6 {
		t.Fatalf("active = %d, want 6", got)
	}

	close(src.gate)
	for _, f := range futures {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatalf("%s: %v", f.Path(), err)
		}
	}
	if peak := src.peak.Load(); peak > 6 {
		t.Fatalf("peak concurrency = %d, want <= 6", peak)
	}
	if peak := l.limit.Peak(); peak != 6 {
		t.Fatalf("limiter peak = %d, want 6", peak)
	}
	if got := l.Stats().Active; got != 0 {
		t.Fatalf("slots leaked: active = %d", got)
	}
}

func TestLoader_BulkHitsResolveAndMissesFallBack(t *testing.T) {
	src := newFakeSource()
	src.cached["p1"] = "data1"
	l := newTestLoader(t, src, Options{BatchWindow: 20 * time.Millisecond})
	ctx := waitCtx(t)

	f1 := l.Request("p1")
	f2 := l.Request("p2")
	f3 := l.Request("p3")

	for _, tc := range []struct {
		f    *Future
		want string
	}{
		{f1, "data1"},
		{f2, "gen:p2"},
		{f3, "gen:p3"},
	} {
		data, err := tc.f.Wait(ctx)
		if err != nil || data != tc.want {
			t.Fatalf("%s = %q, %v; want %q", tc.f.Path(), data, err, tc.want)
		}
	}

	batches := src.batches()
	if len(batches) != 1 {
		t.Fatalf("batch calls = %d, want 1", len(batches))
	}
	got := append([]string(nil), batches[0]...)
	sort.Strings(got)
	if fmt.Sprint(got) != "[p1 p2 p3]" {
		t.Fatalf("batch paths = %v", got)
	}
	if src.calls("p1") != 0 || src.calls("p2") != 1 || src.calls("p3") != 1 {
		t.Fatalf("individual calls p1=%d p2=%d p3=%d", src.calls("p1"), src.calls("p2"), src.calls("p3"))
	}
	if st := l.Stats(); st.BatchHits != 1 || st.Individual != 2 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLoader_BulkFailureFallsBackForEveryPath(t *testing.T) {
	src := newFakeSource()
	src.cached["p1"] = "data1"
	src.failBatch = true
	l := newTestLoader(t, src, Options{})
	ctx := waitCtx(t)

	f1 := l.Request("p1")
	f2 := l.Request("p2")
	for _, f := range []*Future{f1, f2} {
		if _, err := f.Wait(ctx); err != nil {
			t.Fatalf("%s: %v", f.Path(), err)
		}
	}
	if src.calls("p1") != 1 || src.calls("p2") != 1 {
		t.Fatalf("expected individual fetch for both paths")
	}
}

func TestLoader_FailureRejectsOnlyThatPathAndAllowsRetry(t *testing.T) {
	src := newFakeSource()
	src.failPaths["bad"] = true
	l := newTestLoader(t, src, Options{})
	ctx := waitCtx(t)

	good := l.Request("good")
	bad := l.Request("bad")
	if _, err := good.Wait(ctx); err != nil {
		t.Fatalf("good: %v", err)
	}
	if _, err := bad.Wait(ctx); err == nil {
		t.Fatalf("bad: expected error")
	}
	if _, ok := l.Cached("bad"); ok {
		t.Fatalf("failed path was cached")
	}

	src.mu.Lock()
	src.failPaths["bad"] = false
	src.mu.Unlock()

	retry := l.Request("bad")
	if retry == bad {
		t.Fatalf("retry reused the rejected future")
	}
	if data, err := retry.Wait(ctx); err != nil || data != "gen:bad" {
		t.Fatalf("retry = %q, %v", data, err)
	}
	if got := src.calls("bad"); got != 2 {
		t.Fatalf("backend calls for bad = %d, want 2", got)
	}
	if st := l.Stats(); st.Failures != 1 || st.Active != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLoader_ResetClearsCacheAndRefetches(t *testing.T) {
	src := newFakeSource()
	l := newTestLoader(t, src, Options{})
	ctx := waitCtx(t)

	if _, err := l.Get(ctx, "IMG_0001.jpg"); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	l.Reset()
	if _, ok := l.Cached("IMG_0001.jpg"); ok {
		t.Fatalf("cache survived Reset")
	}
	if _, err := l.Get(ctx, "IMG_0001.jpg"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if got := src.calls("IMG_0001.jpg"); got != 2 {
		t.Fatalf("backend calls = %d, want 2 (refetch after reset)", got)
	}
}

func TestLoader_ResetRejectsOutstandingAndDropsLateResults(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan string, 1)
	l := newTestLoader(t, src, Options{})
	ctx := waitCtx(t)

	f := l.Request("slow.jpg")
	select {
	case <-src.started:
	case <-ctx.Done():
		t.Fatalf("fetch never started")
	}
	l.Reset()

	if _, err := f.Wait(ctx); !errors.Is(err, ErrReset) {
		t.Fatalf("err = %v, want ErrReset", err)
	}
	close(src.gate)

	// the late result must not land in the new session's cache
	deadline := time.Now().Add(2 * time.Second)
	for l.Stats().Active != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if _, ok := l.Cached("slow.jpg"); ok {
		t.Fatalf("stale result cached after Reset")
	}
}

func TestLoader_CloseRejectsPendingAndLaterRequests(t *testing.T) {
	src := newFakeSource()
	src.gate = make(chan struct{})
	src.started = make(chan string, 1)
	l := NewLoader(context.Background(), src, Options{BatchWindow: time.Millisecond})
	ctx := waitCtx(t)

	f := l.Request("x")
	select {
	case <-src.started:
	case <-ctx.Done():
		t.Fatalf("fetch never started")
	}
	l.Close()

	if _, err := f.Wait(ctx); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if _, err := l.Request("y").Result(); !errors.Is(err, ErrClosed) {
		t.Fatalf("request after Close err = %v, want ErrClosed", err)
	}
	l.Close()
}

func TestFuture_ResultBeforeResolve(t *testing.T) {
	f := newFuture("p")
	if _, err := f.Result(); !errors.Is(err, ErrPending) {
		t.Fatalf("err = %v, want ErrPending", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.Wait(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait err = %v, want context.Canceled", err)
	}
	f.resolve("a", nil)
	f.resolve("b", nil)
	if data, _ := f.Result(); data != "a" {
		t.Fatalf("data = %q, want first resolution", data)
	}
}

func TestCache_FirstWriteWins(t *testing.T) {
	c := NewCache()
	if !c.Put("p", "one") {
		t.Fatalf("first Put not stored")
	}
	if c.Put("p", "two") {
		t.Fatalf("second Put overwrote entry")
	}
	if data, _ := c.Get("p"); data != "one" {
		t.Fatalf("Get = %q, want one", data)
	}
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("Len after Clear = %d", c.Len())
	}
}

func TestLimiter_FIFOAdmission(t *testing.T) {
	lim := NewLimiter(1)
	ctx := waitCtx(t)
	if err := lim.Acquire(ctx); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	order := make(chan int, 3)
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := lim.Acquire(ctx); err != nil {
				t.Errorf("waiter %d: %v", i, err)
				return
			}
			order <- i
			lim.Release()
		}(i)
		// queue the waiters in a known order
		time.Sleep(10 * time.Millisecond)
	}
	lim.Release()
	wg.Wait()
	close(order)

	want := 0
	for got := range order {
		if got != want {
			t.Fatalf("admitted %d, want %d", got, want)
		}
		want++
	}
	if lim.Active() != 0 {
		t.Fatalf("active = %d after all released", lim.Active())
	}
}
