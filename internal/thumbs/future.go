package thumbs

import (
	"context"
	"sync"
)

// Future is the shared result of a thumbnail request. Every caller that asks
// for the same path while it is outstanding receives the same Future.
type Future struct {
	path string
	done chan struct{}
	once sync.Once
	data string
	err  error
}

func newFuture(path string) *Future {
	return &Future{path: path, done: make(chan struct{})}
}

func resolvedFuture(path, data string, err error) *Future {
	f := newFuture(path)
	f.resolve(data, err)
	return f
}

// Path returns the photo path the future belongs to.
func (f *Future) Path() string { return f.path }

// Done is closed once the result is available.
func (f *Future) Done() <-chan struct{} { return f.done }

// Result returns the payload or error. Before Done is closed it returns
// ErrPending.
func (f *Future) Result() (string, error) {
	select {
	case <-f.done:
		return f.data, f.err
	default:
		return "", ErrPending
	}
}

// Wait blocks until the result is available or ctx is done.
func (f *Future) Wait(ctx context.Context) (string, error) {
	select {
	case <-f.done:
		return f.data, f.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *Future) resolve(data string, err error) {
	f.once.Do(func() {
		f.data = data
		f.err = err
		close(f.done)
	})
}
