package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
)

const eventBuffer = 64

// Subscription is an open server-sent event stream. Close releases it; it is
// safe to call Close more than once.
type Subscription struct {
	events chan Event
	body   io.ReadCloser
	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger

	skipped atomic.Int64

	once     sync.Once
	closeErr error
	readErr  error
}

// Subscribe opens the /api/events stream. Events are delivered on
// Subscription.Events until the stream ends, ctx is cancelled, or Close is
// called.
func (c *Client) Subscribe(ctx context.Context) (*Subscription, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	ctx, cancel := context.WithCancel(ctx)

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: "/api/events"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.stream.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open event stream: %w", err)
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("api /api/events returned status %d", resp.StatusCode)
	}

	sub := &Subscription{
		events: make(chan Event, eventBuffer),
		body:   resp.Body,
		cancel: cancel,
		done:   make(chan struct{}),
		logger: c.log(),
	}
	go sub.read(ctx)
	return sub, nil
}

// Events returns the channel of decoded events. It is closed when the stream
// ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

// Err returns the error that terminated the stream, if any. It is only
// meaningful after Events has been closed.
func (s *Subscription) Err() error {
	select {
	case <-s.done:
		return s.readErr
	default:
		return nil
	}
}

// Skipped returns the number of frames dropped because their payload did
// not decode.
func (s *Subscription) Skipped() int64 {
	return s.skipped.Load()
}

// Close stops the stream and waits for the reader to exit.
func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.cancel()
		s.closeErr = s.body.Close()
	})
	<-s.done
	return s.closeErr
}

func (s *Subscription) read(ctx context.Context) {
	defer close(s.done)
	defer close(s.events)

	emit := func(ev Event) bool {
		select {
		case s.events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	skip := func(err error) {
		s.skipped.Add(1)
		if s.logger != nil {
			s.logger.Warn("skipping undecodable event", "error", err)
		}
	}
	err := decodeStream(s.body, emit, skip)
	if err != nil && ctx.Err() == nil {
		s.readErr = err
	}
}

// decodeStream parses a text/event-stream body, calling emit for every
// complete event. emit returning false stops decoding. Frames whose payload
// does not decode are passed to skip and the stream continues; only read
// failures end it with an error.
func decodeStream(r io.Reader, emit func(Event) bool, skip func(error)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 16*1024), 1024*1024)

	var eventType string
	var data strings.Builder
	dispatch := func() bool {
		defer func() {
			eventType = ""
			data.Reset()
		}()
		if eventType == "" && data.Len() == 0 {
			return true
		}
		ev, err := decodeEvent(eventType, data.String())
		if err != nil {
			if skip != nil {
				skip(err)
			}
			return true
		}
		if ev.Type == "" {
			return true
		}
		return emit(ev)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if !dispatch() {
				return nil
			}
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		default:
			field, value, _ := strings.Cut(line, ":")
			value = strings.TrimPrefix(value, " ")
			switch field {
			case "event":
				eventType = value
			case "data":
				if data.Len() > 0 {
					data.WriteByte('\n')
				}
				data.WriteString(value)
			}
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read event stream: %w", err)
	}
	dispatch()
	return nil
}

func decodeEvent(eventType, data string) (Event, error) {
	ev := Event{Type: eventType}
	switch eventType {
	case EventIndexingProgress, EventImportProgress:
		if strings.TrimSpace(data) == "" {
			return ev, nil
		}
		if err := json.Unmarshal([]byte(data), &ev.Progress); err != nil {
			return Event{}, fmt.Errorf("decode %s event: %w", eventType, err)
		}
	case EventFolderChanged:
	default:
		// unknown streams are ignored
		return Event{}, nil
	}
	return ev, nil
}
