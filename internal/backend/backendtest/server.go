// Package backendtest runs an in-process fake of the photo service for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/five82/glance/internal/backend"
)

// SimilarFunc answers /api/similar.
type SimilarFunc func(q backend.SimilarQuery) ([]backend.Photo, error)

// Server is a fake photo service. All fields are guarded by the server lock;
// use the setters while the server is running.
type Server struct {
	*httptest.Server

	mu          sync.Mutex
	photos      map[string][]backend.Photo
	tags        map[string][]string
	cached      map[string]string
	generated   map[string]string
	failThumbs  map[string]bool
	failBatch   bool
	similar     SimilarFunc
	status      map[string]backend.IndexingStatus
	thumbGate   chan struct{}
	calls       []Call
	subscribers map[chan string]struct{}
	subscribed  chan struct{}
}

// Call records one request the server received.
type Call struct {
	Method string
	Path   string
	Paths  []string
	Folder string
	Query  string
}

// New starts a fake service and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{
		photos:      map[string][]backend.Photo{},
		tags:        map[string][]string{},
		cached:      map[string]string{},
		generated:   map[string]string{},
		failThumbs:  map[string]bool{},
		status:      map[string]backend.IndexingStatus{},
		subscribers: map[chan string]struct{}{},
		subscribed:  make(chan struct{}, 16),
	}

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Post("/folders/import", s.handleImport)
		r.Get("/photos", s.handlePhotos)
		r.Get("/tags", s.handleTags)
		r.Post("/thumbnails/batch", s.handleBatch)
		r.Get("/thumbnail", s.handleThumbnail)
		r.Get("/similar", s.handleSimilar)
		r.Post("/index", s.handleIndex)
		r.Get("/index/status", s.handleIndexStatus)
		r.Get("/events", s.handleEvents)
	})

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Close disconnects event subscribers and stops the server.
func (s *Server) Close() {
	s.mu.Lock()
	for ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, ch)
	}
	s.mu.Unlock()
	s.Server.Close()
}

// Bind returns the host:port the server listens on.
func (s *Server) Bind() string {
	return s.Listener.Addr().String()
}

// SetPhotos sets the listing returned for folder.
func (s *Server) SetPhotos(folder string, photos []backend.Photo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.photos[folder] = slices.Clone(photos)
}

// SetTags sets the tags returned for folder.
func (s *Server) SetTags(folder string, tags []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[folder] = slices.Clone(tags)
}

// SetCached marks a thumbnail as already generated; the batch endpoint returns it.
func (s *Server) SetCached(path, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached[path] = data
}

// SetGenerated sets the data the single thumbnail endpoint returns for path.
// Paths without an entry get a synthetic data URI.
func (s *Server) SetGenerated(path, data string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generated[path] = data
}

// FailThumbnail makes the single thumbnail endpoint fail for path.
func (s *Server) FailThumbnail(path string, fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failThumbs[path] = fail
}

// FailBatch makes the batch endpoint return 500.
func (s *Server) FailBatch(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBatch = fail
}

// GateThumbnails makes single thumbnail requests block until gate yields or
// is closed. Pass nil to remove the gate.
func (s *Server) GateThumbnails(gate chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.thumbGate = gate
}

// SetSimilar installs the handler for similarity queries.
func (s *Server) SetSimilar(fn SimilarFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.similar = fn
}

// SetIndexingStatus sets the status returned for folder.
func (s *Server) SetIndexingStatus(folder string, st backend.IndexingStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[folder] = st
}

// Calls returns every request recorded so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// CallsTo returns requests recorded for one endpoint path.
func (s *Server) CallsTo(path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// Subscribed yields once for each event stream opened against the server.
func (s *Server) Subscribed() <-chan struct{} {
	return s.subscribed
}

// Emit sends one event to every open subscriber.
func (s *Server) Emit(eventType string, payload any) {
	data := "{}"
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			panic(fmt.Sprintf("backendtest: encode payload: %v", err))
		}
		data = string(encoded)
	}
	frame := fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, data)

	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		ch <- frame
	}
}

func (s *Server) record(c Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.record(Call{Method: r.Method, Path: r.URL.Path, Folder: req.Folder})
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePhotos(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	s.record(Call{Method: r.Method, Path: r.URL.Path, Folder: folder, Query: r.URL.RawQuery})
	s.mu.Lock()
	photos, ok := s.photos[folder]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, backend.PhotoListResponse{Photos: photos})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	s.record(Call{Method: r.Method, Path: r.URL.Path, Folder: folder})
	s.mu.Lock()
	tags := slices.Clone(s.tags[folder])
	s.mu.Unlock()
	if tags == nil {
		tags = []string{}
	}
	writeJSON(w, backend.TagsResponse{Tags: tags})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paths []string `json:"paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.record(Call{Method: r.Method, Path: r.URL.Path, Paths: req.Paths})

	s.mu.Lock()
	fail := s.failBatch
	found := map[string]string{}
	for _, p := range req.Paths {
		if data, ok := s.cached[p]; ok {
			found[p] = data
		}
	}
	s.mu.Unlock()

	if fail {
		http.Error(w, "batch failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, backend.ThumbnailBatchResponse{Thumbnails: found})
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	s.record(Call{Method: r.Method, Path: r.URL.Path, Paths: []string{path}})

	s.mu.Lock()
	gate := s.thumbGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	s.mu.Lock()
	fail := s.failThumbs[path]
	data, ok := s.generated[path]
	s.mu.Unlock()
	if fail {
		http.Error(w, "thumbnail failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		data = DataURI(path)
	}
	writeJSON(w, backend.ThumbnailResponse{Data: data})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var threshold float64
	if _, err := fmt.Sscan(q.Get("threshold"), &threshold); err != nil {
		http.Error(w, "bad threshold", http.StatusBadRequest)
		return
	}
	query := backend.SimilarQuery{Folder: q.Get("folder"), Reference: q.Get("reference"), Threshold: threshold}
	s.record(Call{Method: r.Method, Path: r.URL.Path, Folder: query.Folder, Query: r.URL.RawQuery})

	s.mu.Lock()
	fn := s.similar
	s.mu.Unlock()
	if fn == nil {
		writeJSON(w, backend.PhotoListResponse{Photos: []backend.Photo{}})
		return
	}
	photos, err := fn(query)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, backend.PhotoListResponse{Photos: photos})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Folder string `json:"folder"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.record(Call{Method: r.Method, Path: r.URL.Path, Folder: req.Folder})
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, r *http.Request) {
	folder := r.URL.Query().Get("folder")
	s.record(Call{Method: r.Method, Path: r.URL.Path, Folder: folder})
	s.mu.Lock()
	st := s.status[folder]
	s.mu.Unlock()
	writeJSON(w, st)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	s.record(Call{Method: r.Method, Path: r.URL.Path})

	ch := make(chan string, 64)
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
		}
		s.mu.Unlock()
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	select {
	case s.subscribed <- struct{}{}:
	default:
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case frame, ok := <-ch:
			if !ok {
				return
			}
			if _, err := fmt.Fprint(w, frame); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

// DataURI returns the synthetic thumbnail the server generates for path.
func DataURI(path string) string {
	return "data:image/jpeg;base64," + path
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
