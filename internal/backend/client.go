package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when the service answers 404, for example when the
// reference photo of a similarity query is not in its database.
var ErrNotFound = errors.New("not found")

// Service is the set of photo service operations glance consumes.
// It is implemented by *Client and can be faked in tests.
type Service interface {
	ImportFolder(ctx context.Context, folder string) error
	QueryPhotos(ctx context.Context, query PhotoQuery) ([]Photo, error)
	Tags(ctx context.Context, folder string) ([]string, error)
	ThumbnailsBatch(ctx context.Context, paths []string) (map[string]string, error)
	Thumbnail(ctx context.Context, path string) (string, error)
	FindSimilar(ctx context.Context, query SimilarQuery) ([]Photo, error)
	TriggerIndexing(ctx context.Context, folder string) error
	IndexingStatus(ctx context.Context, folder string) (IndexingStatus, error)
	Subscribe(ctx context.Context) (*Subscription, error)
}

// Ensure Client implements Service at compile time.
var _ Service = (*Client)(nil)

// Client talks to the photo service HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	stream    *http.Client
	userAgent string
	clientID  string
	logger    *slog.Logger
}

const (
	defaultAPIBind   = "127.0.0.1:7488"
	defaultUserAgent = "glance/0.1"
	clientIDHeader   = "X-Glance-Client"
)

// NewClient builds a Client using the provided apiBind host:port value.
// A zero timeout leaves individual requests unbounded; the event stream is
// never subject to a timeout.
func NewClient(apiBind string, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(apiBind)
	if err != nil {
		return nil, err
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
		},
		stream:    &http.Client{},
		userAgent: defaultUserAgent,
		clientID:  uuid.NewString(),
	}, nil
}

// SetLogger sets the logger used for event stream diagnostics.
func (c *Client) SetLogger(logger *slog.Logger) {
	c.logger = logger
}

func (c *Client) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// ID returns the identifier this client sends with every request.
func (c *Client) ID() string {
	if c == nil {
		return ""
	}
	return c.clientID
}

// ImportFolder asks the service to scan folder into its database. The call
// returns once the import has finished; import-progress events are emitted
// while it runs.
func (c *Client) ImportFolder(ctx context.Context, folder string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(folder) == "" {
		return fmt.Errorf("folder required")
	}
	return c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/folders/import"}, folderRequest{Folder: folder}, nil)
}

// QueryPhotos lists the photos of a folder.
func (c *Client) QueryPhotos(ctx context.Context, query PhotoQuery) ([]Photo, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(query.Folder) == "" {
		return nil, fmt.Errorf("folder required")
	}
	values := url.Values{}
	values.Set("folder", query.Folder)
	if search := strings.TrimSpace(query.Search); search != "" {
		values.Set("search", search)
	}
	if sortBy := strings.TrimSpace(query.SortBy); sortBy != "" {
		values.Set("sort", sortBy)
	}
	if order := strings.TrimSpace(query.SortOrder); order != "" {
		values.Set("order", order)
	}
	for _, tag := range query.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			values.Add("tag", tag)
		}
	}
	rel := &url.URL{Path: "/api/photos", RawQuery: values.Encode()}
	var payload PhotoListResponse
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Photos, nil
}

// Tags lists every tag assigned to photos in folder.
func (c *Client) Tags(ctx context.Context, folder string) ([]string, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("folder", folder)
	rel := &url.URL{Path: "/api/tags", RawQuery: values.Encode()}
	var payload TagsResponse
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tags, nil
}

// ThumbnailsBatch looks up thumbnails the service has already generated. Paths
// missing from the result are not available yet.
func (c *Client) ThumbnailsBatch(ctx context.Context, paths []string) (map[string]string, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if len(paths) == 0 {
		return map[string]string{}, nil
	}
	var payload ThumbnailBatchResponse
	if err := c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/thumbnails/batch"}, thumbnailBatchRequest{Paths: paths}, &payload); err != nil {
		return nil, err
	}
	if payload.Thumbnails == nil {
		payload.Thumbnails = map[string]string{}
	}
	return payload.Thumbnails, nil
}

// Thumbnail fetches a single thumbnail, generating it server side if needed.
func (c *Client) Thumbnail(ctx context.Context, path string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path required")
	}
	values := url.Values{}
	values.Set("path", path)
	rel := &url.URL{Path: "/api/thumbnail", RawQuery: values.Encode()}
	var payload ThumbnailResponse
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return "", err
	}
	if payload.Data == "" {
		return "", fmt.Errorf("empty thumbnail for %s", path)
	}
	return payload.Data, nil
}

// FindSimilar returns photos of the folder similar to the reference photo.
func (c *Client) FindSimilar(ctx context.Context, query SimilarQuery) ([]Photo, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(query.Reference) == "" {
		return nil, fmt.Errorf("reference path required")
	}
	values := url.Values{}
	values.Set("folder", query.Folder)
	values.Set("reference", query.Reference)
	values.Set("threshold", strconv.FormatFloat(query.Threshold, 'f', -1, 64))
	rel := &url.URL{Path: "/api/similar", RawQuery: values.Encode()}
	var payload PhotoListResponse
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Photos, nil
}

// TriggerIndexing starts background embedding indexing for folder.
func (c *Client) TriggerIndexing(ctx context.Context, folder string) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(folder) == "" {
		return fmt.Errorf("folder required")
	}
	return c.doJSON(ctx, http.MethodPost, &url.URL{Path: "/api/index"}, folderRequest{Folder: folder}, nil)
}

// IndexingStatus reports how many photos of folder already have embeddings.
func (c *Client) IndexingStatus(ctx context.Context, folder string) (IndexingStatus, error) {
	if c == nil {
		return IndexingStatus{}, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("folder", folder)
	rel := &url.URL{Path: "/api/index/status", RawQuery: values.Encode()}
	var payload IndexingStatus
	if err := c.doJSON(ctx, http.MethodGet, rel, nil, &payload); err != nil {
		return IndexingStatus{}, err
	}
	return payload, nil
}

func (c *Client) doJSON(ctx context.Context, method string, rel *url.URL, body any, dest any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	reqURL := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("api %s: %w", rel.Path, ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", rel.Path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(clientIDHeader, c.clientID)
}

func parseBaseURL(apiBind string) (*url.URL, error) {
	trimmed := strings.TrimSpace(apiBind)
	if trimmed == "" {
		trimmed = defaultAPIBind
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse api_bind %q: %w", apiBind, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
