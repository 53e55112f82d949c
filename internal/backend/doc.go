// Package backend provides an HTTP client for the photo service API.
//
// # Overview
//
// The photo service owns the photo database, thumbnail generation, and the
// embedding index. glance is a client of it: every list, thumbnail, and
// similarity query goes through this package. The package handles HTTP
// communication, JSON serialization, and decoding of the server-sent event
// stream that carries import and indexing progress.
//
// # Architecture
//
// The package is split into three files:
//
//   - client.go: HTTP client, the Service interface, request handling
//   - events.go: /api/events subscription and text/event-stream decoding
//   - types.go: data structures mirroring the API schema
//
// The backendtest subpackage runs an in-process fake of the service for
// tests of the packages built on top of this one.
//
// # Client Usage
//
//	client, err := backend.NewClient("127.0.0.1:7488", 0)
//	if err != nil {
//		return err
//	}
//
//	photos, err := client.QueryPhotos(ctx, backend.PhotoQuery{Folder: dir})
//	if err != nil {
//		return err
//	}
//
//	sub, err := client.Subscribe(ctx)
//	if err != nil {
//		return err
//	}
//	defer sub.Close()
//	for ev := range sub.Events() {
//		...
//	}
//
// # API Endpoints
//
//   - POST /api/folders/import: scan a folder into the database
//   - GET /api/photos: list photos (folder, search, sort, order, tag)
//   - GET /api/tags: tags used in a folder
//   - POST /api/thumbnails/batch: already-generated thumbnails only
//   - GET /api/thumbnail: one thumbnail, generated on demand
//   - GET /api/similar: photos similar to a reference (threshold in [0,1])
//   - POST /api/index: start embedding indexing of a folder
//   - GET /api/index/status: indexed / total counts for a folder
//   - GET /api/events: server-sent events
//
// Thumbnails are returned as data URIs (data:image/jpeg;base64,...).
//
// # Request Handling
//
// All requests carry a User-Agent of glance/0.1 and an X-Glance-Client header
// holding a per-process UUID. Requests use the configured timeout; zero means
// none. The event stream uses a separate http.Client without a timeout so a
// long-lived subscription is not cut off.
//
// # Error Handling
//
// A 404 response is wrapped around ErrNotFound so callers can test for it
// with errors.Is. Other failures are wrapped with fmt.Errorf:
//
//   - "execute request: dial tcp: connection refused"
//   - "api /api/similar returned status 500"
//   - "decode response: unexpected end of JSON input"
//
// # Event Stream
//
// Events use the standard text/event-stream framing: an "event:" line naming
// the stream and one or more "data:" lines carrying JSON, terminated by a
// blank line. Comment lines starting with ':' are keep-alives. Unknown event
// names are dropped. The events channel is closed when the stream ends,
// when ctx is cancelled, or after Close.
package backend
