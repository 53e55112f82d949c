package backend

import "time"

// Event stream names emitted by the photo service.
const (
	EventIndexingProgress = "indexing-progress"
	EventImportProgress   = "import-progress"
	EventFolderChanged    = "folder-changed"
)

// Photo mirrors a photo entry returned by /api/photos and /api/similar.
type Photo struct {
	Name         string   `json:"name"`
	Path         string   `json:"path"`
	Size         uint64   `json:"size"`
	Modified     int64    `json:"modified"`
	Tags         []string `json:"tags"`
	Width        int      `json:"width"`
	Height       int      `json:"height"`
	HasEmbedding bool     `json:"has_embedding"`
}

// ModifiedTime returns the modification timestamp (unix seconds) as time.Time.
func (p Photo) ModifiedTime() time.Time {
	if p.Modified <= 0 {
		return time.Time{}
	}
	return time.Unix(p.Modified, 0)
}

// PhotoListResponse mirrors /api/photos and /api/similar.
type PhotoListResponse struct {
	Photos []Photo `json:"photos"`
}

// PhotoQuery configures /api/photos requests.
type PhotoQuery struct {
	Folder    string
	Search    string
	SortBy    string
	SortOrder string
	Tags      []string
}

// SimilarQuery configures /api/similar requests. Threshold is a similarity in
// [0,1]; the service converts it to a cosine distance of 1-Threshold.
type SimilarQuery struct {
	Folder    string
	Reference string
	Threshold float64
}

// ThresholdFromPercent converts a 0–100 slider value into the [0,1] range the
// service expects.
func ThresholdFromPercent(percent int) float64 {
	switch {
	case percent <= 0:
		return 0
	case percent >= 100:
		return 1
	}
	return float64(percent) / 100
}

// IndexingStatus mirrors /api/index/status.
type IndexingStatus struct {
	Total   int `json:"total"`
	Indexed int `json:"indexed"`
}

// Complete reports whether every photo in the folder has an embedding.
func (s IndexingStatus) Complete() bool {
	return s.Indexed >= s.Total
}

// ThumbnailBatchResponse mirrors /api/thumbnails/batch. Only thumbnails the
// service already generated are present.
type ThumbnailBatchResponse struct {
	Thumbnails map[string]string `json:"thumbnails"`
}

// ThumbnailResponse mirrors /api/thumbnail.
type ThumbnailResponse struct {
	Data string `json:"data"`
}

// TagsResponse mirrors /api/tags.
type TagsResponse struct {
	Tags []string `json:"tags"`
}

type folderRequest struct {
	Folder string `json:"folder"`
}

type thumbnailBatchRequest struct {
	Paths []string `json:"paths"`
}

// Progress is the payload of indexing-progress and import-progress events.
type Progress struct {
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Done    bool   `json:"done,omitempty"`
	File    string `json:"file,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Event is one decoded server-sent event.
type Event struct {
	Type     string
	Progress Progress
}

// IsProgress reports whether the event carries a Progress payload.
func (e Event) IsProgress() bool {
	return e.Type == EventIndexingProgress || e.Type == EventImportProgress
}
