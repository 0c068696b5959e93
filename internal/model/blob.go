package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Blob is one stored binary object plus its storage metadata.
// Pure domain model, shared by the HTTP, service and persistence layers.
type Blob struct {
	ID              string    `json:"id"`
	Filename        string    `json:"filename"`
	Bucket          Bucket    `json:"bucket"`
	MediaType       string    `json:"media_type"`
	Size            int64     `json:"size"`
	StorageKey      string    `json:"storage_key"`
	DownloadsCount  int64     `json:"downloads_count"`
	ViewsCount      int64     `json:"views_count"`
	ContentRecordID *string   `json:"content_record_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Summary strips the storage-only fields from a blob.
func (b Blob) Summary() BlobSummary {
	return BlobSummary{
		ID:             b.ID,
		Filename:       b.Filename,
		Bucket:         b.Bucket,
		MediaType:      b.MediaType,
		Size:           b.Size,
		DownloadsCount: b.DownloadsCount,
		ViewsCount:     b.ViewsCount,
		CreatedAt:      b.CreatedAt,
	}
}

// StorageKeyFor returns the object key of a blob inside the object store.
func StorageKeyFor(bucket Bucket, id string) string {
	return bucket.String() + "/" + id
}

// ContentRecord holds the text extracted from exactly one blob.
type ContentRecord struct {
	ID                string          `json:"id"`
	Filename          string          `json:"filename"`
	FileID            string          `json:"file_id"`
	Content           string          `json:"content"`
	StructuredPayload json.RawMessage `json:"structured_payload,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// BlobSummary is a listing entry.
type BlobSummary struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	Bucket         Bucket    `json:"bucket"`
	MediaType      string    `json:"media_type"`
	Size           int64     `json:"size"`
	DownloadsCount int64     `json:"downloads_count"`
	ViewsCount     int64     `json:"views_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// SearchHit is one content record matching a search term.
type SearchHit struct {
	Filename string `json:"filename"`
	BlobID   string `json:"blob_id"`
	Bucket   Bucket `json:"bucket"`
}

// Counter names the per-blob read counter moved by a fetch.
type Counter string

const (
	CounterDownloads Counter = "downloads_count"
	CounterViews     Counter = "views_count"
)

// SortBy selects the listing order key.
type SortBy string

const (
	SortByCreated  SortBy = "created"
	SortByFilename SortBy = "filename"
)

// Compare orders two blobs by the sort key, then by id. Filename order is
// case-insensitive.
func (s SortBy) Compare(a, b BlobSummary) int {
	var c int
	if s == SortByFilename {
		c = strings.Compare(strings.ToLower(a.Filename), strings.ToLower(b.Filename))
	} else {
		c = a.CreatedAt.Compare(b.CreatedAt)
	}
	if c == 0 {
		c = strings.Compare(a.ID, b.ID)
	}
	return c
}

// Order is the listing direction.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseSortBy accepts "", "created", "created_at", "createdTime" and "filename".
func ParseSortBy(s string) (SortBy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "created", "created_at", "createdtime":
		return SortByCreated, nil
	case "filename", "name":
		return SortByFilename, nil
	}
	return "", fmt.Errorf("unknown sort key %q", s)
}

// ParseOrder accepts "", "asc" and "desc". Empty means descending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "desc":
		return OrderDesc, nil
	case "asc":
		return OrderAsc, nil
	}
	return "", fmt.Errorf("unknown order %q", s)
}
