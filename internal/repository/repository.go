package repository

import (
	"context"
	"errors"

	"docvault/internal/model"
)

var (
	// ErrNotFound is returned when no row matches the lookup.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint (filename, file_id) is violated.
	ErrDuplicate = errors.New("duplicate record")
)

// BlobRepository persists blob metadata, one partition per bucket.
// Strictly persistence; ordering of multi-step writes is the caller's concern.
type BlobRepository interface {
	// Create inserts a blob row. The caller provides ID and CreatedAt.
	Create(ctx context.Context, b *model.Blob) (*model.Blob, error)

	// FindByID returns ErrNotFound when the bucket holds no such blob.
	FindByID(ctx context.Context, bucket model.Bucket, id string) (*model.Blob, error)

	// FindByFilename returns ErrNotFound when the filename is free in the bucket.
	FindByFilename(ctx context.Context, bucket model.Bucket, filename string) (*model.Blob, error)

	// List returns every blob of the bucket in the requested order.
	List(ctx context.Context, bucket model.Bucket, q ListQuery) ([]model.Blob, error)

	// Delete removes a blob row. Deleting a missing row is not an error.
	Delete(ctx context.Context, bucket model.Bucket, id string) error

	// IncrementCounter atomically adds one to the counter and returns the updated blob.
	IncrementCounter(ctx context.Context, bucket model.Bucket, id string, c model.Counter) (*model.Blob, error)

	// SetContentRef writes (or clears, when recordID is nil) the back-reference.
	SetContentRef(ctx context.Context, bucket model.Bucket, id string, recordID *string) error
}

// ContentRepository persists content records of extractable buckets.
type ContentRepository interface {
	Create(ctx context.Context, bucket model.Bucket, rec *model.ContentRecord) (*model.ContentRecord, error)

	// FindByFileID returns the record owned by the blob, or ErrNotFound.
	FindByFileID(ctx context.Context, bucket model.Bucket, fileID string) (*model.ContentRecord, error)

	// Delete removes a record by ID. Deleting a missing row is not an error.
	Delete(ctx context.Context, bucket model.Bucket, id string) error

	// Search returns records whose content contains term, case-insensitively, ordered by filename.
	Search(ctx context.Context, bucket model.Bucket, term string) ([]model.SearchHit, error)

	// List returns every record of the bucket.
	List(ctx context.Context, bucket model.Bucket) ([]model.ContentRecord, error)
}

// ListQuery holds the ordering of a blob listing.
type ListQuery struct {
	SortBy model.SortBy
	Order  model.Order
}
