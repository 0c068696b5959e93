// Package blobstore is the partitioned blob store: object bytes in a Storage
// backend, metadata and read counters in a BlobRepository. The object is
// always written before its row and removed before its row, so a row never
// points at bytes that were not stored.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

// PutInput describes a blob to create. ID is assigned by the caller so an
// update can recreate a blob under its original identity.
type PutInput struct {
	ID        string
	Bucket    model.Bucket
	Filename  string
	MediaType string
	Data      []byte
}

type Store struct {
	objects storage.Storage
	repo    repository.BlobRepository
	now     func() time.Time
}

type Option func(*Store)

// WithClock sets the source of blob creation times.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(objects storage.Storage, repo repository.BlobRepository, opts ...Option) *Store {
	s := &Store{objects: objects, repo: repo, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Put uploads the bytes, then inserts the metadata row with zero counters.
// A failed insert removes the uploaded object again.
func (s *Store) Put(ctx context.Context, in PutInput) (*model.Blob, error) {
	key := model.StorageKeyFor(in.Bucket, in.ID)

	info, err := s.objects.Put(ctx, key, bytes.NewReader(in.Data), storage.PutObjectOptions{
		Size:        int64(len(in.Data)),
		ContentType: in.MediaType,
		Metadata: map[string]string{
			"original-filename": in.Filename,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	stored, err := s.repo.Create(ctx, &model.Blob{
		ID:         in.ID,
		Filename:   in.Filename,
		Bucket:     in.Bucket,
		MediaType:  in.MediaType,
		Size:       int64(len(in.Data)),
		StorageKey: info.Key,
		CreatedAt:  s.now(),
	})
	if err != nil {
		if delErr := s.objects.Delete(ctx, key); delErr != nil {
			return nil, &RollbackError{Op: "db save", Cause: err, RollbackErr: delErr}
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

// Restore writes b back exactly as it was read: the object under its storage
// key, then the row with its original counters, timestamps and back-reference.
// A row that is still present counts as restored.
func (s *Store) Restore(ctx context.Context, b *model.Blob, data []byte) error {
	_, err := s.objects.Put(ctx, b.StorageKey, bytes.NewReader(data), storage.PutObjectOptions{
		Size:        int64(len(data)),
		ContentType: b.MediaType,
		Metadata: map[string]string{
			"original-filename": b.Filename,
		},
	})
	if err != nil {
		return fmt.Errorf("restore object %s: %w", b.StorageKey, err)
	}
	if _, err := s.repo.Create(ctx, b); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return fmt.Errorf("restore blob row: %w", err)
	}
	return nil
}

// Get returns blob metadata; repository.ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, bucket model.Bucket, id string) (*model.Blob, error) {
	return s.repo.FindByID(ctx, bucket, id)
}

// FindByFilename returns the blob holding filename in bucket; repository.ErrNotFound when free.
func (s *Store) FindByFilename(ctx context.Context, bucket model.Bucket, filename string) (*model.Blob, error) {
	return s.repo.FindByFilename(ctx, bucket, filename)
}

// Open streams the blob bytes. The caller closes the reader.
func (s *Store) Open(ctx context.Context, b *model.Blob) (io.ReadCloser, error) {
	rc, _, err := s.objects.Get(ctx, b.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("open object %s: %w", b.StorageKey, err)
	}
	return rc, nil
}

// Delete removes the object, then the row. Both steps tolerate a missing
// target so an interrupted delete can simply be retried.
func (s *Store) Delete(ctx context.Context, b *model.Blob) error {
	if err := s.objects.Delete(ctx, b.StorageKey); err != nil {
		return fmt.Errorf("delete storage: %w", err)
	}
	if err := s.repo.Delete(ctx, b.Bucket, b.ID); err != nil {
		return fmt.Errorf("delete blob row: %w", err)
	}
	return nil
}

// PresignGet returns a time-limited URL that reads the blob bytes straight
// from the object store.
func (s *Store) PresignGet(ctx context.Context, b *model.Blob, expiry time.Duration) (string, error) {
	u, err := s.objects.PresignGet(ctx, b.StorageKey, expiry)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", b.StorageKey, err)
	}
	return u, nil
}

// Touch moves exactly one read counter and returns the updated blob.
func (s *Store) Touch(ctx context.Context, bucket model.Bucket, id string, c model.Counter) (*model.Blob, error) {
	return s.repo.IncrementCounter(ctx, bucket, id, c)
}

// Link writes the back-reference from a blob to its content record.
func (s *Store) Link(ctx context.Context, bucket model.Bucket, id string, recordID *string) error {
	return s.repo.SetContentRef(ctx, bucket, id, recordID)
}

// List returns every blob of one bucket.
func (s *Store) List(ctx context.Context, bucket model.Bucket, q repository.ListQuery) ([]model.Blob, error) {
	return s.repo.List(ctx, bucket, q)
}

// RollbackError reports a failed step whose compensating action failed as well.
// Both stores may now disagree.
type RollbackError struct {
	Op          string
	Cause       error
	RollbackErr error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("%s failed: %v; rollback failed: %v", e.Op, e.Cause, e.RollbackErr)
}

func (e *RollbackError) Unwrap() error { return e.Cause }
