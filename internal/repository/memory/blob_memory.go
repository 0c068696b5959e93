// Package memory holds in-process repositories for tests and the CLI's
// --memory mode. They honour the same uniqueness rules as the SQL schema.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// BlobRepository stores blob metadata in memory, partitioned by bucket.
type BlobRepository struct {
	mu    sync.RWMutex
	blobs map[model.Bucket]map[string]model.Blob
}

func NewBlobRepository() *BlobRepository {
	return &BlobRepository{blobs: make(map[model.Bucket]map[string]model.Blob)}
}

var _ repository.BlobRepository = (*BlobRepository)(nil)

func (r *BlobRepository) Create(_ context.Context, b *model.Blob) (*model.Blob, error) {
	if !b.Bucket.Valid() {
		return nil, fmt.Errorf("unknown bucket %q", b.Bucket)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	part := r.blobs[b.Bucket]
	if part == nil {
		part = make(map[string]model.Blob)
		r.blobs[b.Bucket] = part
	}
	if _, ok := part[b.ID]; ok {
		return nil, fmt.Errorf("%w: id %s", repository.ErrDuplicate, b.ID)
	}
	for _, other := range part {
		if other.Filename == b.Filename {
			return nil, fmt.Errorf("%w: filename %s", repository.ErrDuplicate, b.Filename)
		}
	}
	stored := *b
	stored.ContentRecordID = cloneRef(b.ContentRecordID)
	part[b.ID] = stored
	return blobCopy(stored), nil
}

func (r *BlobRepository) FindByID(_ context.Context, bucket model.Bucket, id string) (*model.Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.blobs[bucket][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return blobCopy(b), nil
}

func (r *BlobRepository) FindByFilename(_ context.Context, bucket model.Bucket, filename string) (*model.Blob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, b := range r.blobs[bucket] {
		if b.Filename == filename {
			return blobCopy(b), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *BlobRepository) List(_ context.Context, bucket model.Bucket, q repository.ListQuery) ([]model.Blob, error) {
	r.mu.RLock()
	items := make([]model.Blob, 0, len(r.blobs[bucket]))
	for _, b := range r.blobs[bucket] {
		items = append(items, *blobCopy(b))
	}
	r.mu.RUnlock()

	desc := q.Order != model.OrderAsc
	sort.Slice(items, func(i, j int) bool {
		c := q.SortBy.Compare(items[i].Summary(), items[j].Summary())
		if desc {
			return c > 0
		}
		return c < 0
	})
	return items, nil
}

func (r *BlobRepository) Delete(_ context.Context, bucket model.Bucket, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.blobs[bucket], id)
	return nil
}

func (r *BlobRepository) IncrementCounter(_ context.Context, bucket model.Bucket, id string, c model.Counter) (*model.Blob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blobs[bucket][id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if c == model.CounterViews {
		b.ViewsCount++
	} else {
		b.DownloadsCount++
	}
	r.blobs[bucket][id] = b
	return blobCopy(b), nil
}

func (r *BlobRepository) SetContentRef(_ context.Context, bucket model.Bucket, id string, recordID *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.blobs[bucket][id]
	if !ok {
		return repository.ErrNotFound
	}
	b.ContentRecordID = cloneRef(recordID)
	r.blobs[bucket][id] = b
	return nil
}

func blobCopy(b model.Blob) *model.Blob {
	b.ContentRecordID = cloneRef(b.ContentRecordID)
	return &b
}

func cloneRef(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
