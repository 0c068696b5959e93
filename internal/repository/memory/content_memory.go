package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"docvault/internal/model"
	"docvault/internal/repository"
)

// ContentRepository stores content records in memory, one partition per extractable bucket.
type ContentRepository struct {
	mu      sync.RWMutex
	records map[model.Bucket]map[string]model.ContentRecord
}

func NewContentRepository() *ContentRepository {
	return &ContentRepository{records: make(map[model.Bucket]map[string]model.ContentRecord)}
}

var _ repository.ContentRepository = (*ContentRepository)(nil)

func (r *ContentRepository) Create(_ context.Context, bucket model.Bucket, rec *model.ContentRecord) (*model.ContentRecord, error) {
	if !bucket.Extractable() {
		return nil, fmt.Errorf("bucket %q has no content table", bucket)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	part := r.records[bucket]
	if part == nil {
		part = make(map[string]model.ContentRecord)
		r.records[bucket] = part
	}
	if _, ok := part[rec.ID]; ok {
		return nil, fmt.Errorf("%w: id %s", repository.ErrDuplicate, rec.ID)
	}
	for _, other := range part {
		if other.FileID == rec.FileID {
			return nil, fmt.Errorf("%w: file_id %s", repository.ErrDuplicate, rec.FileID)
		}
	}
	stored := contentCopy(*rec)
	part[rec.ID] = *stored
	return contentCopy(*stored), nil
}

func (r *ContentRepository) FindByFileID(_ context.Context, bucket model.Bucket, fileID string) (*model.ContentRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.records[bucket] {
		if c.FileID == fileID {
			return contentCopy(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ContentRepository) Delete(_ context.Context, bucket model.Bucket, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records[bucket], id)
	return nil
}

func (r *ContentRepository) Search(_ context.Context, bucket model.Bucket, term string) ([]model.SearchHit, error) {
	needle := strings.ToLower(term)

	r.mu.RLock()
	hits := make([]model.SearchHit, 0)
	for _, c := range r.records[bucket] {
		if strings.Contains(strings.ToLower(c.Content), needle) {
			hits = append(hits, model.SearchHit{Filename: c.Filename, BlobID: c.FileID, Bucket: bucket})
		}
	}
	r.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Filename == hits[j].Filename {
			return hits[i].BlobID < hits[j].BlobID
		}
		return hits[i].Filename < hits[j].Filename
	})
	return hits, nil
}

func (r *ContentRepository) List(_ context.Context, bucket model.Bucket) ([]model.ContentRecord, error) {
	r.mu.RLock()
	items := make([]model.ContentRecord, 0, len(r.records[bucket]))
	for _, c := range r.records[bucket] {
		items = append(items, *contentCopy(c))
	}
	r.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool {
		if items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].ID < items[j].ID
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	return items, nil
}

func contentCopy(c model.ContentRecord) *model.ContentRecord {
	if c.StructuredPayload != nil {
		c.StructuredPayload = bytes.Clone(c.StructuredPayload)
	}
	return &c
}
