// Package cache keeps recently viewed content records in memory so repeated
// inline views skip the content table.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"docvault/internal/model"
)

type entry struct {
	rec model.ContentRecord
	// blobCreated is the CreatedAt of the blob the record was read for.
	// An update recreates the blob, so a different value means a stale entry.
	blobCreated time.Time
}

// ContentCache is an expiring LRU of content records keyed by bucket and blob id.
// A nil *ContentCache is valid and caches nothing.
type ContentCache struct {
	lru *expirable.LRU[string, entry]
}

// New returns nil when size is not positive.
func New(size int, ttl time.Duration) *ContentCache {
	if size <= 0 {
		return nil
	}
	return &ContentCache{lru: expirable.NewLRU[string, entry](size, nil, ttl)}
}

func key(bucket model.Bucket, blobID string) string {
	return bucket.String() + "/" + blobID
}

// Get returns the record cached for blob. An entry added for another
// incarnation of the blob is dropped and reported as a miss.
func (c *ContentCache) Get(bucket model.Bucket, blob *model.Blob) (*model.ContentRecord, bool) {
	if c == nil || blob == nil {
		return nil, false
	}
	k := key(bucket, blob.ID)
	e, ok := c.lru.Get(k)
	if !ok {
		return nil, false
	}
	if !e.blobCreated.Equal(blob.CreatedAt) {
		c.lru.Remove(k)
		return nil, false
	}
	return &e.rec, true
}

// Add caches rec as the content of blob.
func (c *ContentCache) Add(blob *model.Blob, rec *model.ContentRecord) {
	if c == nil || blob == nil || rec == nil {
		return
	}
	c.lru.Add(key(blob.Bucket, blob.ID), entry{rec: *rec, blobCreated: blob.CreatedAt})
}

func (c *ContentCache) Invalidate(bucket model.Bucket, blobID string) {
	if c == nil {
		return
	}
	c.lru.Remove(key(bucket, blobID))
}

func (c *ContentCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
