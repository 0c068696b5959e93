package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

func (s *fileService) Fetch(ctx context.Context, bucket model.Bucket, blobID string, inline bool) (_ *FetchResult, err error) {
	ctx, span := s.startSpan(ctx, "Fetch",
		attribute.String("blob_id", blobID),
		attribute.String("bucket", bucket.String()),
		attribute.Bool("inline", inline),
	)
	defer func() { s.finish(span, "fetch", err) }()

	if blobID == "" {
		return nil, fmt.Errorf("%w: blob id is required", ErrInvalidInput)
	}
	if !bucket.Valid() {
		return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidInput, bucket)
	}

	counter := model.CounterDownloads
	if inline {
		counter = model.CounterViews
	}
	blob, err := s.blobs.Touch(ctx, bucket, blobID, counter)
	if err != nil {
		return nil, notFoundOr(err, bucket, blobID)
	}

	if inline && bucket.Extractable() {
		if rec, ok := s.cache.Get(bucket, blob); ok {
			return &FetchResult{Blob: blob, Content: rec}, nil
		}
		rec, err := s.contents.FindByFileID(ctx, bucket, blobID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, &ContentNotFoundError{Bucket: bucket, BlobID: blobID}
		}
		if err != nil {
			return nil, fmt.Errorf("load content record: %w", err)
		}
		s.cache.Add(blob, rec)
		return &FetchResult{Blob: blob, Content: rec}, nil
	}

	body, err := s.blobs.Open(ctx, blob)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &InconsistentStateError{Bucket: bucket, BlobID: blobID, Detail: "object missing from storage"}
	}
	if err != nil {
		return nil, err
	}
	return &FetchResult{Blob: blob, Body: body}, nil
}

const (
	// DefaultLinkTTL applies when DownloadLink is called with a zero ttl.
	DefaultLinkTTL = 15 * time.Minute

	// MaxLinkTTL is the longest expiry S3 accepts for a presigned URL.
	MaxLinkTTL = 7 * 24 * time.Hour
)

func (s *fileService) DownloadLink(ctx context.Context, bucket model.Bucket, blobID string, ttl time.Duration) (_ *DownloadLink, err error) {
	ctx, span := s.startSpan(ctx, "DownloadLink",
		attribute.String("blob_id", blobID),
		attribute.String("bucket", bucket.String()),
	)
	defer func() { s.finish(span, "link", err) }()

	if blobID == "" {
		return nil, fmt.Errorf("%w: blob id is required", ErrInvalidInput)
	}
	if !bucket.Valid() {
		return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidInput, bucket)
	}
	if ttl == 0 {
		ttl = DefaultLinkTTL
	}
	if ttl < time.Second || ttl > MaxLinkTTL {
		return nil, fmt.Errorf("%w: link expiry must be between 1s and %s", ErrInvalidInput, MaxLinkTTL)
	}

	blob, err := s.blobs.Touch(ctx, bucket, blobID, model.CounterDownloads)
	if err != nil {
		return nil, notFoundOr(err, bucket, blobID)
	}
	u, err := s.blobs.PresignGet(ctx, blob, ttl)
	if err != nil {
		return nil, err
	}
	return &DownloadLink{URL: u, ExpiresAt: s.now().Add(ttl)}, nil
}

func (s *fileService) List(ctx context.Context, q ListQuery) (_ []model.BlobSummary, err error) {
	ctx, span := s.startSpan(ctx, "List")
	defer func() { s.finish(span, "list", err) }()

	buckets := model.Buckets
	if q.Bucket != nil {
		if !q.Bucket.Valid() {
			return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidInput, *q.Bucket)
		}
		buckets = []model.Bucket{*q.Bucket}
	}
	if q.SortBy == "" {
		q.SortBy = model.SortByCreated
	}
	if q.Order == "" {
		q.Order = model.OrderDesc
	}
	rq := repository.ListQuery{SortBy: q.SortBy, Order: q.Order}

	parts := make([][]model.Blob, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range buckets {
		g.Go(func() error {
			items, err := s.blobs.List(gctx, b, rq)
			if err != nil {
				return fmt.Errorf("list %s: %w", b, err)
			}
			parts[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.BlobSummary, 0)
	for _, items := range parts {
		for _, b := range items {
			out = append(out, b.Summary())
		}
	}
	if len(buckets) > 1 {
		sort.SliceStable(out, func(i, j int) bool {
			c := q.SortBy.Compare(out[i], out[j])
			if q.Order == model.OrderAsc {
				return c < 0
			}
			return c > 0
		})
	}
	return out, nil
}

func (s *fileService) Search(ctx context.Context, term string) (_ []model.SearchHit, err error) {
	ctx, span := s.startSpan(ctx, "Search", attribute.String("term", term))
	defer func() { s.finish(span, "search", err) }()

	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: search term is required", ErrInvalidInput)
	}

	buckets := model.ExtractableBuckets()
	parts := make([][]model.SearchHit, len(buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range buckets {
		g.Go(func() error {
			hits, err := s.contents.Search(gctx, b, term)
			if err != nil {
				return fmt.Errorf("search %s: %w", b, err)
			}
			parts[i] = hits
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]model.SearchHit, 0)
	for _, hits := range parts {
		out = append(out, hits...)
	}
	if len(out) == 0 {
		return nil, &NoMatchError{Term: term}
	}
	span.SetAttributes(attribute.Int("hits", len(out)))
	return out, nil
}

// Problem names an invariant violation found by Verify.
type Problem string

const (
	ProblemMissingRecord       Problem = "missing_content_record"
	ProblemOrphanRecord        Problem = "orphan_content_record"
	ProblemBackRefMismatch     Problem = "back_reference_mismatch"
	ProblemUnexpectedReference Problem = "unexpected_back_reference"
)

type IntegrityIssue struct {
	Bucket          model.Bucket `json:"bucket"`
	BlobID          string       `json:"blob_id,omitempty"`
	ContentRecordID string       `json:"content_record_id,omitempty"`
	Problem         Problem      `json:"problem"`
}

func (s *fileService) Verify(ctx context.Context) (_ []IntegrityIssue, err error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer func() { s.finish(span, "verify", err) }()

	parts := make([][]IntegrityIssue, len(model.Buckets))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range model.Buckets {
		g.Go(func() error {
			issues, err := s.verifyBucket(gctx, b)
			if err != nil {
				return fmt.Errorf("verify %s: %w", b, err)
			}
			parts[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]IntegrityIssue, 0)
	for _, issues := range parts {
		out = append(out, issues...)
	}
	if len(out) > 0 {
		s.logger.WarnContext(ctx, "integrity issues found", "count", len(out))
	}
	return out, nil
}

func (s *fileService) verifyBucket(ctx context.Context, bucket model.Bucket) ([]IntegrityIssue, error) {
	blobs, err := s.blobs.List(ctx, bucket, repository.ListQuery{SortBy: model.SortByCreated, Order: model.OrderAsc})
	if err != nil {
		return nil, err
	}

	var issues []IntegrityIssue
	if !bucket.Extractable() {
		for _, b := range blobs {
			if b.ContentRecordID != nil {
				issues = append(issues, IntegrityIssue{Bucket: bucket, BlobID: b.ID, ContentRecordID: *b.ContentRecordID, Problem: ProblemUnexpectedReference})
			}
		}
		return issues, nil
	}

	records, err := s.contents.List(ctx, bucket)
	if err != nil {
		return nil, err
	}
	byFile := make(map[string]model.ContentRecord, len(records))
	for _, r := range records {
		byFile[r.FileID] = r
	}

	seen := make(map[string]struct{}, len(blobs))
	for _, b := range blobs {
		seen[b.ID] = struct{}{}
		rec, ok := byFile[b.ID]
		switch {
		case !ok:
			issues = append(issues, IntegrityIssue{Bucket: bucket, BlobID: b.ID, Problem: ProblemMissingRecord})
		case b.ContentRecordID == nil || *b.ContentRecordID != rec.ID:
			issues = append(issues, IntegrityIssue{Bucket: bucket, BlobID: b.ID, ContentRecordID: rec.ID, Problem: ProblemBackRefMismatch})
		}
	}
	for _, r := range records {
		if _, ok := seen[r.FileID]; !ok {
			issues = append(issues, IntegrityIssue{Bucket: bucket, BlobID: r.FileID, ContentRecordID: r.ID, Problem: ProblemOrphanRecord})
		}
	}
	return issues, nil
}
