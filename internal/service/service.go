// Package service is the ingestion orchestrator and query engine. It keeps
// every blob of an extractable bucket paired with exactly one content record
// across create, update and delete.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"docvault/internal/blobstore"
	"docvault/internal/cache"
	"docvault/internal/classify"
	"docvault/internal/extract"
	"docvault/internal/lock"
	"docvault/internal/model"
	"docvault/internal/repository"
)

var tracer = otel.Tracer("docvault/internal/service")

// FileService defines the use cases for stored files.
type FileService interface {
	// Ingest classifies, extracts and stores a new file.
	Ingest(ctx context.Context, in IngestInput) (*IngestResult, error)

	// Update replaces a blob in place, keeping its id and its content record id.
	Update(ctx context.Context, in UpdateInput) (*UpdateResult, error)

	// Delete removes the content record, then the blob.
	Delete(ctx context.Context, bucket model.Bucket, blobID string) error

	// Fetch returns the bytes (or, for inline views of extractable buckets,
	// the content record) and moves exactly one read counter.
	Fetch(ctx context.Context, bucket model.Bucket, blobID string, inline bool) (*FetchResult, error)

	// DownloadLink hands out a presigned URL for the bytes and counts it as
	// one download.
	DownloadLink(ctx context.Context, bucket model.Bucket, blobID string, ttl time.Duration) (*DownloadLink, error)

	// List returns blob summaries of one bucket or of all buckets.
	List(ctx context.Context, q ListQuery) ([]model.BlobSummary, error)

	// Search returns every content record containing term, case-insensitively.
	Search(ctx context.Context, term string) ([]model.SearchHit, error)

	// Verify scans all buckets for blob/content invariant violations. Read-only.
	Verify(ctx context.Context) ([]IntegrityIssue, error)
}

type IngestInput struct {
	Data      []byte
	Filename  string
	MediaType string
}

type IngestResult struct {
	BlobID          string       `json:"blob_id"`
	Bucket          model.Bucket `json:"bucket"`
	ContentRecordID *string      `json:"content_record_id,omitempty"`
}

type UpdateInput struct {
	BlobID    string
	Bucket    model.Bucket
	Data      []byte
	Filename  string
	MediaType string
}

type UpdateResult struct {
	BlobID          string  `json:"blob_id"`
	ContentRecordID *string `json:"content_record_id,omitempty"`
}

// FetchResult carries either Body or Content. The caller closes Body.
type FetchResult struct {
	Blob    *model.Blob
	Body    io.ReadCloser
	Content *model.ContentRecord
}

// DownloadLink is a presigned URL for the bytes of one blob.
type DownloadLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ListQuery selects one bucket (nil for all) and the ordering.
type ListQuery struct {
	Bucket *model.Bucket
	SortBy model.SortBy
	Order  model.Order
}

// Deps are the collaborators of the file service. Blobs, Contents,
// Classifier and Extractor are required.
type Deps struct {
	Blobs      *blobstore.Store
	Contents   repository.ContentRepository
	Classifier *classify.Classifier
	Extractor  *extract.Extractor

	Locker  lock.Locker         // defaults to an in-process lock
	Cache   *cache.ContentCache // nil disables caching
	Metrics *Metrics            // nil disables metrics
	Logger  *slog.Logger

	MaxPayloadBytes int64
	AllowedTypes    []string // empty allows every type

	NewID func() string
	Now   func() time.Time
}

// fileService is the concrete implementation of FileService.
type fileService struct {
	blobs      *blobstore.Store
	contents   repository.ContentRepository
	classifier *classify.Classifier
	extractor  *extract.Extractor
	locker     lock.Locker
	cache      *cache.ContentCache
	metrics    *Metrics
	logger     *slog.Logger
	maxPayload int64
	allowed    map[string]struct{}
	newID      func() string
	now        func() time.Time
}

// DefaultMaxPayloadBytes applies when Deps.MaxPayloadBytes is zero.
const DefaultMaxPayloadBytes = 5 * 1024 * 1024

// NewFileService constructs a new FileService.
func NewFileService(d Deps) FileService {
	s := &fileService{
		blobs:      d.Blobs,
		contents:   d.Contents,
		classifier: d.Classifier,
		extractor:  d.Extractor,
		locker:     d.Locker,
		cache:      d.Cache,
		metrics:    d.Metrics,
		logger:     d.Logger,
		maxPayload: d.MaxPayloadBytes,
		newID:      d.NewID,
		now:        d.Now,
	}
	if s.classifier == nil {
		s.classifier = classify.Default()
	}
	if s.locker == nil {
		s.locker = lock.NewLocal()
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.maxPayload <= 0 {
		s.maxPayload = DefaultMaxPayloadBytes
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if len(d.AllowedTypes) > 0 {
		s.allowed = make(map[string]struct{}, len(d.AllowedTypes))
		for _, t := range d.AllowedTypes {
			s.allowed[normalizeType(t)] = struct{}{}
		}
	}
	return s
}

func normalizeType(mediaType string) string {
	t, _, _ := strings.Cut(mediaType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// checkPayload runs the checks shared by ingest and update.
func (s *fileService) checkPayload(filename, mediaType string, data []byte) error {
	if strings.TrimSpace(filename) == "" {
		return fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	if n := int64(len(data)); n > s.maxPayload {
		return &PayloadTooLargeError{Size: n, Limit: s.maxPayload}
	}
	if s.allowed != nil {
		if _, ok := s.allowed[normalizeType(mediaType)]; !ok {
			return fmt.Errorf("%w: %s", ErrTypeNotAllowed, mediaType)
		}
	}
	return nil
}

func (s *fileService) runExtractor(cls classify.Classification, mediaType string, data []byte) (extract.Result, error) {
	start := time.Now()
	res, err := s.extractor.Extract(extract.Input{
		Kind:      cls.Extractor,
		Bucket:    cls.Bucket,
		MediaType: mediaType,
		Data:      data,
	})
	s.metrics.observeExtract(cls.Bucket, time.Since(start))
	return res, err
}

// undo runs compensating steps in order. The first failing step leaves the
// two stores out of step, which is reported as a RollbackError.
func (s *fileService) undo(ctx context.Context, op string, cause error, steps ...func(context.Context) error) error {
	ctx = context.WithoutCancel(ctx)
	for _, step := range steps {
		if err := step(ctx); err != nil {
			s.logger.ErrorContext(ctx, "rollback failed", "op", op, "error", cause, "rollback_error", err)
			return &blobstore.RollbackError{Op: op, Cause: cause, RollbackErr: err}
		}
	}
	return fmt.Errorf("%s failed: %w", op, cause)
}

func (s *fileService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "FileService."+name, trace.WithAttributes(attrs...))
}

// finish ends the span and records the outcome of op.
func (s *fileService) finish(span trace.Span, op string, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
	s.metrics.observeOp(op, err)
}

func notFoundOr(err error, bucket model.Bucket, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Bucket: bucket, BlobID: id}
	}
	return err
}

func blobLockKey(id string) string { return "blob:" + id }

func nameLockKey(bucket model.Bucket, filename string) string {
	return "name:" + bucket.String() + ":" + filename
}
