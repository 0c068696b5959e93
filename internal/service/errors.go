package service

import (
	"errors"
	"fmt"

	"docvault/internal/blobstore"
	"docvault/internal/extract"
	"docvault/internal/model"
)

var (
	// ErrInvalidInput marks requests rejected before any work is done.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTypeNotAllowed is returned when ALLOWED_TYPES is set and the declared type is not in it.
	ErrTypeNotAllowed = errors.New("media type not allowed")
)

type PayloadTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *PayloadTooLargeError) Error() string {
	return fmt.Sprintf("payload of %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

type DuplicateFilenameError struct {
	Bucket   model.Bucket
	Filename string
}

func (e *DuplicateFilenameError) Error() string {
	return fmt.Sprintf("filename %q already exists in bucket %s", e.Filename, e.Bucket)
}

// BucketMismatchError rejects an update whose new media type classifies into
// another bucket. The caller should resubmit with a matching type.
type BucketMismatchError struct {
	Expected model.Bucket
	Got      model.Bucket
}

func (e *BucketMismatchError) Error() string {
	return fmt.Sprintf("media type belongs to bucket %s, blob lives in %s", e.Got, e.Expected)
}

type NotFoundError struct {
	Bucket model.Bucket
	BlobID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("blob %s not found in bucket %s", e.BlobID, e.Bucket)
}

// ContentNotFoundError means the blob exists but has no content record to view.
type ContentNotFoundError struct {
	Bucket model.Bucket
	BlobID string
}

func (e *ContentNotFoundError) Error() string {
	return fmt.Sprintf("no content record for blob %s in bucket %s", e.BlobID, e.Bucket)
}

// InconsistentStateError signals that the blob/content invariant was already
// broken by an earlier operation. It is a data-integrity fault, not a not-found.
type InconsistentStateError struct {
	Bucket model.Bucket
	BlobID string
	Detail string
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("inconsistent state for blob %s in bucket %s: %s", e.BlobID, e.Bucket, e.Detail)
}

type NoMatchError struct {
	Term string
}

func (e *NoMatchError) Error() string {
	return fmt.Sprintf("no content matches %q", e.Term)
}

// Kind groups errors by who has to act on them.
type Kind int

const (
	KindInternal Kind = iota
	KindClientInput
	KindNotFound
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindNotFound:
		return "not_found"
	case KindIntegrity:
		return "integrity"
	default:
		return "internal"
	}
}

// KindOf classifies err. Nil is KindInternal; callers check for nil first.
func KindOf(err error) Kind {
	var (
		tooLarge  *PayloadTooLargeError
		dup       *DuplicateFilenameError
		mismatch  *BucketMismatchError
		exErr     *extract.ExtractionError
		encErr    *extract.EncodingError
		malformed *extract.MalformedPayloadError
		notFound  *NotFoundError
		noContent *ContentNotFoundError
		noMatch   *NoMatchError
		broken    *InconsistentStateError
		rollback  *blobstore.RollbackError
	)
	switch {
	case errors.As(err, &broken), errors.As(err, &rollback):
		return KindIntegrity
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrTypeNotAllowed),
		errors.As(err, &tooLarge), errors.As(err, &dup), errors.As(err, &mismatch),
		errors.As(err, &exErr), errors.As(err, &encErr), errors.As(err, &malformed):
		return KindClientInput
	case errors.As(err, &notFound), errors.As(err, &noContent), errors.As(err, &noMatch):
		return KindNotFound
	}
	return KindInternal
}
