package service

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"

	"docvault/internal/blobstore"
	"docvault/internal/extract"
	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/storage"
)

func (s *fileService) Ingest(ctx context.Context, in IngestInput) (_ *IngestResult, err error) {
	ctx, span := s.startSpan(ctx, "Ingest",
		attribute.String("filename", in.Filename),
		attribute.Int("size", len(in.Data)),
	)
	defer func() { s.finish(span, "ingest", err) }()

	if err := s.checkPayload(in.Filename, in.MediaType, in.Data); err != nil {
		return nil, err
	}
	cls := s.classifier.Classify(in.MediaType)
	span.SetAttributes(attribute.String("bucket", cls.Bucket.String()))

	unlock, err := s.locker.Lock(ctx, nameLockKey(cls.Bucket, in.Filename))
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.ensureFilenameFree(ctx, cls.Bucket, in.Filename, ""); err != nil {
		return nil, err
	}

	// Extraction is pure; a failure here leaves nothing to roll back.
	var text extract.Result
	if cls.Extractable {
		if text, err = s.runExtractor(cls, in.MediaType, in.Data); err != nil {
			return nil, err
		}
	}

	blob, err := s.putBlob(ctx, blobstore.PutInput{
		ID:        s.newID(),
		Bucket:    cls.Bucket,
		Filename:  in.Filename,
		MediaType: in.MediaType,
		Data:      in.Data,
	})
	if err != nil {
		return nil, err
	}

	res := &IngestResult{BlobID: blob.ID, Bucket: cls.Bucket}
	if cls.Extractable {
		recID, err := s.attachContent(ctx, blob, s.newID(), text)
		if err != nil {
			return nil, err
		}
		res.ContentRecordID = &recID
	}

	s.logger.InfoContext(ctx, "file ingested",
		"blob_id", blob.ID,
		"bucket", cls.Bucket,
		"filename", in.Filename,
		"size", blob.Size,
	)
	return res, nil
}

func (s *fileService) Update(ctx context.Context, in UpdateInput) (_ *UpdateResult, err error) {
	ctx, span := s.startSpan(ctx, "Update",
		attribute.String("blob_id", in.BlobID),
		attribute.String("bucket", in.Bucket.String()),
	)
	defer func() { s.finish(span, "update", err) }()

	if in.BlobID == "" {
		return nil, fmt.Errorf("%w: blob id is required", ErrInvalidInput)
	}
	if !in.Bucket.Valid() {
		return nil, fmt.Errorf("%w: unknown bucket %q", ErrInvalidInput, in.Bucket)
	}
	if err := s.checkPayload(in.Filename, in.MediaType, in.Data); err != nil {
		return nil, err
	}
	cls := s.classifier.Classify(in.MediaType)
	if cls.Bucket != in.Bucket {
		return nil, &BucketMismatchError{Expected: in.Bucket, Got: cls.Bucket}
	}

	unlock, err := s.locker.Lock(ctx, blobLockKey(in.BlobID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	old, err := s.blobs.Get(ctx, in.Bucket, in.BlobID)
	if err != nil {
		return nil, notFoundOr(err, in.Bucket, in.BlobID)
	}

	unlockName, err := s.locker.Lock(ctx, nameLockKey(in.Bucket, in.Filename))
	if err != nil {
		return nil, err
	}
	defer unlockName()

	if err := s.ensureFilenameFree(ctx, in.Bucket, in.Filename, old.ID); err != nil {
		return nil, err
	}

	// The new text must be in hand before the old record is touched.
	var text extract.Result
	if cls.Extractable {
		if text, err = s.runExtractor(cls, in.MediaType, in.Data); err != nil {
			return nil, err
		}
	}

	// Keep everything needed to put the old blob back if the replacement fails.
	oldData, err := s.readObject(ctx, old)
	if err != nil {
		return nil, err
	}
	var oldRec *model.ContentRecord
	if cls.Extractable {
		if oldRec, err = s.existingRecord(ctx, old); err != nil {
			return nil, err
		}
	}
	restore := func(ctx context.Context) error {
		if err := s.blobs.Restore(ctx, old, oldData); err != nil {
			return err
		}
		if oldRec == nil {
			return nil
		}
		if _, err := s.contents.Create(ctx, in.Bucket, oldRec); err != nil && !errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("restore content record: %w", err)
		}
		return nil
	}

	if oldRec != nil {
		if err := s.contents.Delete(ctx, in.Bucket, oldRec.ID); err != nil {
			return nil, fmt.Errorf("delete content record: %w", err)
		}
	}
	s.cache.Invalidate(in.Bucket, old.ID)
	if err := s.blobs.Delete(ctx, old); err != nil {
		return nil, s.undo(ctx, "delete blob", err, restore)
	}

	blob, err := s.putBlob(ctx, blobstore.PutInput{
		ID:        old.ID,
		Bucket:    in.Bucket,
		Filename:  in.Filename,
		MediaType: in.MediaType,
		Data:      in.Data,
	})
	if err != nil {
		return nil, s.undo(ctx, "recreate blob", err, restore)
	}

	res := &UpdateResult{BlobID: blob.ID}
	if cls.Extractable {
		recID, err := s.attachContent(ctx, blob, oldRec.ID, text, restore)
		if err != nil {
			return nil, err
		}
		res.ContentRecordID = &recID
	}
	// A fetch that overlapped the update may have cached the old record.
	s.cache.Invalidate(in.Bucket, blob.ID)

	s.logger.InfoContext(ctx, "file updated",
		"blob_id", blob.ID,
		"bucket", in.Bucket,
		"filename", in.Filename,
		"size", blob.Size,
	)
	return res, nil
}

func (s *fileService) Delete(ctx context.Context, bucket model.Bucket, blobID string) (err error) {
	ctx, span := s.startSpan(ctx, "Delete",
		attribute.String("blob_id", blobID),
		attribute.String("bucket", bucket.String()),
	)
	defer func() { s.finish(span, "delete", err) }()

	if blobID == "" {
		return fmt.Errorf("%w: blob id is required", ErrInvalidInput)
	}
	if !bucket.Valid() {
		return fmt.Errorf("%w: unknown bucket %q", ErrInvalidInput, bucket)
	}

	unlock, err := s.locker.Lock(ctx, blobLockKey(blobID))
	if err != nil {
		return err
	}
	defer unlock()

	blob, err := s.blobs.Get(ctx, bucket, blobID)
	if err != nil {
		return notFoundOr(err, bucket, blobID)
	}

	// A missing record does not stop the teardown, so a retry converges on NotFound.
	recordMissing := false
	if bucket.Extractable() {
		rec, err := s.existingRecord(ctx, blob)
		var broken *InconsistentStateError
		switch {
		case errors.As(err, &broken):
			recordMissing = true
		case err != nil:
			return err
		default:
			if err := s.contents.Delete(ctx, bucket, rec.ID); err != nil {
				return fmt.Errorf("delete content record: %w", err)
			}
		}
	}
	s.cache.Invalidate(bucket, blobID)

	if err := s.blobs.Delete(ctx, blob); err != nil {
		switch {
		case recordMissing:
			return &InconsistentStateError{Bucket: bucket, BlobID: blobID, Detail: "content record missing and blob delete failed: " + err.Error()}
		case bucket.Extractable():
			return &InconsistentStateError{Bucket: bucket, BlobID: blobID, Detail: "content record removed but blob delete failed: " + err.Error()}
		}
		return err
	}
	if recordMissing {
		return &InconsistentStateError{Bucket: bucket, BlobID: blobID, Detail: "content record was missing; blob removed"}
	}

	s.logger.InfoContext(ctx, "file deleted", "blob_id", blobID, "bucket", bucket)
	return nil
}

// ensureFilenameFree fails when another blob than self holds filename in bucket.
func (s *fileService) ensureFilenameFree(ctx context.Context, bucket model.Bucket, filename, self string) error {
	other, err := s.blobs.FindByFilename(ctx, bucket, filename)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("check filename: %w", err)
	case other.ID == self:
		return nil
	}
	return &DuplicateFilenameError{Bucket: bucket, Filename: filename}
}

// putBlob stores a blob, mapping a unique violation raced in after the
// filename check onto DuplicateFilenameError.
func (s *fileService) putBlob(ctx context.Context, in blobstore.PutInput) (*model.Blob, error) {
	blob, err := s.blobs.Put(ctx, in)
	if err == nil {
		return blob, nil
	}
	var rb *blobstore.RollbackError
	if errors.As(err, &rb) {
		s.logger.ErrorContext(ctx, "rollback failed", "op", rb.Op, "error", rb.Cause, "rollback_error", rb.RollbackErr)
		return nil, err
	}
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, &DuplicateFilenameError{Bucket: in.Bucket, Filename: in.Filename}
	}
	return nil, err
}

// attachContent writes the content record and then the back-reference.
// A failure undoes what this call wrote, removes the blob and then runs
// restore, if any.
func (s *fileService) attachContent(ctx context.Context, blob *model.Blob, recID string, text extract.Result, restore ...func(context.Context) error) (string, error) {
	dropBlob := func(ctx context.Context) error { return s.blobs.Delete(ctx, blob) }

	rec, err := s.contents.Create(ctx, blob.Bucket, &model.ContentRecord{
		ID:                recID,
		Filename:          blob.Filename,
		FileID:            blob.ID,
		Content:           text.Text,
		StructuredPayload: text.Structured,
		CreatedAt:         s.now(),
	})
	if err != nil {
		return "", s.undo(ctx, "content save", err, append([]func(context.Context) error{dropBlob}, restore...)...)
	}

	if err := s.blobs.Link(ctx, blob.Bucket, blob.ID, &rec.ID); err != nil {
		dropRecord := func(ctx context.Context) error { return s.contents.Delete(ctx, blob.Bucket, rec.ID) }
		return "", s.undo(ctx, "back-reference save", err, append([]func(context.Context) error{dropRecord, dropBlob}, restore...)...)
	}
	return rec.ID, nil
}

// readObject loads the stored bytes of b.
func (s *fileService) readObject(ctx context.Context, b *model.Blob) ([]byte, error) {
	rc, err := s.blobs.Open(ctx, b)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &InconsistentStateError{Bucket: b.Bucket, BlobID: b.ID, Detail: "object missing from storage"}
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", b.StorageKey, err)
	}
	return data, nil
}

// existingRecord loads the content record an extractable blob must have.
func (s *fileService) existingRecord(ctx context.Context, blob *model.Blob) (*model.ContentRecord, error) {
	rec, err := s.contents.FindByFileID(ctx, blob.Bucket, blob.ID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, &InconsistentStateError{Bucket: blob.Bucket, BlobID: blob.ID, Detail: "content record missing"}
	}
	if err != nil {
		return nil, fmt.Errorf("load content record: %w", err)
	}
	return rec, nil
}
