package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
	"docvault/internal/service"
)

type MockFileService struct {
	mock.Mock
}

func (m *MockFileService) Ingest(ctx context.Context, in service.IngestInput) (*service.IngestResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockFileService) Update(ctx context.Context, in service.UpdateInput) (*service.UpdateResult, error) {
	args := m.Called(ctx, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.UpdateResult), args.Error(1)
}

func (m *MockFileService) Delete(ctx context.Context, bucket model.Bucket, blobID string) error {
	return m.Called(ctx, bucket, blobID).Error(0)
}

func (m *MockFileService) Fetch(ctx context.Context, bucket model.Bucket, blobID string, inline bool) (*service.FetchResult, error) {
	args := m.Called(ctx, bucket, blobID, inline)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.FetchResult), args.Error(1)
}

func (m *MockFileService) DownloadLink(ctx context.Context, bucket model.Bucket, blobID string, ttl time.Duration) (*service.DownloadLink, error) {
	args := m.Called(ctx, bucket, blobID, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.DownloadLink), args.Error(1)
}

func (m *MockFileService) List(ctx context.Context, q service.ListQuery) ([]model.BlobSummary, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BlobSummary), args.Error(1)
}

func (m *MockFileService) Search(ctx context.Context, term string) ([]model.SearchHit, error) {
	args := m.Called(ctx, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchHit), args.Error(1)
}

func (m *MockFileService) Verify(ctx context.Context) ([]service.IntegrityIssue, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]service.IntegrityIssue), args.Error(1)
}

var _ service.FileService = (*MockFileService)(nil)
