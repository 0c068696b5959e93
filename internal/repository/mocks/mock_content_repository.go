package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
)

type MockContentRepository struct {
	mock.Mock
}

func (m *MockContentRepository) Create(ctx context.Context, bucket model.Bucket, rec *model.ContentRecord) (*model.ContentRecord, error) {
	args := m.Called(ctx, bucket, rec)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentRecord), args.Error(1)
}

func (m *MockContentRepository) FindByFileID(ctx context.Context, bucket model.Bucket, fileID string) (*model.ContentRecord, error) {
	args := m.Called(ctx, bucket, fileID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.ContentRecord), args.Error(1)
}

func (m *MockContentRepository) Delete(ctx context.Context, bucket model.Bucket, id string) error {
	return m.Called(ctx, bucket, id).Error(0)
}

func (m *MockContentRepository) Search(ctx context.Context, bucket model.Bucket, term string) ([]model.SearchHit, error) {
	args := m.Called(ctx, bucket, term)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.SearchHit), args.Error(1)
}

func (m *MockContentRepository) List(ctx context.Context, bucket model.Bucket) ([]model.ContentRecord, error) {
	args := m.Called(ctx, bucket)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ContentRecord), args.Error(1)
}
