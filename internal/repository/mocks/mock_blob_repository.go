package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"docvault/internal/model"
	"docvault/internal/repository"
)

type MockBlobRepository struct {
	mock.Mock
}

func (m *MockBlobRepository) Create(ctx context.Context, b *model.Blob) (*model.Blob, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) FindByID(ctx context.Context, bucket model.Bucket, id string) (*model.Blob, error) {
	args := m.Called(ctx, bucket, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) FindByFilename(ctx context.Context, bucket model.Bucket, filename string) (*model.Blob, error) {
	args := m.Called(ctx, bucket, filename)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) List(ctx context.Context, bucket model.Bucket, q repository.ListQuery) ([]model.Blob, error) {
	args := m.Called(ctx, bucket, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Blob), args.Error(1)
}

func (m *MockBlobRepository) Delete(ctx context.Context, bucket model.Bucket, id string) error {
	return m.Called(ctx, bucket, id).Error(0)
}

func (m *MockBlobRepository) IncrementCounter(ctx context.Context, bucket model.Bucket, id string, c model.Counter) (*model.Blob, error) {
	args := m.Called(ctx, bucket, id, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Blob), args.Error(1)
}

func (m *MockBlobRepository) SetContentRef(ctx context.Context, bucket model.Bucket, id string, recordID *string) error {
	return m.Called(ctx, bucket, id, recordID).Error(0)
}
