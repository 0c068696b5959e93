package blobstore

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/repository/memory"
	repoMocks "docvault/internal/repository/mocks"
	"docvault/internal/storage"
	storeMocks "docvault/internal/storage/mocks"
)

func TestStore_PutOpenDelete(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemory()
	s := New(objects, memory.NewBlobRepository())

	b, err := s.Put(ctx, PutInput{ID: "id-1", Bucket: model.BucketImage, Filename: "cat.png", MediaType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)
	assert.Equal(t, "image/id-1", b.StorageKey)
	assert.Equal(t, int64(4), b.Size)
	assert.Zero(t, b.DownloadsCount)
	assert.Zero(t, b.ViewsCount)

	rc, err := s.Open(ctx, b)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, data)

	b, err = s.Touch(ctx, model.BucketImage, "id-1", model.CounterDownloads)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.DownloadsCount)

	require.NoError(t, s.Delete(ctx, b))
	require.NoError(t, s.Delete(ctx, b))
	assert.Empty(t, objects.Keys())
	_, err = s.Get(ctx, model.BucketImage, "id-1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestStore_PutRollback(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		deleteErr error
		wantMsg   string
		rollback  bool
	}{
		{"rollback succeeds", nil, "db save failed: db fail", false},
		{"rollback fails", errors.New("delete fail"), "rollback failed: delete fail", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mStore := new(storeMocks.MockStorage)
			mRepo := new(repoMocks.MockBlobRepository)
			s := New(mStore, mRepo)

			mStore.On("Put", ctx, "text/id-1", mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
				return opt.Size == 5 && opt.Metadata["original-filename"] == "a.txt"
			})).Return(func(_ context.Context, key string, _ io.Reader, _ storage.PutObjectOptions) storage.ObjectInfo {
				return storage.ObjectInfo{Key: key}
			}, nil)
			mRepo.On("Create", ctx, mock.Anything).Return(nil, errors.New("db fail"))
			mStore.On("Delete", ctx, "text/id-1").Return(tt.deleteErr)

			_, err := s.Put(ctx, PutInput{ID: "id-1", Bucket: model.BucketText, Filename: "a.txt", Data: []byte("hello")})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)

			var rbErr *RollbackError
			assert.Equal(t, tt.rollback, errors.As(err, &rbErr))

			mStore.AssertExpectations(t)
			mRepo.AssertExpectations(t)
		})
	}
}

func TestStore_PutDuplicateKeepsSentinel(t *testing.T) {
	ctx := context.Background()
	s := New(storage.NewMemory(), memory.NewBlobRepository())

	_, err := s.Put(ctx, PutInput{ID: "a", Bucket: model.BucketText, Filename: "x.txt", Data: []byte("1")})
	require.NoError(t, err)
	_, err = s.Put(ctx, PutInput{ID: "b", Bucket: model.BucketText, Filename: "x.txt", Data: []byte("2")})
	assert.ErrorIs(t, err, repository.ErrDuplicate)
}

func TestStore_StorageFailure(t *testing.T) {
	ctx := context.Background()
	mStore := new(storeMocks.MockStorage)
	s := New(mStore, new(repoMocks.MockBlobRepository))

	mStore.On("Put", ctx, mock.Anything, mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("storage fail"))
	_, err := s.Put(ctx, PutInput{ID: "x", Bucket: model.BucketPDF, Data: []byte("%PDF")})
	assert.EqualError(t, err, "upload to storage: storage fail")

	mStore.On("Delete", ctx, "pdf/x").Return(errors.New("unreachable"))
	err = s.Delete(ctx, &model.Blob{ID: "x", Bucket: model.BucketPDF, StorageKey: "pdf/x"})
	assert.True(t, strings.HasPrefix(err.Error(), "delete storage:"))
}

func TestStore_RestoreKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	objects := storage.NewMemory()
	s := New(objects, memory.NewBlobRepository())

	b, err := s.Put(ctx, PutInput{ID: "id-1", Bucket: model.BucketText, Filename: "a.txt", MediaType: "text/plain", Data: []byte("v1")})
	require.NoError(t, err)
	rec := "rec-1"
	require.NoError(t, s.Link(ctx, model.BucketText, "id-1", &rec))
	b, err = s.Touch(ctx, model.BucketText, "id-1", model.CounterViews)
	require.NoError(t, err)
	snapshot := *b

	require.NoError(t, s.Delete(ctx, b))
	require.NoError(t, s.Restore(ctx, &snapshot, []byte("v1")))

	got, err := s.Get(ctx, model.BucketText, "id-1")
	require.NoError(t, err)
	assert.Equal(t, snapshot.CreatedAt, got.CreatedAt)
	assert.Equal(t, int64(1), got.ViewsCount)
	require.NotNil(t, got.ContentRecordID)
	assert.Equal(t, "rec-1", *got.ContentRecordID)

	rc, err := s.Open(ctx, got)
	require.NoError(t, err)
	data, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "v1", string(data))

	// row still present: only the object is rewritten
	require.NoError(t, s.Restore(ctx, &snapshot, []byte("v1")))
}

func TestStore_RestoreFailures(t *testing.T) {
	ctx := context.Background()
	b := &model.Blob{ID: "x", Bucket: model.BucketPDF, StorageKey: "pdf/x", Filename: "x.pdf"}

	t.Run("object", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockBlobRepository)
		mStore.On("Put", ctx, "pdf/x", mock.Anything, mock.Anything).Return(storage.ObjectInfo{}, errors.New("storage fail"))

		err := New(mStore, mRepo).Restore(ctx, b, []byte("%PDF"))
		assert.EqualError(t, err, "restore object pdf/x: storage fail")
		mRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("row", func(t *testing.T) {
		mStore := new(storeMocks.MockStorage)
		mRepo := new(repoMocks.MockBlobRepository)
		mStore.On("Put", ctx, "pdf/x", mock.Anything, mock.Anything).Return(storage.ObjectInfo{Key: "pdf/x"}, nil)
		mRepo.On("Create", ctx, b).Return(nil, errors.New("db fail"))

		err := New(mStore, mRepo).Restore(ctx, b, []byte("%PDF"))
		assert.EqualError(t, err, "restore blob row: db fail")
	})
}
