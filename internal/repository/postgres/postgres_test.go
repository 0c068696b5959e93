package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docvault/internal/model"
	"docvault/internal/repository"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func blobRows() *sqlmock.Rows {
	return sqlmock.NewRows(blobColumns)
}

func TestTableNames(t *testing.T) {
	name, err := BlobTable(model.BucketImage)
	require.NoError(t, err)
	assert.Equal(t, "blobs_image", name)

	_, err = BlobTable(model.Bucket("pdf; DROP TABLE x"))
	assert.Error(t, err)

	name, err = ContentTable(model.BucketCSV)
	require.NoError(t, err)
	assert.Equal(t, "contents_csv", name)

	_, err = ContentTable(model.BucketOther)
	assert.Error(t, err)
}

func TestBlobPostgres_Create(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)
	ctx := context.Background()

	now := time.Now().UTC()
	b := &model.Blob{
		ID:         "blob-1",
		Filename:   "report.pdf",
		Bucket:     model.BucketPDF,
		MediaType:  "application/pdf",
		Size:       123,
		StorageKey: "pdf/blob-1",
		CreatedAt:  now,
	}

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO blobs_pdf (id,filename,media_type,size,storage_key,downloads_count,views_count,content_record_id,created_at)")).
			WithArgs(b.ID, b.Filename, b.MediaType, b.Size, b.StorageKey, int64(0), int64(0), sqlmock.AnyArg(), now).
			WillReturnRows(blobRows().AddRow(b.ID, b.Filename, b.MediaType, b.Size, b.StorageKey, 0, 0, nil, now))

		out, err := repo.Create(ctx, b)
		require.NoError(t, err)
		assert.Equal(t, "blob-1", out.ID)
		assert.Equal(t, model.BucketPDF, out.Bucket)
		assert.Nil(t, out.ContentRecordID)
	})

	t.Run("duplicate filename", func(t *testing.T) {
		mock.ExpectQuery("INSERT INTO blobs_pdf").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "blobs_pdf_filename_key"})

		_, err := repo.Create(ctx, b)
		assert.ErrorIs(t, err, repository.ErrDuplicate)
	})

	t.Run("unknown bucket", func(t *testing.T) {
		_, err := repo.Create(ctx, &model.Blob{Bucket: "zip"})
		assert.Error(t, err)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_FindByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM blobs_text WHERE id = \$1`).
			WithArgs("blob-1").
			WillReturnRows(blobRows().AddRow("blob-1", "a.txt", "text/plain", 3, "text/blob-1", 2, 1, "rec-1", time.Now()))

		b, err := repo.FindByID(ctx, model.BucketText, "blob-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), b.DownloadsCount)
		require.NotNil(t, b.ContentRecordID)
		assert.Equal(t, "rec-1", *b.ContentRecordID)
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT (.+) FROM blobs_text WHERE id = \$1`).
			WithArgs("missing").
			WillReturnError(sql.ErrNoRows)

		b, err := repo.FindByID(ctx, model.BucketText, "missing")
		assert.ErrorIs(t, err, repository.ErrNotFound)
		assert.Nil(t, b)
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_FindByFilename(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)

	mock.ExpectQuery(`SELECT (.+) FROM blobs_csv WHERE filename = \$1`).
		WithArgs("data.csv").
		WillReturnRows(blobRows())

	_, err := repo.FindByFilename(context.Background(), model.BucketCSV, "data.csv")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_List(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)
	ctx := context.Background()

	tests := []struct {
		name    string
		q       repository.ListQuery
		orderBy string
	}{
		{"default", repository.ListQuery{}, "ORDER BY created_at DESC, id DESC"},
		{"filename asc", repository.ListQuery{SortBy: model.SortByFilename, Order: model.OrderAsc}, "ORDER BY lower(filename) ASC, id ASC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock.ExpectQuery(regexp.QuoteMeta("FROM blobs_image " + tt.orderBy)).
				WillReturnRows(blobRows().
					AddRow("b1", "cat.png", "image/png", 10, "image/b1", 0, 0, nil, time.Now()).
					AddRow("b2", "Dog.png", "image/png", 11, "image/b2", 0, 0, nil, time.Now()))

			items, err := repo.List(ctx, model.BucketImage, tt.q)
			require.NoError(t, err)
			assert.Len(t, items, 2)
			assert.Equal(t, model.BucketImage, items[1].Bucket)
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_Delete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM blobs_word WHERE id = $1")).
		WithArgs("blob-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.Delete(context.Background(), model.BucketWord, "blob-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_IncrementCounter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE blobs_pdf SET views_count = views_count + 1 WHERE id = $1 RETURNING")).
		WithArgs("blob-1").
		WillReturnRows(blobRows().AddRow("blob-1", "a.pdf", "application/pdf", 3, "pdf/blob-1", 0, 1, nil, time.Now()))

	b, err := repo.IncrementCounter(ctx, model.BucketPDF, "blob-1", model.CounterViews)
	require.NoError(t, err)
	assert.Equal(t, int64(1), b.ViewsCount)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE blobs_pdf SET downloads_count = downloads_count + 1")).
		WithArgs("missing").
		WillReturnRows(blobRows())

	_, err = repo.IncrementCounter(ctx, model.BucketPDF, "missing", model.CounterDownloads)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBlobPostgres_SetContentRef(t *testing.T) {
	db, mock := newMock(t)
	repo := NewBlobPostgres(db)
	ctx := context.Background()
	rec := "rec-1"

	mock.ExpectExec(regexp.QuoteMeta("UPDATE blobs_json SET content_record_id = $1 WHERE id = $2")).
		WithArgs(rec, "blob-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetContentRef(ctx, model.BucketJSON, "blob-1", &rec))

	mock.ExpectExec("UPDATE blobs_json").
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.SetContentRef(ctx, model.BucketJSON, "gone", &rec), repository.ErrNotFound)

	mock.ExpectExec("UPDATE blobs_json").
		WillReturnError(errors.New("connection reset"))
	assert.EqualError(t, repo.SetContentRef(ctx, model.BucketJSON, "blob-1", nil), "connection reset")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentPostgres_CreateAndFind(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContentPostgres(db)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := &model.ContentRecord{
		ID:                "rec-1",
		FileID:            "blob-1",
		Filename:          "doc.json",
		Content:           `{"k":"v"}`,
		StructuredPayload: []byte(`{"k":"v"}`),
		CreatedAt:         now,
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO contents_json (id,file_id,filename,content,structured,created_at)")).
		WithArgs(rec.ID, rec.FileID, rec.Filename, rec.Content, `{"k":"v"}`, now).
		WillReturnRows(sqlmock.NewRows(contentColumns).AddRow(rec.ID, rec.FileID, rec.Filename, rec.Content, []byte(`{"k":"v"}`), now))

	out, err := repo.Create(ctx, model.BucketJSON, rec)
	require.NoError(t, err)
	assert.JSONEq(t, `{"k":"v"}`, string(out.StructuredPayload))

	mock.ExpectQuery(`SELECT (.+) FROM contents_text WHERE file_id = \$1`).
		WithArgs("blob-2").
		WillReturnRows(sqlmock.NewRows(contentColumns).AddRow("rec-2", "blob-2", "a.txt", "hello", nil, now))

	got, err := repo.FindByFileID(ctx, model.BucketText, "blob-2")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Content)
	assert.Nil(t, got.StructuredPayload)

	mock.ExpectQuery("INSERT INTO contents_text").
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err = repo.Create(ctx, model.BucketText, &model.ContentRecord{ID: "x"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	_, err = repo.Create(ctx, model.BucketImage, rec)
	assert.Error(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentPostgres_Search(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContentPostgres(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT filename, file_id FROM contents_csv WHERE content ILIKE $1 ORDER BY filename ASC")).
		WithArgs(`%50\%\_off%`).
		WillReturnRows(sqlmock.NewRows([]string{"filename", "file_id"}).AddRow("prices.csv", "blob-9"))

	hits, err := repo.Search(context.Background(), model.BucketCSV, "50%_off")
	require.NoError(t, err)
	assert.Equal(t, []model.SearchHit{{Filename: "prices.csv", BlobID: "blob-9", Bucket: model.BucketCSV}}, hits)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestContentPostgres_DeleteAndList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContentPostgres(db)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM contents_word WHERE id = $1")).
		WithArgs("rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(ctx, model.BucketWord, "rec-1"))

	mock.ExpectQuery(regexp.QuoteMeta("FROM contents_word ORDER BY created_at ASC")).
		WillReturnRows(sqlmock.NewRows(contentColumns).AddRow("rec-2", "blob-2", "b.docx", "text", nil, time.Now()))
	items, err := repo.List(ctx, model.BucketWord)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\\b\%c\_d`, escapeLike(`a\b%c_d`))
}
