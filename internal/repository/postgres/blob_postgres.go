package postgres

import (
	"context"
	"database/sql"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var blobColumns = []string{
	"id", "filename", "media_type", "size", "storage_key",
	"downloads_count", "views_count", "content_record_id", "created_at",
}

// BlobPostgres is a PostgreSQL implementation of repository.BlobRepository.
type BlobPostgres struct {
	db *sql.DB
}

func NewBlobPostgres(db *sql.DB) *BlobPostgres {
	return &BlobPostgres{db: db}
}

var _ repository.BlobRepository = (*BlobPostgres)(nil)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBlob(row rowScanner, bucket model.Bucket) (*model.Blob, error) {
	var (
		b   model.Blob
		ref sql.NullString
	)
	if err := row.Scan(
		&b.ID,
		&b.Filename,
		&b.MediaType,
		&b.Size,
		&b.StorageKey,
		&b.DownloadsCount,
		&b.ViewsCount,
		&ref,
		&b.CreatedAt,
	); err != nil {
		return nil, err
	}
	b.Bucket = bucket
	if ref.Valid {
		id := ref.String
		b.ContentRecordID = &id
	}
	return &b, nil
}

// Create inserts a new blob row and returns the stored record.
func (r *BlobPostgres) Create(ctx context.Context, b *model.Blob) (*model.Blob, error) {
	table, err := BlobTable(b.Bucket)
	if err != nil {
		return nil, err
	}
	q, args, err := qb.Insert(table).
		Columns(blobColumns...).
		Values(b.ID, b.Filename, b.MediaType, b.Size, b.StorageKey,
			b.DownloadsCount, b.ViewsCount, b.ContentRecordID, b.CreatedAt).
		Suffix("RETURNING " + strings.Join(blobColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	out, err := scanBlob(r.db.QueryRowContext(ctx, q, args...), b.Bucket)
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// FindByID fetches a single blob by its ID.
func (r *BlobPostgres) FindByID(ctx context.Context, bucket model.Bucket, id string) (*model.Blob, error) {
	return r.findOne(ctx, bucket, sq.Eq{"id": id})
}

// FindByFilename fetches a single blob by its (bucket-unique) filename.
func (r *BlobPostgres) FindByFilename(ctx context.Context, bucket model.Bucket, filename string) (*model.Blob, error) {
	return r.findOne(ctx, bucket, sq.Eq{"filename": filename})
}

func (r *BlobPostgres) findOne(ctx context.Context, bucket model.Bucket, where sq.Eq) (*model.Blob, error) {
	table, err := BlobTable(bucket)
	if err != nil {
		return nil, err
	}
	q, args, err := qb.Select(blobColumns...).From(table).Where(where).ToSql()
	if err != nil {
		return nil, err
	}
	b, err := scanBlob(r.db.QueryRowContext(ctx, q, args...), bucket)
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

// List returns every blob of the bucket. Filename order is case-insensitive;
// ties are broken by id so the result is stable.
func (r *BlobPostgres) List(ctx context.Context, bucket model.Bucket, lq repository.ListQuery) ([]model.Blob, error) {
	table, err := BlobTable(bucket)
	if err != nil {
		return nil, err
	}
	dir := "DESC"
	if lq.Order == model.OrderAsc {
		dir = "ASC"
	}
	key := "created_at"
	if lq.SortBy == model.SortByFilename {
		key = "lower(filename)"
	}
	q, args, err := qb.Select(blobColumns...).
		From(table).
		OrderBy(key+" "+dir, "id "+dir).
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Blob, 0)
	for rows.Next() {
		b, err := scanBlob(rows, bucket)
		if err != nil {
			return nil, err
		}
		items = append(items, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a blob row by ID. It does not return an error if the row does not exist.
func (r *BlobPostgres) Delete(ctx context.Context, bucket model.Bucket, id string) error {
	table, err := BlobTable(bucket)
	if err != nil {
		return err
	}
	q, args, err := qb.Delete(table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, args...)
	return err
}

// IncrementCounter bumps one read counter in a single statement.
func (r *BlobPostgres) IncrementCounter(ctx context.Context, bucket model.Bucket, id string, c model.Counter) (*model.Blob, error) {
	table, err := BlobTable(bucket)
	if err != nil {
		return nil, err
	}
	col := string(model.CounterDownloads)
	if c == model.CounterViews {
		col = string(model.CounterViews)
	}
	q, args, err := qb.Update(table).
		Set(col, sq.Expr(col+" + 1")).
		Where(sq.Eq{"id": id}).
		Suffix("RETURNING " + strings.Join(blobColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	b, err := scanBlob(r.db.QueryRowContext(ctx, q, args...), bucket)
	if err != nil {
		return nil, mapErr(err)
	}
	return b, nil
}

// SetContentRef writes the blob's back-reference to its content record.
func (r *BlobPostgres) SetContentRef(ctx context.Context, bucket model.Bucket, id string, recordID *string) error {
	table, err := BlobTable(bucket)
	if err != nil {
		return err
	}
	q, args, err := qb.Update(table).
		Set("content_record_id", recordID).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
