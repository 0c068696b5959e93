package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"docvault/internal/model"
	"docvault/internal/repository"
)

var contentColumns = []string{"id", "file_id", "filename", "content", "structured", "created_at"}

// ContentPostgres is a PostgreSQL implementation of repository.ContentRepository.
type ContentPostgres struct {
	db *sql.DB
}

func NewContentPostgres(db *sql.DB) *ContentPostgres {
	return &ContentPostgres{db: db}
}

var _ repository.ContentRepository = (*ContentPostgres)(nil)

func scanContent(row rowScanner) (*model.ContentRecord, error) {
	var (
		c          model.ContentRecord
		structured []byte
	)
	if err := row.Scan(&c.ID, &c.FileID, &c.Filename, &c.Content, &structured, &c.CreatedAt); err != nil {
		return nil, err
	}
	if len(structured) > 0 {
		c.StructuredPayload = json.RawMessage(structured)
	}
	return &c, nil
}

func (r *ContentPostgres) Create(ctx context.Context, bucket model.Bucket, rec *model.ContentRecord) (*model.ContentRecord, error) {
	table, err := ContentTable(bucket)
	if err != nil {
		return nil, err
	}
	var structured any
	if len(rec.StructuredPayload) > 0 {
		structured = string(rec.StructuredPayload)
	}
	q, args, err := qb.Insert(table).
		Columns(contentColumns...).
		Values(rec.ID, rec.FileID, rec.Filename, rec.Content, structured, rec.CreatedAt).
		Suffix("RETURNING " + strings.Join(contentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, err
	}
	out, err := scanContent(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

func (r *ContentPostgres) FindByFileID(ctx context.Context, bucket model.Bucket, fileID string) (*model.ContentRecord, error) {
	table, err := ContentTable(bucket)
	if err != nil {
		return nil, err
	}
	q, args, err := qb.Select(contentColumns...).From(table).Where(sq.Eq{"file_id": fileID}).ToSql()
	if err != nil {
		return nil, err
	}
	c, err := scanContent(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

// Delete removes a record by ID. It does not return an error if the row does not exist.
func (r *ContentPostgres) Delete(ctx context.Context, bucket model.Bucket, id string) error {
	table, err := ContentTable(bucket)
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

// Search runs a case-insensitive substring match over the content column.
// LIKE wildcards in term are matched literally.
func (r *ContentPostgres) Search(ctx context.Context, bucket model.Bucket, term string) ([]model.SearchHit, error) {
	table, err := ContentTable(bucket)
	if err != nil {
		return nil, err
	}
	q, args, err := qb.Select("filename", "file_id").
		From(table).
		Where(sq.ILike{"content": "%" + escapeLike(term) + "%"}).
		OrderBy("filename ASC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hits := make([]model.SearchHit, 0)
	for rows.Next() {
		h := model.SearchHit{Bucket: bucket}
		if err := rows.Scan(&h.Filename, &h.BlobID); err != nil {
			return nil, err
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (r *ContentPostgres) List(ctx context.Context, bucket model.Bucket) ([]model.ContentRecord, error) {
	table, err := ContentTable(bucket)
	if err != nil {
		return nil, err
	}
	q, args, err := qb.Select(contentColumns...).From(table).OrderBy("created_at ASC").ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.ContentRecord, 0)
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
