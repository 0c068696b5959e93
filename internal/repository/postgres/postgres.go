// Package postgres implements the repository interfaces on database/sql with
// squirrel-built statements. Every bucket owns its own table; table names are
// derived from model.Bucket, never from caller supplied strings.
package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"docvault/internal/model"
	"docvault/internal/repository"
)

const uniqueViolation = "23505"

// qb is the statement builder shared by both repositories.
var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// BlobTable returns the metadata table of a bucket.
func BlobTable(b model.Bucket) (string, error) {
	if !b.Valid() {
		return "", fmt.Errorf("unknown bucket %q", b)
	}
	return "blobs_" + b.String(), nil
}

// ContentTable returns the content table of an extractable bucket.
func ContentTable(b model.Bucket) (string, error) {
	if !b.Extractable() {
		return "", fmt.Errorf("bucket %q has no content table", b)
	}
	return "contents_" + b.String(), nil
}

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", repository.ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
