// Package migration creates the per-bucket schema. Steps are idempotent and
// recorded in schema_migrations, so a bucket added later only runs its own steps.
package migration

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"docvault/internal/model"
	"docvault/internal/repository/postgres"
)

// Step is one named DDL statement.
type Step struct {
	Name string
	SQL  string
}

const createLedger = `CREATE TABLE IF NOT EXISTS schema_migrations (
  name       TEXT        PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`

// Steps returns the ordered migration plan for every bucket.
func Steps() []Step {
	steps := []Step{
		{Name: "create_extension_pg_trgm", SQL: `CREATE EXTENSION IF NOT EXISTS pg_trgm;`},
	}
	for _, b := range model.Buckets {
		steps = append(steps, bucketSteps(b)...)
	}
	return steps
}

func bucketSteps(b model.Bucket) []Step {
	blobs, _ := postgres.BlobTable(b)
	steps := []Step{
		{
			Name: "create_table_" + blobs,
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id                UUID        PRIMARY KEY,
  filename          TEXT        NOT NULL UNIQUE,
  media_type        TEXT        NOT NULL,
  size              BIGINT      NOT NULL CHECK (size >= 0),
  storage_key       TEXT        NOT NULL UNIQUE,
  downloads_count   BIGINT      NOT NULL DEFAULT 0 CHECK (downloads_count >= 0),
  views_count       BIGINT      NOT NULL DEFAULT 0 CHECK (views_count >= 0),
  content_record_id UUID        NULL,
  created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);`, blobs),
		},
		{
			Name: "create_index_" + blobs + "_created_at",
			SQL:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_created_at ON %[1]s (created_at, id);`, blobs),
		},
		{
			Name: "create_index_" + blobs + "_lower_filename",
			SQL:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_lower_filename ON %[1]s (lower(filename), id);`, blobs),
		},
	}
	if !b.Extractable() {
		return steps
	}

	contents, _ := postgres.ContentTable(b)
	return append(steps,
		Step{
			Name: "create_table_" + contents,
			SQL: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
  id         UUID        PRIMARY KEY,
  file_id    UUID        NOT NULL UNIQUE REFERENCES %s (id) ON DELETE RESTRICT,
  filename   TEXT        NOT NULL,
  content    TEXT        NOT NULL,
  structured JSONB       NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`, contents, blobs),
		},
		Step{
			Name: "create_index_" + contents + "_content_trgm",
			SQL:  fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%[1]s_content_trgm ON %[1]s USING gin (content gin_trgm_ops);`, contents),
		},
	)
}

// EnsureMigrated applies every step not yet recorded in schema_migrations.
// Each step runs in its own transaction together with its ledger row.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *slog.Logger) error {
	start := time.Now()
	log = log.With("component", "database")
	log.InfoContext(ctx, "db_migration_check", "status", "starting")

	if _, err := db.ExecContext(ctx, createLedger); err != nil {
		log.ErrorContext(ctx, "db_migration_failed", "status", "error", "error_message", err.Error())
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := 0
	for _, step := range Steps() {
		done, err := isApplied(ctx, db, step.Name)
		if err != nil {
			log.ErrorContext(ctx, "db_migration_failed", "status", "error", "migration_step", step.Name, "error_message", err.Error())
			return fmt.Errorf("check migration %s: %w", step.Name, err)
		}
		if done {
			continue
		}

		stepStart := time.Now()
		if err := apply(ctx, db, step); err != nil {
			log.ErrorContext(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}
		applied++
		log.InfoContext(ctx, "db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.InfoContext(ctx, "db_migration_success",
		"status", "success",
		"applied_steps", applied,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func isApplied(ctx context.Context, db *sql.DB, name string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&exists)
	return exists, err
}

func apply(ctx context.Context, db *sql.DB, step Step) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, step.Name); err != nil {
		return err
	}
	return tx.Commit()
}
