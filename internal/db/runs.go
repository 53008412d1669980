package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"mcqgenerator/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS generation_runs (
	id              UUID PRIMARY KEY,
	session_id      TEXT NOT NULL DEFAULT '',
	source_name     TEXT NOT NULL,
	kind            TEXT NOT NULL,
	requested_count INTEGER NOT NULL,
	item_count      INTEGER NOT NULL,
	parse_errors    INTEGER NOT NULL,
	upstream_failed BOOLEAN NOT NULL DEFAULT FALSE,
	text_file       TEXT NOT NULL,
	pdf_file        TEXT NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS generation_runs_created_at_idx ON generation_runs (created_at DESC);
`

const insertRun = `
INSERT INTO generation_runs
	(id, session_id, source_name, kind, requested_count, item_count, parse_errors, upstream_failed, text_file, pdf_file, created_at)
VALUES
	(@id, @session_id, @source_name, @kind, @requested_count, @item_count, @parse_errors, @upstream_failed, @text_file, @pdf_file, @created_at)
`

const listRuns = `
SELECT id, session_id, source_name, kind, requested_count, item_count, parse_errors, upstream_failed, text_file, pdf_file, created_at
FROM generation_runs
ORDER BY created_at DESC
LIMIT $1
`

// EnsureSchema creates the run log table if it is missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create generation_runs: %w", err)
	}
	return nil
}

// RecordRun inserts one run log row.
func (db *DB) RecordRun(ctx context.Context, rec models.RunRecord) error {
	_, err := db.Pool.Exec(ctx, insertRun, pgx.NamedArgs{
		"id":              rec.ID,
		"session_id":      rec.SessionID,
		"source_name":     rec.SourceName,
		"kind":            string(rec.Kind),
		"requested_count": rec.RequestedCount,
		"item_count":      rec.ItemCount,
		"parse_errors":    rec.ParseErrors,
		"upstream_failed": rec.UpstreamFailed,
		"text_file":       rec.TextFile,
		"pdf_file":        rec.PDFFile,
		"created_at":      rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("insert generation run %s: %w", rec.ID, err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Pool.Query(ctx, listRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("query generation runs: %w", err)
	}

	runs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.RunRecord, error) {
		var (
			rec  models.RunRecord
			kind string
		)
		err := row.Scan(&rec.ID, &rec.SessionID, &rec.SourceName, &kind, &rec.RequestedCount,
			&rec.ItemCount, &rec.ParseErrors, &rec.UpstreamFailed, &rec.TextFile, &rec.PDFFile, &rec.CreatedAt)
		rec.Kind = models.Kind(kind)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan generation runs: %w", err)
	}
	return runs, nil
}
