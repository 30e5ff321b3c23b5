package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
)

// tracker implements driven.MetadataTracker.
type tracker struct {
	store *Store
}

var _ driven.MetadataTracker = (*tracker)(nil)

// LatestRecord returns the highest-version ledger row for a key, or
// nil when the key has never been recorded.
func (t *tracker) LatestRecord(ctx context.Context, key string) (*domain.Record, error) {
	row := t.store.db.QueryRowContext(ctx, `
		SELECT key, checksum, version, chunk_count, last_modified, extra, created_at
		FROM metadata_records
		WHERE key = ?
		ORDER BY version DESC
		LIMIT 1
	`, key)

	var rec domain.Record
	var extraJSON string
	var lastModified sql.NullTime
	var createdAt sql.NullTime
	if err := row.Scan(&rec.Key, &rec.Checksum, &rec.Version, &rec.ChunkCount,
		&lastModified, &extraJSON, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	if err := json.Unmarshal([]byte(extraJSON), &rec.Extra); err != nil {
		return nil, fmt.Errorf("unmarshaling extra metadata: %w", err)
	}
	if lastModified.Valid {
		lm := lastModified.Time
		rec.LastModified = &lm
	}
	if createdAt.Valid {
		rec.CreatedAt = createdAt.Time
	}

	return &rec, nil
}

// Record appends a ledger row. Prior rows are never touched.
func (t *tracker) Record(ctx context.Context, rec domain.Record) error {
	extra := rec.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return fmt.Errorf("marshalling extra metadata: %w", err)
	}

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var lastModified any
	if rec.LastModified != nil {
		lastModified = rec.LastModified.UTC()
	}

	_, err = t.store.db.ExecContext(ctx, `
		INSERT INTO metadata_records (key, checksum, version, chunk_count, last_modified, extra, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rec.Key, rec.Checksum, rec.Version, rec.ChunkCount,
		lastModified, string(extraJSON), rec.CreatedAt)

	if err != nil {
		return fmt.Errorf("recording metadata: %w", err)
	}
	return nil
}

// DeletePreviousEmbeddings removes all indexed chunks for a key from
// the content store. Ledger rows are untouched.
func (t *tracker) DeletePreviousEmbeddings(ctx context.Context, key string) error {
	_, err := t.store.db.ExecContext(ctx,
		"DELETE FROM chunks WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	return nil
}
