package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"ekyc/pkg/platform/tx"
)

// PostgresStore persists audit entries in an append-only table. Rows are never
// updated or deleted by this service; retention is an operational concern.
//
// Schema:
//
//	CREATE TABLE audit_entries (
//	    entry_id          UUID PRIMARY KEY,
//	    reference_number  TEXT NOT NULL DEFAULT '',
//	    event_type        TEXT NOT NULL,
//	    payload           JSONB NOT NULL,
//	    outcome           TEXT NOT NULL,
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    seq               BIGSERIAL
//	);
//	CREATE INDEX audit_entries_reference_idx ON audit_entries (reference_number, seq);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	_, err = tx.QuerierFrom(ctx, s.pool).Exec(ctx,
		`INSERT INTO audit_entries (entry_id, reference_number, event_type, payload, outcome, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.EntryID, entry.ReferenceNumber, string(entry.EventType), payload, string(entry.Outcome), entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByReference(ctx context.Context, referenceNumber string) ([]Entry, error) {
	rows, err := tx.QuerierFrom(ctx, s.pool).Query(ctx,
		`SELECT entry_id, reference_number, event_type, payload, outcome, created_at
		 FROM audit_entries WHERE reference_number = $1 ORDER BY seq`,
		referenceNumber,
	)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry   Entry
			payload []byte
		)
		if err := rows.Scan(&entry.EntryID, &entry.ReferenceNumber, (*string)(&entry.EventType), &payload, (*string)(&entry.Outcome), &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if err := json.Unmarshal(payload, &entry.Payload); err != nil {
			return nil, fmt.Errorf("decode audit payload: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
