package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/platform/tx"
)

// PostgresStore persists verification requests. Expected schema:
//
//	CREATE TABLE verification_requests (
//	    id                UUID PRIMARY KEY,
//	    reference_number  TEXT NOT NULL UNIQUE,
//	    identifier_type   TEXT NOT NULL,
//	    identifier_value  TEXT NOT NULL,
//	    identity_consent  BOOLEAN NOT NULL,
//	    contact_consent   BOOLEAN NOT NULL,
//	    session_id        TEXT NOT NULL,
//	    status            TEXT NOT NULL,
//	    failure_reason    TEXT,
//	    created_at        TIMESTAMPTZ NOT NULL,
//	    updated_at        TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX verification_requests_stale_idx
//	    ON verification_requests (status, created_at);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const requestColumns = `id, reference_number, identifier_type, identifier_value,
	identity_consent, contact_consent, session_id, status, failure_reason,
	created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, req Request) error {
	_, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, `
		INSERT INTO verification_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		req.ID, req.ReferenceNumber, string(req.IdentifierType), req.IdentifierValue,
		req.IdentityConsent, req.ContactConsent, req.SessionID, string(req.Status),
		nullable(req.FailureReason), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, req Request) error {
	tag, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, `
		UPDATE verification_requests
		SET status = $2, failure_reason = $3, updated_at = $4
		WHERE reference_number = $1`,
		req.ReferenceNumber, string(req.Status), nullable(req.FailureReason), req.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) GetByReference(ctx context.Context, referenceNumber string) (Request, error) {
	row := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx, `
		SELECT `+requestColumns+`
		FROM verification_requests
		WHERE reference_number = $1`,
		referenceNumber,
	)
	return scanRequest(row)
}

func (s *PostgresStore) ListStaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]Request, error) {
	rows, err := tx.QuerierFrom(ctx, s.pool).Query(ctx, `
		SELECT `+requestColumns+`
		FROM verification_requests
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at
		LIMIT $3`,
		string(StatusInProgress), cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query stale requests: %w", err)
	}
	defer rows.Close()

	var out []Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (Request, error) {
	var req Request
	var identifierType, status string
	var failureReason *string
	err := row.Scan(&req.ID, &req.ReferenceNumber, &identifierType, &req.IdentifierValue,
		&req.IdentityConsent, &req.ContactConsent, &req.SessionID, &status, &failureReason,
		&req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Request{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Request{}, fmt.Errorf("scan request: %w", err)
	}
	req.IdentifierType = IdentifierType(identifierType)
	req.Status = Status(status)
	if failureReason != nil {
		req.FailureReason = *failureReason
	}
	return req, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
