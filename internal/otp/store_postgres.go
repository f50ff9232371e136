package otp

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/platform/tx"
)

// PostgresStore persists challenges durably. Expected schema:
//
//	CREATE TABLE otp_challenges (
//	    challenge_id     UUID PRIMARY KEY,
//	    reference_number TEXT NOT NULL,
//	    code_hash        TEXT NOT NULL,
//	    status           TEXT NOT NULL,
//	    attempt_count    INT NOT NULL DEFAULT 0,
//	    expires_at       TIMESTAMPTZ NOT NULL,
//	    created_at       TIMESTAMPTZ NOT NULL
//	);
//	CREATE INDEX otp_challenges_ref_idx ON otp_challenges (reference_number, created_at DESC);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Create(ctx context.Context, challenge Challenge) error {
	_, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, `
		INSERT INTO otp_challenges
			(challenge_id, reference_number, code_hash, status, attempt_count, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		challenge.ChallengeID,
		challenge.ReferenceNumber,
		challenge.CodeHash,
		string(challenge.Status),
		challenge.AttemptCount,
		challenge.ExpiresAt,
		challenge.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert challenge: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, challenge Challenge) error {
	tag, err := tx.QuerierFrom(ctx, s.pool).Exec(ctx, `
		UPDATE otp_challenges
		SET status = $2, attempt_count = $3
		WHERE challenge_id = $1`,
		challenge.ChallengeID,
		string(challenge.Status),
		challenge.AttemptCount,
	)
	if err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LatestByReference(ctx context.Context, referenceNumber string) (Challenge, error) {
	row := tx.QuerierFrom(ctx, s.pool).QueryRow(ctx, `
		SELECT challenge_id, reference_number, code_hash, status, attempt_count, expires_at, created_at
		FROM otp_challenges
		WHERE reference_number = $1
		ORDER BY created_at DESC
		LIMIT 1`,
		referenceNumber,
	)

	var c Challenge
	var status string
	err := row.Scan(&c.ChallengeID, &c.ReferenceNumber, &c.CodeHash, &status, &c.AttemptCount, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Challenge{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("query challenge: %w", err)
	}
	c.Status = Status(status)
	return c, nil
}
