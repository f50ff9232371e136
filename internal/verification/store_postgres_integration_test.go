//go:build integration

package verification

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/platform/tx"
	"ekyc/pkg/testutil/containers"
)

const requestSchema = `
CREATE TABLE verification_requests (
    id                UUID PRIMARY KEY,
    reference_number  TEXT NOT NULL UNIQUE,
    identifier_type   TEXT NOT NULL,
    identifier_value  TEXT NOT NULL,
    identity_consent  BOOLEAN NOT NULL,
    contact_consent   BOOLEAN NOT NULL,
    session_id        TEXT NOT NULL,
    status            TEXT NOT NULL,
    failure_reason    TEXT,
    created_at        TIMESTAMPTZ NOT NULL,
    updated_at        TIMESTAMPTZ NOT NULL
);
CREATE INDEX verification_requests_stale_idx
    ON verification_requests (status, created_at);
`

func newRequest(ref string, status Status, at time.Time) Request {
	return Request{
		ID:              uuid.NewString(),
		ReferenceNumber: ref,
		IdentifierType:  IdentifierPrimary,
		IdentifierValue: "123456789012",
		IdentityConsent: true,
		ContactConsent:  true,
		SessionID:       "sess-1",
		Status:          status,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

func TestPostgresStore_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t, requestSchema)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		req := newRequest("EKYC-VPG-1", StatusInitiated, now)
		require.NoError(t, store.Create(ctx, req))

		got, err := store.GetByReference(ctx, "EKYC-VPG-1")
		require.NoError(t, err)
		assert.Equal(t, req.ID, got.ID)
		assert.Equal(t, StatusInitiated, got.Status)
		assert.Empty(t, got.FailureReason)
	})

	t.Run("duplicate reference conflicts", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, store.Create(ctx, newRequest("EKYC-VPG-2", StatusInitiated, now)))
		err := store.Create(ctx, newRequest("EKYC-VPG-2", StatusInitiated, now))
		assert.ErrorIs(t, err, sentinel.ErrConflict)
	})

	t.Run("update persists status and reason", func(t *testing.T) {
		now := time.Now().UTC().Truncate(time.Microsecond)
		req := newRequest("EKYC-VPG-3", StatusInProgress, now)
		require.NoError(t, store.Create(ctx, req))

		req.Status = StatusFailed
		req.FailureReason = ReasonMaxAttemptsExceeded
		req.UpdatedAt = now.Add(time.Minute)
		require.NoError(t, store.Update(ctx, req))

		got, err := store.GetByReference(ctx, "EKYC-VPG-3")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, got.Status)
		assert.Equal(t, ReasonMaxAttemptsExceeded, got.FailureReason)
	})

	t.Run("list stale in-progress", func(t *testing.T) {
		now := time.Now().UTC()
		require.NoError(t, store.Create(ctx, newRequest("EKYC-VPG-STALE", StatusInProgress, now.Add(-time.Hour))))
		require.NoError(t, store.Create(ctx, newRequest("EKYC-VPG-FRESH", StatusInProgress, now)))
		require.NoError(t, store.Create(ctx, newRequest("EKYC-VPG-DONE", StatusVerified, now.Add(-time.Hour))))

		stale, err := store.ListStaleInProgress(ctx, now.Add(-30*time.Minute), 10)
		require.NoError(t, err)
		require.Len(t, stale, 1)
		assert.Equal(t, "EKYC-VPG-STALE", stale[0].ReferenceNumber)
	})

	t.Run("writes inside a rolled back transaction vanish", func(t *testing.T) {
		pgxTx, err := pg.Pool.Begin(ctx)
		require.NoError(t, err)
		txCtx := tx.WithTx(ctx, pgxTx)

		require.NoError(t, store.Create(txCtx, newRequest("EKYC-VPG-TX", StatusInitiated, time.Now().UTC())))

		_, err = store.GetByReference(txCtx, "EKYC-VPG-TX")
		require.NoError(t, err)

		require.NoError(t, pgxTx.Rollback(ctx))

		_, err = store.GetByReference(ctx, "EKYC-VPG-TX")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
