//go:build integration

package audit

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/pkg/testutil/containers"
)

const auditSchema = `
CREATE TABLE audit_entries (
    entry_id          UUID PRIMARY KEY,
    reference_number  TEXT NOT NULL DEFAULT '',
    event_type        TEXT NOT NULL,
    payload           JSONB NOT NULL,
    outcome           TEXT NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL,
    seq               BIGSERIAL
);
CREATE INDEX audit_entries_reference_idx ON audit_entries (reference_number, seq);
`

func TestPostgresStore_Integration(t *testing.T) {
	pg := containers.NewPostgresContainer(t, auditSchema)
	store := NewPostgresStore(pg.Pool)
	ctx := context.Background()

	entry := func(ref string, eventType EventType, attempt string) Entry {
		return Entry{
			EntryID:         uuid.NewString(),
			ReferenceNumber: ref,
			EventType:       eventType,
			Payload: NewPayload().
				WithIdentifier("123456789012").
				WithDetail("attempt", attempt),
			Outcome:   OutcomeSuccess,
			Timestamp: time.Now().UTC().Truncate(time.Microsecond),
		}
	}

	t.Run("append preserves insertion order per reference", func(t *testing.T) {
		for i, attempt := range []string{"1", "2", "3"} {
			e := entry("EKYC-AUD-1", EventUpstreamCall, attempt)
			// Identical timestamps must not disturb ordering.
			e.Timestamp = e.Timestamp.Add(time.Duration(i%2) * time.Millisecond)
			require.NoError(t, store.Append(ctx, e))
		}

		entries, err := store.ListByReference(ctx, "EKYC-AUD-1")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		for i, e := range entries {
			assert.Equal(t, EventUpstreamCall, e.EventType)
			assert.Equal(t, []string{"1", "2", "3"}[i], e.Payload.Get("attempt"))
		}
	})

	t.Run("payload survives storage masked", func(t *testing.T) {
		require.NoError(t, store.Append(ctx, entry("EKYC-AUD-2", EventInitiated, "1")))

		entries, err := store.ListByReference(ctx, "EKYC-AUD-2")
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "XXXXXXXX9012", entries[0].Payload.Get("identifier"))
	})

	t.Run("unknown reference returns empty", func(t *testing.T) {
		entries, err := store.ListByReference(ctx, "EKYC-AUD-MISSING")
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}
