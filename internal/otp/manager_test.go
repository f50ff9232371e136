package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	derrors "ekyc/pkg/domain-errors"
	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/requestcontext"
)

func frozenCtx(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func TestManagerCreate(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	ctx := frozenCtx(now)
	mgr := NewManager(NewInMemoryStore())

	challenge, code, err := mgr.Create(ctx, "REF-1", 10*time.Minute)
	require.NoError(t, err)

	assert.Len(t, code, 6)
	for _, r := range code {
		assert.True(t, r >= '0' && r <= '9', "code must be numeric, got %q", code)
	}

	assert.Equal(t, "REF-1", challenge.ReferenceNumber)
	assert.Equal(t, StatusPending, challenge.Status)
	assert.Zero(t, challenge.AttemptCount)
	assert.Equal(t, now.Add(10*time.Minute), challenge.ExpiresAt)
	assert.NotContains(t, challenge.CodeHash, code, "plaintext must not appear in the digest")

	stored, err := mgr.Latest(ctx, "REF-1")
	require.NoError(t, err)
	assert.Equal(t, challenge.ChallengeID, stored.ChallengeID)
}

func TestManagerValidate(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewInMemoryStore())

	challenge, code, err := mgr.Create(ctx, "REF-2", time.Minute)
	require.NoError(t, err)

	assert.True(t, mgr.Validate(challenge, code))
	assert.False(t, mgr.Validate(challenge, "000000"))
	assert.False(t, mgr.Validate(challenge, ""))
	assert.False(t, mgr.Validate(Challenge{CodeHash: "garbage"}, code))
}

func TestManagerRecordAttempt(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewInMemoryStore())

	challenge, _, err := mgr.Create(ctx, "REF-3", time.Minute)
	require.NoError(t, err)

	for want := 1; want <= 3; want++ {
		challenge, err = mgr.RecordAttempt(ctx, challenge)
		require.NoError(t, err)
		assert.Equal(t, want, challenge.AttemptCount)
	}

	stored, err := mgr.Latest(ctx, "REF-3")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.AttemptCount)
}

func TestManagerTransition(t *testing.T) {
	ctx := context.Background()
	mgr := NewManager(NewInMemoryStore())

	t.Run("pending to verified", func(t *testing.T) {
		challenge, _, err := mgr.Create(ctx, "REF-4", time.Minute)
		require.NoError(t, err)

		challenge, err = mgr.Transition(ctx, challenge, StatusVerified)
		require.NoError(t, err)
		assert.Equal(t, StatusVerified, challenge.Status)
	})

	t.Run("terminal statuses are frozen", func(t *testing.T) {
		challenge, _, err := mgr.Create(ctx, "REF-5", time.Minute)
		require.NoError(t, err)

		challenge, err = mgr.Transition(ctx, challenge, StatusFailed)
		require.NoError(t, err)

		_, err = mgr.Transition(ctx, challenge, StatusVerified)
		require.Error(t, err)
		assert.True(t, derrors.HasCode(err, derrors.CodeInvalidState))

		stored, err := mgr.Latest(ctx, "REF-5")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, stored.Status)
	})
}

func TestChallengeQueries(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	challenge := Challenge{ExpiresAt: now.Add(time.Minute)}

	assert.False(t, challenge.Expired(now))
	assert.False(t, challenge.Expired(now.Add(time.Minute)))
	assert.True(t, challenge.Expired(now.Add(time.Minute+time.Second)))

	assert.Equal(t, 3, Challenge{AttemptCount: 0}.AttemptsRemaining(3))
	assert.Equal(t, 1, Challenge{AttemptCount: 2}.AttemptsRemaining(3))
	assert.Equal(t, 0, Challenge{AttemptCount: 3}.AttemptsRemaining(3))
	assert.Equal(t, 0, Challenge{AttemptCount: 5}.AttemptsRemaining(3))
}

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	t.Run("latest returns newest challenge", func(t *testing.T) {
		first := Challenge{ChallengeID: "c1", ReferenceNumber: "REF-6", Status: StatusExpired}
		second := Challenge{ChallengeID: "c2", ReferenceNumber: "REF-6", Status: StatusPending}
		require.NoError(t, store.Create(ctx, first))
		require.NoError(t, store.Create(ctx, second))

		latest, err := store.LatestByReference(ctx, "REF-6")
		require.NoError(t, err)
		assert.Equal(t, "c2", latest.ChallengeID)
	})

	t.Run("unknown reference", func(t *testing.T) {
		_, err := store.LatestByReference(ctx, "REF-NOPE")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("update unknown challenge", func(t *testing.T) {
		err := store.Update(ctx, Challenge{ChallengeID: "ghost", ReferenceNumber: "REF-6"})
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestHasherRoundTrip(t *testing.T) {
	h := NewHasher()

	digest, err := h.Hash("123456")
	require.NoError(t, err)
	assert.Contains(t, digest, "$argon2id$")

	assert.True(t, h.Verify(digest, "123456"))
	assert.False(t, h.Verify(digest, "123457"))

	// Fresh salt per digest: hashing the same code twice must differ.
	other, err := h.Hash("123456")
	require.NoError(t, err)
	assert.NotEqual(t, digest, other)
}
