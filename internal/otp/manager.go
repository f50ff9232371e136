package otp

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/google/uuid"

	derrors "ekyc/pkg/domain-errors"
	"ekyc/pkg/requestcontext"
)

const codeDigits = 6

var codeSpace = big.NewInt(1_000_000)

// Manager owns challenge creation, hashing, and bookkeeping. It decides no
// business outcomes; the orchestrator calls it and interprets the results.
type Manager struct {
	store  Store
	hasher *Hasher
	logger *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		hasher: NewHasher(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create mints a new PENDING challenge for the reference and returns it along
// with the plaintext code. The plaintext exists only in this return value;
// the store sees the argon2id digest.
func (m *Manager) Create(ctx context.Context, referenceNumber string, ttl time.Duration) (Challenge, string, error) {
	code, err := generateCode()
	if err != nil {
		return Challenge{}, "", derrors.Wrap(err, derrors.CodeInternal, "generate code")
	}

	digest, err := m.hasher.Hash(code)
	if err != nil {
		return Challenge{}, "", derrors.Wrap(err, derrors.CodeInternal, "hash code")
	}

	now := requestcontext.Now(ctx)
	challenge := Challenge{
		ChallengeID:     uuid.NewString(),
		ReferenceNumber: referenceNumber,
		CodeHash:        digest,
		Status:          StatusPending,
		AttemptCount:    0,
		ExpiresAt:       now.Add(ttl),
		CreatedAt:       now,
	}

	if err := m.store.Create(ctx, challenge); err != nil {
		return Challenge{}, "", derrors.Wrap(err, derrors.CodeInternal, "persist challenge")
	}

	m.logger.Info("challenge created",
		"reference_number", referenceNumber,
		"challenge_id", challenge.ChallengeID,
		"expires_at", challenge.ExpiresAt,
	)
	return challenge, code, nil
}

// Validate compares the supplied code against the stored digest in constant
// time. Pure: no state changes, no expiry or attempt decisions.
func (m *Manager) Validate(challenge Challenge, supplied string) bool {
	return m.hasher.Verify(challenge.CodeHash, supplied)
}

// Latest returns the most recent challenge for a reference.
func (m *Manager) Latest(ctx context.Context, referenceNumber string) (Challenge, error) {
	return m.store.LatestByReference(ctx, referenceNumber)
}

// RecordAttempt increments the attempt counter and persists it. Callers hold
// the per-reference lock, so the read-modify-write here is not racy.
func (m *Manager) RecordAttempt(ctx context.Context, challenge Challenge) (Challenge, error) {
	challenge.AttemptCount++
	if err := m.store.Update(ctx, challenge); err != nil {
		return Challenge{}, derrors.Wrap(err, derrors.CodeInternal, "record attempt")
	}
	return challenge, nil
}

// Transition moves the challenge to a new status, enforcing the transition
// table. Illegal moves return CodeInvalidState without touching the store.
func (m *Manager) Transition(ctx context.Context, challenge Challenge, to Status) (Challenge, error) {
	if !CanTransition(challenge.Status, to) {
		return Challenge{}, derrors.New(derrors.CodeInvalidState,
			fmt.Sprintf("challenge %s cannot move %s -> %s", challenge.ChallengeID, challenge.Status, to))
	}
	challenge.Status = to
	if err := m.store.Update(ctx, challenge); err != nil {
		return Challenge{}, derrors.Wrap(err, derrors.CodeInternal, "persist transition")
	}
	return challenge, nil
}

func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", codeDigits, n), nil
}
