package otp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"ekyc/internal/platform/redis"
	"ekyc/pkg/platform/sentinel"
)

// RedisStore keeps the latest challenge per reference with a TTL slightly
// past the request window, so abandoned challenges age out on their own.
// Earlier challenges for the same reference are superseded; the full history
// lives in the audit trail, not here.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func challengeKey(referenceNumber string) string {
	return "ekyc:challenge:" + referenceNumber
}

func (s *RedisStore) Create(ctx context.Context, challenge Challenge) error {
	return s.write(ctx, challenge)
}

func (s *RedisStore) Update(ctx context.Context, challenge Challenge) error {
	key := challengeKey(challenge.ReferenceNumber)
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check challenge: %w", err)
	}
	if exists == 0 {
		return sentinel.ErrNotFound
	}
	return s.write(ctx, challenge)
}

func (s *RedisStore) LatestByReference(ctx context.Context, referenceNumber string) (Challenge, error) {
	raw, err := s.client.Get(ctx, challengeKey(referenceNumber)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return Challenge{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Challenge{}, fmt.Errorf("read challenge: %w", err)
	}

	var record challengeRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return Challenge{}, fmt.Errorf("decode challenge: %w", err)
	}
	return record.toChallenge(), nil
}

func (s *RedisStore) write(ctx context.Context, challenge Challenge) error {
	raw, err := json.Marshal(fromChallenge(challenge))
	if err != nil {
		return fmt.Errorf("encode challenge: %w", err)
	}
	if err := s.client.Set(ctx, challengeKey(challenge.ReferenceNumber), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("write challenge: %w", err)
	}
	return nil
}

type challengeRecord struct {
	ChallengeID     string    `json:"challengeId"`
	ReferenceNumber string    `json:"referenceNumber"`
	CodeHash        string    `json:"codeHash"`
	Status          string    `json:"status"`
	AttemptCount    int       `json:"attemptCount"`
	ExpiresAt       time.Time `json:"expiresAt"`
	CreatedAt       time.Time `json:"createdAt"`
}

func fromChallenge(c Challenge) challengeRecord {
	return challengeRecord{
		ChallengeID:     c.ChallengeID,
		ReferenceNumber: c.ReferenceNumber,
		CodeHash:        c.CodeHash,
		Status:          string(c.Status),
		AttemptCount:    c.AttemptCount,
		ExpiresAt:       c.ExpiresAt,
		CreatedAt:       c.CreatedAt,
	}
}

func (r challengeRecord) toChallenge() Challenge {
	return Challenge{
		ChallengeID:     r.ChallengeID,
		ReferenceNumber: r.ReferenceNumber,
		CodeHash:        r.CodeHash,
		Status:          Status(r.Status),
		AttemptCount:    r.AttemptCount,
		ExpiresAt:       r.ExpiresAt,
		CreatedAt:       r.CreatedAt,
	}
}
