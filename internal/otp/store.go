package otp

import "context"

// Store persists challenges. Challenges accumulate per reference; reads only
// ever need the most recent one. Implementations return sentinel.ErrNotFound
// when a reference has no challenge.
type Store interface {
	Create(ctx context.Context, challenge Challenge) error
	Update(ctx context.Context, challenge Challenge) error
	LatestByReference(ctx context.Context, referenceNumber string) (Challenge, error)
}
