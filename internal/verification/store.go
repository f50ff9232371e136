package verification

import (
	"context"
	"time"
)

// Store persists verification requests keyed by reference number.
// Implementations return sentinel.ErrNotFound for unknown references and
// sentinel.ErrConflict when a reference number collides on create.
type Store interface {
	Create(ctx context.Context, req Request) error
	Update(ctx context.Context, req Request) error
	GetByReference(ctx context.Context, referenceNumber string) (Request, error)

	// ListStaleInProgress returns up to limit IN_PROGRESS requests created
	// before the cutoff, for the expiry sweeper.
	ListStaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]Request, error)
}
