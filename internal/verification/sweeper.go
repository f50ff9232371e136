package verification

import (
	"context"
	"log/slog"
	"time"

	"ekyc/internal/audit"
	"ekyc/internal/otp"
	"ekyc/pkg/requestcontext"
)

const sweepBatchSize = 100

// Sweeper expires IN_PROGRESS requests whose request TTL, measured from
// creation, elapsed without resolution, so a cancelled or abandoned flow never
// stays IN_PROGRESS forever. OTP attempts do not extend a request's life. The
// sweeper shares the service's per-reference locks so a sweep cannot race a
// concurrent SubmitOtp.
type Sweeper struct {
	service *Service
	logger  *slog.Logger
}

func NewSweeper(service *Service, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{service: service, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweeperOption func(*Sweeper)

func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) { s.logger = logger }
}

// Run sweeps on the policy interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.service.policy.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.Sweep(ctx); err != nil {
				s.logger.Error("sweep failed", "error", err.Error())
			} else if n > 0 {
				s.logger.Info("swept stale requests", "expired", n)
			}
		}
	}
}

// Sweep expires one batch of stale requests and reports how many moved.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := requestcontext.Now(ctx).Add(-s.service.policy.RequestTTL)
	stale, err := s.service.store.ListStaleInProgress(ctx, cutoff, sweepBatchSize)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, req := range stale {
		if err := s.expire(ctx, req.ReferenceNumber, cutoff); err != nil {
			s.logger.Error("expire request failed",
				"reference_number", req.ReferenceNumber,
				"error", err.Error(),
			)
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Sweeper) expire(ctx context.Context, referenceNumber string, cutoff time.Time) error {
	unlock := s.service.locks.lock(referenceNumber)
	defer unlock()

	// Re-read under the lock; a racing SubmitOtp may have resolved it.
	req, err := s.service.store.GetByReference(ctx, referenceNumber)
	if err != nil {
		return err
	}
	if req.Status != StatusInProgress || !req.CreatedAt.Before(cutoff) {
		return nil
	}

	if challenge, err := s.service.challenges.Latest(ctx, referenceNumber); err == nil && challenge.Status == otp.StatusPending {
		if _, err := s.service.challenges.Transition(ctx, challenge, otp.StatusExpired); err != nil {
			return err
		}
	}

	if err := s.service.transition(ctx, &req, StatusExpired, ReasonRequestExpired); err != nil {
		return err
	}

	s.service.record(ctx, audit.EventRequestExpired, referenceNumber, audit.NewPayload().
		WithDetail("reason", ReasonRequestExpired), audit.OutcomeSuccess)
	s.service.metrics.RecordExpiry()
	return nil
}
