// Package delivery carries generated OTP codes to the registered contact
// address. Delivery is fire-and-forget from the orchestrator's perspective: a
// failed send never fails the business operation.
package delivery

import (
	"context"
	"log/slog"

	"ekyc/internal/masking"
)

// Sender delivers a one-time code to a destination (phone number or email).
type Sender interface {
	Send(ctx context.Context, destination, code string)
}

// LogSender is the default channel for environments without an SMS or email
// provider: it logs that a delivery happened, with the destination masked and
// the code omitted entirely.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(_ context.Context, destination, _ string) {
	s.logger.Info("otp dispatched",
		"destination", string(masking.Mask(destination, masking.KindContact)),
	)
}
