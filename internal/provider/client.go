package provider

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"ekyc/internal/audit"
	"ekyc/internal/platform/config"
	"ekyc/pkg/platform/circuit"
)

// Client wraps a Gateway with a uniform retry policy, a circuit breaker,
// per-attempt auditing, and outcome normalization. Only transient-classified
// errors are retried; business rejections return immediately.
type Client struct {
	gateway  Gateway
	policy   config.Policy
	recorder audit.Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
	breaker  *circuit.Breaker
}

// ClientOption configures a Client.
type ClientOption func(*Client)

func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

func WithRecorder(recorder audit.Recorder) ClientOption {
	return func(c *Client) { c.recorder = recorder }
}

// WithBreaker replaces the default circuit breaker, mainly to tune thresholds.
func WithBreaker(breaker *circuit.Breaker) ClientOption {
	return func(c *Client) { c.breaker = breaker }
}

func NewClient(gateway Gateway, policy config.Policy, opts ...ClientOption) *Client {
	c := &Client{
		gateway: gateway,
		policy:  policy,
		logger:  slog.Default(),
		tracer:  otel.Tracer("ekyc/provider"),
		breaker: circuit.New("identity-authority"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartChallenge asks the authority to begin a challenge for the identifier.
// correlationID is the reference number; every attempt is audited against it.
func (c *Client) StartChallenge(ctx context.Context, identifierType, identifierValue, correlationID string) Outcome {
	var resp StartResponse
	outcome := c.call(ctx, "start_challenge", correlationID, identifierValue, func(ctx context.Context) error {
		var err error
		resp, err = c.gateway.StartChallenge(ctx, StartRequest{
			IdentifierType:  identifierType,
			IdentifierValue: identifierValue,
			CorrelationID:   correlationID,
		})
		return err
	})
	if outcome.Kind != KindSuccess {
		return outcome
	}
	if !resp.Accepted {
		outcome.Kind = KindBusinessRejection
		outcome.Reason = resp.Reason
		return outcome
	}
	outcome.Contact = resp.Contact
	return outcome
}

// ConfirmChallenge asks the authority to confirm a supplied OTP. A verified
// verdict is a success; every other verdict is a business rejection with a
// normalized reason.
func (c *Client) ConfirmChallenge(ctx context.Context, identifierValue, otp, correlationID string) Outcome {
	var resp ConfirmResponse
	outcome := c.call(ctx, "confirm_challenge", correlationID, identifierValue, func(ctx context.Context) error {
		var err error
		resp, err = c.gateway.ConfirmChallenge(ctx, ConfirmRequest{
			IdentifierValue: identifierValue,
			OTP:             otp,
			CorrelationID:   correlationID,
		})
		return err
	})
	if outcome.Kind != KindSuccess {
		return outcome
	}
	switch resp.Verdict {
	case VerdictVerified:
		return outcome
	case VerdictInvalid:
		outcome.Kind = KindBusinessRejection
		outcome.Reason = ReasonOTPMismatch
	case VerdictExpired:
		outcome.Kind = KindBusinessRejection
		outcome.Reason = ReasonChallengeExpired
	case VerdictUnknownReference:
		outcome.Kind = KindBusinessRejection
		outcome.Reason = ReasonUnknownReference
	default:
		outcome.Kind = KindUnrecoverableFailure
		outcome.Reason = ReasonUpstreamUnavailable
	}
	return outcome
}

// call runs one gateway operation under the retry policy. The attempt counter
// and per-attempt audit entries live here so the trail shows the full retry
// history, not just the final result.
func (c *Client) call(ctx context.Context, operation, correlationID, identifierValue string, fn func(context.Context) error) Outcome {
	ctx, span := c.tracer.Start(ctx, "provider."+operation)
	defer span.End()

	if !c.breaker.Allow() {
		c.auditShortCircuit(ctx, operation, correlationID, identifierValue)
		c.logger.Warn("upstream call short-circuited, breaker open",
			"operation", operation,
			"correlation_id", correlationID,
		)
		return Outcome{Kind: KindUnrecoverableFailure, Reason: ReasonUpstreamUnavailable}
	}

	backoff := retry.WithMaxRetries(
		uint64(c.policy.RetryMaxAttempts-1),
		retry.WithCappedDuration(c.policy.RetryMaxDelay, retry.NewExponential(c.policy.RetryBaseDelay)),
	)

	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		attemptErr := fn(ctx)
		c.auditAttempt(ctx, operation, correlationID, identifierValue, attempts, attemptErr)
		if attemptErr == nil {
			return nil
		}
		if IsRetryable(attemptErr) {
			c.logger.Warn("upstream attempt failed, will retry",
				"operation", operation,
				"correlation_id", correlationID,
				"attempt", attempts,
				"category", string(CategoryOf(attemptErr)),
			)
			return retry.RetryableError(attemptErr)
		}
		return attemptErr
	})

	span.SetAttributes(attribute.Int("upstream.attempts", attempts))

	outcome := Outcome{Attempts: attempts, Kind: KindSuccess}
	if err != nil {
		if _, change := c.breaker.RecordFailure(); change.Opened {
			c.logger.Error("upstream circuit opened", "breaker", c.breaker.Name())
		}
		// Exhausted retry budget, non-retryable transport error, or caller
		// cancellation: all normalize to the same terminal outcome.
		outcome.Kind = KindUnrecoverableFailure
		outcome.Reason = ReasonUpstreamUnavailable
		c.logger.Error("upstream operation failed",
			"operation", operation,
			"correlation_id", correlationID,
			"attempts", attempts,
			"error", err.Error(),
		)
		return outcome
	}
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.Info("upstream circuit closed", "breaker", c.breaker.Name())
	}
	return outcome
}

func (c *Client) auditShortCircuit(ctx context.Context, operation, correlationID, identifierValue string) {
	if c.recorder == nil {
		return
	}
	payload := audit.NewPayload().
		WithIdentifier(identifierValue).
		WithDetail("operation", operation).
		WithDetail("category", "circuit_open")
	c.recorder.Record(ctx, audit.EventUpstreamCall, correlationID, payload, audit.OutcomeFailure)
}

func (c *Client) auditAttempt(ctx context.Context, operation, correlationID, identifierValue string, attempt int, err error) {
	if c.recorder == nil {
		return
	}
	payload := audit.NewPayload().
		WithIdentifier(identifierValue).
		WithDetail("operation", operation).
		WithDetail("attempt", strconv.Itoa(attempt))
	outcome := audit.OutcomeSuccess
	if err != nil {
		outcome = audit.OutcomeFailure
		payload = payload.WithDetail("category", string(CategoryOf(err)))
	}
	c.recorder.Record(ctx, audit.EventUpstreamCall, correlationID, payload, outcome)
}
