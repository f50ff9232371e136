package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ekyc/internal/audit"
	"ekyc/internal/delivery"
	"ekyc/internal/otp"
	"ekyc/internal/platform/config"
	"ekyc/internal/provider"
	"ekyc/internal/verification/metrics"
	derrors "ekyc/pkg/domain-errors"
	"ekyc/pkg/platform/sentinel"
	"ekyc/pkg/requestcontext"
)

// IdentityClient is the normalized upstream surface the orchestrator branches
// on. Satisfied by *provider.Client.
type IdentityClient interface {
	StartChallenge(ctx context.Context, identifierType, identifierValue, correlationID string) provider.Outcome
	ConfirmChallenge(ctx context.Context, identifierValue, otp, correlationID string) provider.Outcome
}

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks IdentityClient

// InitiateResult is the business outcome of Initiate. A FAILED status still
// carries the reference number so the caller can inspect the audit trail.
type InitiateResult struct {
	ReferenceNumber string
	Status          Status
	FailureReason   string
}

// SubmitResult is the business outcome of SubmitOtp. AttemptsRemaining is
// meaningful only while Status is IN_PROGRESS.
type SubmitResult struct {
	Status            Status
	AttemptsRemaining int
	FailureReason     string
}

// StatusResult is the read-only view returned by GetStatus.
type StatusResult struct {
	ReferenceNumber      string
	Status               Status
	Message              string
	FailureReason        string
	AttemptsRemaining    int
	HasAttemptsRemaining bool
	CreatedAt            string
	UpdatedAt            string
}

// Service owns the verification state machine. Business outcomes (rejected
// identifier, wrong OTP, exhausted attempts) are result values; errors are
// reserved for validation, lookup, state, and infrastructure failures.
type Service struct {
	store      Store
	challenges *otp.Manager
	identity   IdentityClient
	policy     config.Policy

	recorder audit.Recorder
	sender   delivery.Sender
	metrics  *metrics.Metrics
	logger   *slog.Logger
	locks    *keyedMutex
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithRecorder(recorder audit.Recorder) Option {
	return func(s *Service) { s.recorder = recorder }
}

func WithSender(sender delivery.Sender) Option {
	return func(s *Service) { s.sender = sender }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func NewService(store Store, challenges *otp.Manager, identity IdentityClient, policy config.Policy, opts ...Option) *Service {
	s := &Service{
		store:      store,
		challenges: challenges,
		identity:   identity,
		policy:     policy,
		logger:     slog.Default(),
		locks:      newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate validates the input, mints a reference, and asks the identity
// authority to start a challenge. Validation failures create no request row.
// An upstream failure still persists the request, as FAILED, so the reference
// stays inspectable; it can never be retried.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (InitiateResult, error) {
	if err := ValidateInitiate(in); err != nil {
		s.record(ctx, audit.EventValidationFailed, "", audit.NewPayload().
			WithDetail("session_id", in.SessionID).
			WithDetail("error", derrors.MessageOf(err)), audit.OutcomeFailure)
		return InitiateResult{}, err
	}

	now := requestcontext.Now(ctx)
	req := Request{
		ID:              uuid.NewString(),
		ReferenceNumber: NewReferenceNumber(),
		IdentifierType:  in.IdentifierType,
		IdentifierValue: in.IdentifierValue,
		IdentityConsent: in.IdentityConsent,
		ContactConsent:  in.ContactConsent,
		SessionID:       in.SessionID,
		Status:          StatusInitiated,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return InitiateResult{}, derrors.Wrap(err, derrors.CodeInternal, "create request")
	}

	outcome := s.identity.StartChallenge(ctx, string(in.IdentifierType), in.IdentifierValue, req.ReferenceNumber)
	s.metrics.RecordUpstreamAttempts(outcome.Attempts)

	switch outcome.Kind {
	case provider.KindSuccess:
		challenge, code, err := s.challenges.Create(ctx, req.ReferenceNumber, s.policy.OTPTTL)
		if err != nil {
			s.abandon(ctx, &req)
			return InitiateResult{}, err
		}
		s.deliver(ctx, req.ReferenceNumber, outcome.Contact, code)
		if err := s.transition(ctx, &req, StatusInProgress, ""); err != nil {
			s.abandon(ctx, &req)
			return InitiateResult{}, err
		}
		s.record(ctx, audit.EventInitiated, req.ReferenceNumber, audit.NewPayload().
			WithIdentifier(in.IdentifierValue).
			WithDetail("session_id", in.SessionID).
			WithDetail("challenge_id", challenge.ChallengeID), audit.OutcomeSuccess)
		s.metrics.RecordInitiation(string(StatusInProgress))
		return InitiateResult{ReferenceNumber: req.ReferenceNumber, Status: req.Status}, nil

	case provider.KindBusinessRejection:
		return s.failInitiation(ctx, &req, in, outcome.Reason)

	default:
		return s.failInitiation(ctx, &req, in, ReasonUpstreamUnavailable)
	}
}

// abandon fails a half-initiated request so it never lingers in INITIATED,
// a state the sweeper does not reap. Best effort: the caller is already
// returning the original error.
func (s *Service) abandon(ctx context.Context, req *Request) {
	if req.Status.Terminal() {
		return
	}
	if err := s.transition(ctx, req, StatusFailed, ReasonInternalError); err != nil {
		s.logger.Error("failed to abandon request",
			"reference_number", req.ReferenceNumber, "error", err)
	}
}

func (s *Service) failInitiation(ctx context.Context, req *Request, in InitiateInput, reason string) (InitiateResult, error) {
	if err := s.transition(ctx, req, StatusFailed, reason); err != nil {
		return InitiateResult{}, err
	}
	s.record(ctx, audit.EventInitiationFailed, req.ReferenceNumber, audit.NewPayload().
		WithIdentifier(in.IdentifierValue).
		WithDetail("session_id", in.SessionID).
		WithDetail("reason", reason), audit.OutcomeFailure)
	s.metrics.RecordInitiation(string(StatusFailed))
	return InitiateResult{ReferenceNumber: req.ReferenceNumber, Status: StatusFailed, FailureReason: reason}, nil
}

// SubmitOtp validates a supplied code against the request's newest challenge.
// Calls against the same reference are serialized, so the attempt counter
// increments atomically; different references proceed in parallel.
func (s *Service) SubmitOtp(ctx context.Context, referenceNumber, suppliedOTP string) (SubmitResult, error) {
	if !ValidReferenceFormat(referenceNumber) {
		return SubmitResult{}, derrors.New(derrors.CodeValidation, "referenceNumber has an invalid format")
	}

	unlock := s.locks.lock(referenceNumber)
	defer unlock()

	req, err := s.store.GetByReference(ctx, referenceNumber)
	if errors.Is(err, sentinel.ErrNotFound) {
		return SubmitResult{}, derrors.New(derrors.CodeNotFound, "unknown referenceNumber")
	}
	if err != nil {
		return SubmitResult{}, derrors.Wrap(err, derrors.CodeInternal, "load request")
	}
	if req.Status != StatusInProgress {
		return SubmitResult{}, derrors.New(derrors.CodeInvalidState,
			fmt.Sprintf("request is %s; OTP submission requires IN_PROGRESS", req.Status))
	}

	challenge, err := s.challenges.Latest(ctx, referenceNumber)
	if err != nil {
		return SubmitResult{}, derrors.Wrap(err, derrors.CodeInternal, "load challenge")
	}

	// An unusable challenge is terminal for the request, and no upstream
	// call is made for it.
	now := requestcontext.Now(ctx)
	if challenge.Status != otp.StatusPending || challenge.Expired(now) {
		if challenge.Status == otp.StatusPending {
			if challenge, err = s.challenges.Transition(ctx, challenge, otp.StatusExpired); err != nil {
				return SubmitResult{}, err
			}
		}
		if err := s.transition(ctx, &req, StatusFailed, ReasonChallengeExpired); err != nil {
			return SubmitResult{}, err
		}
		s.auditOTPFailure(ctx, referenceNumber, suppliedOTP, ReasonChallengeExpired)
		s.metrics.RecordSubmission("challenge_expired")
		return SubmitResult{Status: StatusFailed, FailureReason: ReasonChallengeExpired}, nil
	}

	// Every submission consumes an attempt, malformed input included.
	challenge, err = s.challenges.RecordAttempt(ctx, challenge)
	if err != nil {
		return SubmitResult{}, err
	}

	// Over-budget before any upstream call: the limit is attempt-count
	// based, not success based.
	if challenge.AttemptCount > s.policy.MaxOTPAttempts {
		return s.rejectAttempt(ctx, &req, challenge, suppliedOTP)
	}

	if !ValidOTPFormat(suppliedOTP) || !s.challenges.Validate(challenge, suppliedOTP) {
		return s.rejectAttempt(ctx, &req, challenge, suppliedOTP)
	}

	outcome := s.identity.ConfirmChallenge(ctx, req.IdentifierValue, suppliedOTP, referenceNumber)
	s.metrics.RecordUpstreamAttempts(outcome.Attempts)

	switch {
	case outcome.Succeeded():
		if challenge, err = s.challenges.Transition(ctx, challenge, otp.StatusVerified); err != nil {
			return SubmitResult{}, err
		}
		if err := s.transition(ctx, &req, StatusVerified, ""); err != nil {
			return SubmitResult{}, err
		}
		s.record(ctx, audit.EventOTPVerified, referenceNumber, audit.NewPayload().
			WithOTP(suppliedOTP).
			WithDetail("challenge_id", challenge.ChallengeID), audit.OutcomeSuccess)
		s.metrics.RecordSubmission("verified")
		return SubmitResult{Status: StatusVerified}, nil

	case outcome.Kind == provider.KindBusinessRejection && outcome.Reason == provider.ReasonOTPMismatch:
		return s.rejectAttempt(ctx, &req, challenge, suppliedOTP)

	case outcome.Kind == provider.KindBusinessRejection:
		// The authority no longer recognizes the challenge; it cannot be
		// answered by any further attempt.
		if _, err := s.challenges.Transition(ctx, challenge, otp.StatusExpired); err != nil {
			return SubmitResult{}, err
		}
		reason := outcome.Reason
		if err := s.transition(ctx, &req, StatusFailed, reason); err != nil {
			return SubmitResult{}, err
		}
		s.auditOTPFailure(ctx, referenceNumber, suppliedOTP, reason)
		s.metrics.RecordSubmission("rejected")
		return SubmitResult{Status: StatusFailed, FailureReason: reason}, nil

	default:
		if _, err := s.challenges.Transition(ctx, challenge, otp.StatusFailed); err != nil {
			return SubmitResult{}, err
		}
		if err := s.transition(ctx, &req, StatusFailed, ReasonUpstreamUnavailable); err != nil {
			return SubmitResult{}, err
		}
		s.auditOTPFailure(ctx, referenceNumber, suppliedOTP, ReasonUpstreamUnavailable)
		s.metrics.RecordSubmission("upstream_unavailable")
		return SubmitResult{Status: StatusFailed, FailureReason: ReasonUpstreamUnavailable}, nil
	}
}

// rejectAttempt handles a wrong, malformed, or over-budget submission. While
// budget remains the challenge stays PENDING and the request IN_PROGRESS.
func (s *Service) rejectAttempt(ctx context.Context, req *Request, challenge otp.Challenge, suppliedOTP string) (SubmitResult, error) {
	remaining := challenge.AttemptsRemaining(s.policy.MaxOTPAttempts)
	if remaining == 0 {
		if _, err := s.challenges.Transition(ctx, challenge, otp.StatusFailed); err != nil {
			return SubmitResult{}, err
		}
		if err := s.transition(ctx, req, StatusFailed, ReasonMaxAttemptsExceeded); err != nil {
			return SubmitResult{}, err
		}
		s.auditOTPFailure(ctx, req.ReferenceNumber, suppliedOTP, ReasonMaxAttemptsExceeded)
		s.metrics.RecordSubmission("max_attempts_exceeded")
		return SubmitResult{Status: StatusFailed, FailureReason: ReasonMaxAttemptsExceeded}, nil
	}

	s.auditOTPFailure(ctx, req.ReferenceNumber, suppliedOTP, ReasonInvalidOTP)
	s.metrics.RecordSubmission("invalid_otp")
	return SubmitResult{
		Status:            StatusInProgress,
		AttemptsRemaining: remaining,
		FailureReason:     ReasonInvalidOTP,
	}, nil
}

// GetStatus is read-only and idempotent; it never mutates the request or its
// challenges. Attempts-remaining is reported only while non-terminal.
func (s *Service) GetStatus(ctx context.Context, referenceNumber string) (StatusResult, error) {
	if !ValidReferenceFormat(referenceNumber) {
		return StatusResult{}, derrors.New(derrors.CodeValidation, "referenceNumber has an invalid format")
	}

	req, err := s.store.GetByReference(ctx, referenceNumber)
	if errors.Is(err, sentinel.ErrNotFound) {
		return StatusResult{}, derrors.New(derrors.CodeNotFound, "unknown referenceNumber")
	}
	if err != nil {
		return StatusResult{}, derrors.Wrap(err, derrors.CodeInternal, "load request")
	}

	res := StatusResult{
		ReferenceNumber: req.ReferenceNumber,
		Status:          req.Status,
		Message:         StatusMessage(req.Status),
		FailureReason:   req.FailureReason,
		CreatedAt:       req.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       req.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if !req.Status.Terminal() {
		if challenge, err := s.challenges.Latest(ctx, referenceNumber); err == nil {
			res.AttemptsRemaining = challenge.AttemptsRemaining(s.policy.MaxOTPAttempts)
			res.HasAttemptsRemaining = true
		}
	}

	s.record(ctx, audit.EventStatusCheck, referenceNumber, audit.NewPayload().
		WithDetail("status", string(req.Status)), audit.OutcomeSuccess)
	return res, nil
}

// transition applies the table and persists. Illegal moves return
// CodeInvalidState with no side effect.
func (s *Service) transition(ctx context.Context, req *Request, to Status, reason string) error {
	if !CanTransition(req.Status, to) {
		return derrors.New(derrors.CodeInvalidState,
			fmt.Sprintf("request cannot move %s -> %s", req.Status, to))
	}
	req.Status = to
	req.FailureReason = reason
	req.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, *req); err != nil {
		return derrors.Wrap(err, derrors.CodeInternal, "persist transition")
	}
	return nil
}

func (s *Service) deliver(ctx context.Context, referenceNumber, contact, code string) {
	if s.sender == nil || contact == "" {
		return
	}
	s.sender.Send(ctx, contact, code)
	s.record(ctx, audit.EventOTPDelivered, referenceNumber, audit.NewPayload().
		WithContact(contact).
		WithOTP(code), audit.OutcomeSuccess)
}

func (s *Service) auditOTPFailure(ctx context.Context, referenceNumber, suppliedOTP, reason string) {
	s.record(ctx, audit.EventOTPFailed, referenceNumber, audit.NewPayload().
		WithOTP(suppliedOTP).
		WithDetail("reason", reason), audit.OutcomeFailure)
}

func (s *Service) record(ctx context.Context, eventType audit.EventType, referenceNumber string, payload audit.Payload, outcome audit.Outcome) {
	if s.recorder == nil {
		return
	}
	s.recorder.Record(ctx, eventType, referenceNumber, payload, outcome)
}
