package provider

// Kind tags the normalized result of an upstream operation. The orchestrator
// branches only on this type, never on upstream-specific codes.
type Kind string

const (
	// KindSuccess: the authority accepted the start, or confirmed the OTP.
	KindSuccess Kind = "success"

	// KindBusinessRejection: the authority authoritatively declined.
	// Retrying the same input will not help.
	KindBusinessRejection Kind = "business_rejection"

	// KindTransientFailure: infrastructure-level failure. The client retries
	// these internally; callers only see one if surfaced mid-flight.
	KindTransientFailure Kind = "transient_failure"

	// KindUnrecoverableFailure: retry budget exhausted or a non-retryable
	// transport failure.
	KindUnrecoverableFailure Kind = "unrecoverable_failure"
)

// Reason codes attached to non-success outcomes.
const (
	ReasonOTPMismatch         = "OTP_MISMATCH"
	ReasonChallengeExpired    = "CHALLENGE_EXPIRED"
	ReasonUnknownReference    = "UNKNOWN_REFERENCE"
	ReasonUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
)

// Outcome is the normalized result the orchestrator consumes.
type Outcome struct {
	Kind   Kind
	Reason string

	// Contact is set on successful StartChallenge outcomes: the registered
	// delivery address for the OTP.
	Contact string

	// Attempts is how many upstream calls were made, retries included.
	Attempts int
}

// Succeeded reports whether the operation completed in the caller's favor.
func (o Outcome) Succeeded() bool { return o.Kind == KindSuccess }
