package provider

import "context"

// Verdict is the authority's answer to a confirm call.
type Verdict string

const (
	VerdictVerified         Verdict = "verified"
	VerdictInvalid          Verdict = "invalid"
	VerdictExpired          Verdict = "expired"
	VerdictUnknownReference Verdict = "unknown_reference"
)

// Rejection reason codes the authority may return on start.
const (
	ReasonIdentifierNotFound = "IDENTIFIER_NOT_FOUND"
	ReasonIdentifierBlocked  = "IDENTIFIER_BLOCKED"
	ReasonReferenceUsed      = "REFERENCE_ALREADY_USED"
)

// StartRequest begins a challenge with the identity authority.
type StartRequest struct {
	IdentifierType  string
	IdentifierValue string
	CorrelationID   string
}

// StartResponse reports whether the authority accepted the challenge.
// Contact is the registered delivery address for the one-time password; it is
// PII and must be masked before any logging.
type StartResponse struct {
	Accepted bool
	Reason   string
	Contact  string
}

// ConfirmRequest asks the authority to confirm a supplied OTP.
type ConfirmRequest struct {
	IdentifierValue string
	OTP             string
	CorrelationID   string
}

// ConfirmResponse carries the authority's verdict.
type ConfirmResponse struct {
	Verdict Verdict
	Reason  string
}

// Gateway is a single-attempt transport to the identity authority. Errors are
// *UpstreamError values; business rejections come back as regular responses.
// The Client layers retries, auditing, and outcome normalization on top.
type Gateway interface {
	StartChallenge(ctx context.Context, req StartRequest) (StartResponse, error)
	ConfirmChallenge(ctx context.Context, req ConfirmRequest) (ConfirmResponse, error)
}
