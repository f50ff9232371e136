package verification

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// IdentifierType selects which identity document format is being verified.
type IdentifierType string

const (
	IdentifierPrimary   IdentifierType = "PRIMARY_ID"
	IdentifierAlternate IdentifierType = "ALTERNATE_ID"
)

// Status is the lifecycle state of a verification request.
type Status string

const (
	StatusInitiated  Status = "INITIATED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusVerified   Status = "VERIFIED"
	StatusFailed     Status = "FAILED"
	StatusExpired    Status = "EXPIRED"
)

// transitions is the canonical transition table. VERIFIED, FAILED, and
// EXPIRED admit no exits; any attempted move out of them is refused before
// side effects happen.
var transitions = map[Status][]Status{
	StatusInitiated:  {StatusInProgress, StatusFailed},
	StatusInProgress: {StatusVerified, StatusFailed, StatusExpired},
	StatusVerified:   {},
	StatusFailed:     {},
	StatusExpired:    {},
}

// CanTransition reports whether the move is in the table.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether s admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed || s == StatusExpired
}

// Failure reasons recorded on FAILED and EXPIRED requests.
const (
	ReasonInvalidOTP          = "INVALID_OTP"
	ReasonMaxAttemptsExceeded = "MAX_ATTEMPTS_EXCEEDED"
	ReasonChallengeExpired    = "CHALLENGE_EXPIRED"
	ReasonRequestExpired      = "REQUEST_EXPIRED"
	ReasonUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	ReasonUnknownReference    = "UNKNOWN_REFERENCE"
	ReasonInternalError       = "INTERNAL_ERROR"
)

// Request is one verification attempt against an identity document. The
// reference number is the only externally-visible handle; ID stays internal.
type Request struct {
	ID              string
	ReferenceNumber string
	IdentifierType  IdentifierType
	IdentifierValue string
	IdentityConsent bool
	ContactConsent  bool
	SessionID       string
	Status          Status
	FailureReason   string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewReferenceNumber mints an unguessable external handle. It carries no
// information derived from the identifier or any counter.
func NewReferenceNumber() string {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing means the process has no usable entropy
		// source; nothing sensible can continue.
		panic(fmt.Sprintf("read random bytes: %v", err))
	}
	return "EKYC-" + strings.ToUpper(hex.EncodeToString(buf))
}

// StatusMessage returns the caller-facing description for a status.
func StatusMessage(s Status) string {
	switch s {
	case StatusInitiated:
		return "Verification initiated, awaiting challenge"
	case StatusInProgress:
		return "OTP sent, awaiting confirmation"
	case StatusVerified:
		return "Identity verified successfully"
	case StatusFailed:
		return "Verification failed"
	case StatusExpired:
		return "Verification request expired"
	default:
		return "Unknown status"
	}
}
