package verification

import (
	"regexp"

	derrors "ekyc/pkg/domain-errors"
)

var (
	primaryIDPattern   = regexp.MustCompile(`^[0-9]{12}$`)
	alternateIDPattern = regexp.MustCompile(`^[0-9]{16}$`)
	otpPattern         = regexp.MustCompile(`^[0-9]{6}$`)
	sessionIDPattern   = regexp.MustCompile(`^[a-zA-Z0-9-]{1,50}$`)
	referencePattern   = regexp.MustCompile(`^[A-Z0-9-]{1,64}$`)
)

// InitiateInput is the raw caller input to Initiate, validated before any
// state is created.
type InitiateInput struct {
	IdentifierType  IdentifierType
	IdentifierValue string
	IdentityConsent bool
	ContactConsent  bool
	SessionID       string
}

// ValidateInitiate checks all Initiate fields. It returns a CodeValidation
// error naming the first offending field; no value from the input is echoed
// back in the message.
func ValidateInitiate(in InitiateInput) error {
	switch in.IdentifierType {
	case IdentifierPrimary:
		if !primaryIDPattern.MatchString(in.IdentifierValue) {
			return derrors.New(derrors.CodeValidation, "identifierValue must be 12 digits for PRIMARY_ID")
		}
	case IdentifierAlternate:
		if !alternateIDPattern.MatchString(in.IdentifierValue) {
			return derrors.New(derrors.CodeValidation, "identifierValue must be 16 digits for ALTERNATE_ID")
		}
	default:
		return derrors.New(derrors.CodeValidation, "identifierType must be PRIMARY_ID or ALTERNATE_ID")
	}

	if !in.IdentityConsent {
		return derrors.New(derrors.CodeValidation, "identityConsent is required")
	}
	if !sessionIDPattern.MatchString(in.SessionID) {
		return derrors.New(derrors.CodeValidation, "sessionId must be 1-50 alphanumeric characters or hyphens")
	}
	return nil
}

// ValidOTPFormat reports whether the supplied code is six digits. Format
// failures still consume an attempt; callers check this after incrementing.
func ValidOTPFormat(otp string) bool {
	return otpPattern.MatchString(otp)
}

// ValidReferenceFormat guards lookups against junk input before the store is
// consulted.
func ValidReferenceFormat(ref string) bool {
	return referencePattern.MatchString(ref)
}
