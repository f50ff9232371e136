// Package masking redacts personally-identifiable values before they reach
// logs or audit records. Masking is deterministic and one-directional; the
// Masked type marks a value as safe to persist.
package masking

import "strings"

// Kind selects the redaction rule for a value.
type Kind string

const (
	// KindIdentifier covers national identity numbers. Only the last four
	// characters survive; the rest is replaced with a fixed placeholder so
	// the output never leaks the original length.
	KindIdentifier Kind = "IDENTIFIER"

	// KindOTP covers one-time passwords. Fully replaced regardless of length.
	KindOTP Kind = "OTP"

	// KindContact covers delivery addresses (e-mail or phone). Keeps the
	// first character of the local part and the domain suffix.
	KindContact Kind = "CONTACT"
)

const (
	identifierPlaceholder = "XXXXXXXX"
	otpPlaceholder        = "******"
	contactPlaceholder    = "***"
)

// Masked is a redacted value. Audit payloads accept only this type, so a raw
// identifier or OTP cannot be persisted by construction.
type Masked string

// Mask redacts raw according to kind. Unknown kinds are fully replaced.
func Mask(raw string, kind Kind) Masked {
	switch kind {
	case KindIdentifier:
		return maskIdentifier(raw)
	case KindOTP:
		return otpPlaceholder
	case KindContact:
		return maskContact(raw)
	default:
		return otpPlaceholder
	}
}

func maskIdentifier(raw string) Masked {
	if raw == "" {
		return ""
	}
	tail := raw
	if len(raw) > 4 {
		tail = raw[len(raw)-4:]
	}
	return Masked(identifierPlaceholder + tail)
}

// maskContact keeps the first character of the local part and the domain
// suffix: "jane.doe@example.com" -> "j***@***.com". Values without an "@"
// (phone numbers) keep only the last two digits.
func maskContact(raw string) Masked {
	if raw == "" {
		return ""
	}
	at := strings.IndexByte(raw, '@')
	if at <= 0 {
		tail := raw
		if len(raw) > 2 {
			tail = raw[len(raw)-2:]
		}
		return Masked(contactPlaceholder + tail)
	}
	local := raw[:at]
	domain := raw[at+1:]
	suffix := ""
	if dot := strings.LastIndexByte(domain, '.'); dot >= 0 {
		suffix = domain[dot:]
	}
	return Masked(local[:1] + contactPlaceholder + "@" + contactPlaceholder + suffix)
}
