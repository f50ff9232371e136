package audit

import (
	"encoding/json"
	"sort"
	"time"

	"ekyc/internal/masking"
)

// EventType labels what happened. Keep the set small and scoped to the
// verification flow; transports and consumers rely on these being stable.
type EventType string

const (
	EventInitiated        EventType = "EKYC_INITIATED"
	EventInitiationFailed EventType = "EKYC_INITIATION_FAILED"
	EventUpstreamCall     EventType = "UPSTREAM_CALL"
	EventOTPVerified      EventType = "OTP_VERIFIED"
	EventOTPFailed        EventType = "OTP_FAILED"
	EventStatusCheck      EventType = "STATUS_CHECK"
	EventRequestExpired   EventType = "REQUEST_EXPIRED"
	EventValidationFailed EventType = "VALIDATION_FAILED"
	EventOTPDelivered     EventType = "OTP_DELIVERED"
)

// Outcome records whether the audited action succeeded.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
)

// Entry is an immutable audit record. ReferenceNumber may be empty for
// pre-request events (validation failures before a reference is minted).
type Entry struct {
	EntryID         string
	ReferenceNumber string
	EventType       EventType
	Payload         Payload
	Outcome         Outcome
	Timestamp       time.Time
}

// Payload holds the masked key-value detail of an entry. Sensitive values can
// only enter through the masking setters, so an unredacted identifier, OTP, or
// contact address cannot reach a persisted entry by construction.
type Payload struct {
	fields map[string]string
}

// NewPayload returns an empty payload.
func NewPayload() Payload {
	return Payload{fields: map[string]string{}}
}

// WithIdentifier adds the identifier after masking.
func (p Payload) WithIdentifier(raw string) Payload {
	return p.set("identifier", string(masking.Mask(raw, masking.KindIdentifier)))
}

// WithOTP adds the OTP placeholder; the raw value is discarded.
func (p Payload) WithOTP(raw string) Payload {
	return p.set("otp", string(masking.Mask(raw, masking.KindOTP)))
}

// WithContact adds the delivery address after masking.
func (p Payload) WithContact(raw string) Payload {
	return p.set("contact", string(masking.Mask(raw, masking.KindContact)))
}

// WithDetail adds a non-sensitive field (reasons, attempt numbers, statuses).
// Callers must not route PII through here; use the typed setters above.
func (p Payload) WithDetail(key, value string) Payload {
	return p.set(key, value)
}

func (p Payload) set(key, value string) Payload {
	next := map[string]string{}
	for k, v := range p.fields {
		next[k] = v
	}
	next[key] = value
	return Payload{fields: next}
}

// Get returns the value for key, or empty.
func (p Payload) Get(key string) string {
	return p.fields[key]
}

// Keys returns the payload keys sorted for deterministic iteration.
func (p Payload) Keys() []string {
	keys := make([]string, 0, len(p.fields))
	for k := range p.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MarshalJSON serializes the payload as a flat object.
func (p Payload) MarshalJSON() ([]byte, error) {
	if p.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(p.fields)
}

// UnmarshalJSON restores a payload read back from a store.
func (p *Payload) UnmarshalJSON(b []byte) error {
	return json.Unmarshal(b, &p.fields)
}
