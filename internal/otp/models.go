package otp

import "time"

// Status is the lifecycle state of a single challenge.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusVerified Status = "VERIFIED"
	StatusFailed   Status = "FAILED"
	StatusExpired  Status = "EXPIRED"
)

// transitions is the only legal movement between challenge statuses. A
// challenge leaves PENDING exactly once; terminal statuses are frozen.
var transitions = map[Status][]Status{
	StatusPending:  {StatusVerified, StatusFailed, StatusExpired},
	StatusVerified: {},
	StatusFailed:   {},
	StatusExpired:  {},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s Status) Terminal() bool {
	return s == StatusVerified || s == StatusFailed || s == StatusExpired
}

// Challenge is one OTP issued for a verification request. The code itself is
// returned once at creation and never stored; only CodeHash persists.
type Challenge struct {
	ChallengeID     string
	ReferenceNumber string
	CodeHash        string
	Status          Status
	AttemptCount    int
	ExpiresAt       time.Time
	CreatedAt       time.Time
}

// Expired reports whether the challenge is unusable at the given instant,
// regardless of status.
func (c Challenge) Expired(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// AttemptsRemaining returns how many validation attempts are left under the
// given budget, never negative.
func (c Challenge) AttemptsRemaining(maxAttempts int) int {
	remaining := maxAttempts - c.AttemptCount
	if remaining < 0 {
		return 0
	}
	return remaining
}
