// Package circuit implements a minimal circuit breaker. Callers record the
// outcome of each protected operation; the breaker decides when the dependency
// should be considered down and when to probe it again.
package circuit

import (
	"sync"
	"time"
)

// State is the breaker position.
type State string

const (
	StateClosed State = "closed"
	StateOpen   State = "open"

	// StateHalfOpen lets calls through after the cooldown so their results
	// decide whether the dependency recovered.
	StateHalfOpen State = "half-open"
)

const (
	defaultFailureThreshold = 5
	defaultSuccessThreshold = 2
	defaultCooldown         = 30 * time.Second
)

// StateChange reports a transition caused by a recorded outcome. Both fields
// are false when the outcome left the state untouched.
type StateChange struct {
	Opened bool
	Closed bool
}

// Breaker tracks consecutive failures against a named dependency. An open
// breaker is never permanent: once the cooldown passes it half-opens and the
// next recorded results either close it or start a new cooldown.
type Breaker struct {
	name             string
	failureThreshold int
	successThreshold int
	cooldown         time.Duration
	now              func() time.Time

	mu        sync.Mutex
	state     State
	failures  int
	successes int
	openUntil time.Time
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithFailureThreshold sets how many consecutive failures open the circuit.
func WithFailureThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.failureThreshold = n
		}
	}
}

// WithSuccessThreshold sets how many consecutive successes close an open
// circuit again.
func WithSuccessThreshold(n int) Option {
	return func(b *Breaker) {
		if n > 0 {
			b.successThreshold = n
		}
	}
}

// WithCooldown sets how long the circuit stays open before half-opening.
func WithCooldown(d time.Duration) Option {
	return func(b *Breaker) {
		if d > 0 {
			b.cooldown = d
		}
	}
}

// New returns a closed breaker for the named dependency.
func New(name string, opts ...Option) *Breaker {
	b := &Breaker{
		name:             name,
		failureThreshold: defaultFailureThreshold,
		successThreshold: defaultSuccessThreshold,
		cooldown:         defaultCooldown,
		now:              time.Now,
		state:            StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns the dependency name given at construction.
func (b *Breaker) Name() string { return b.name }

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// IsOpen reports whether callers should use their fallback path.
func (b *Breaker) IsOpen() bool {
	return b.State() == StateOpen
}

// Allow reports whether a call may proceed. An open circuit whose cooldown
// has passed half-opens here, letting probe calls through; their recorded
// results decide what happens next.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateOpen && !b.now().Before(b.openUntil) {
		b.state = StateHalfOpen
		b.successes = 0
	}
	return b.state != StateOpen
}

// RecordFailure notes a failed operation. useFallback is true when the
// circuit is (now) open. A failed half-open probe reopens the circuit and
// starts a fresh cooldown; a failure while open resets the success streak.
func (b *Breaker) RecordFailure() (useFallback bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		b.successes = 0
		return true, StateChange{}
	case StateHalfOpen:
		b.open()
		return true, StateChange{Opened: true}
	}

	b.failures++
	if b.failures >= b.failureThreshold {
		b.open()
		return true, StateChange{Opened: true}
	}
	return false, StateChange{}
}

// RecordSuccess notes a successful operation. usePrimary is true when the
// circuit is (now) closed. A success while closed resets the failure streak.
func (b *Breaker) RecordSuccess() (usePrimary bool, change StateChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateClosed {
		b.failures = 0
		return true, StateChange{}
	}

	b.successes++
	if b.successes >= b.successThreshold {
		b.state = StateClosed
		b.failures = 0
		b.successes = 0
		return true, StateChange{Closed: true}
	}
	return false, StateChange{}
}

// open must be called with the mutex held.
func (b *Breaker) open() {
	b.state = StateOpen
	b.openUntil = b.now().Add(b.cooldown)
	b.failures = 0
	b.successes = 0
}

// Reset forces the breaker closed and clears all streaks.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}
