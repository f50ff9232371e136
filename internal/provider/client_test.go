package provider

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ekyc/internal/audit"
	"ekyc/internal/platform/config"
	"ekyc/pkg/platform/circuit"
)

// scriptedGateway returns pre-programmed results in order, one per attempt.
type scriptedGateway struct {
	mu       sync.Mutex
	starts   []startResult
	confirms []confirmResult
	calls    int
}

type startResult struct {
	resp StartResponse
	err  error
}

type confirmResult struct {
	resp ConfirmResponse
	err  error
}

func (g *scriptedGateway) StartChallenge(_ context.Context, _ StartRequest) (StartResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.starts[g.calls]
	g.calls++
	return r.resp, r.err
}

func (g *scriptedGateway) ConfirmChallenge(_ context.Context, _ ConfirmRequest) (ConfirmResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r := g.confirms[g.calls]
	g.calls++
	return r.resp, r.err
}

// capturingRecorder records synchronously so tests can assert on the trail
// without draining a worker.
type capturingRecorder struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (r *capturingRecorder) Record(_ context.Context, eventType audit.EventType, referenceNumber string, payload audit.Payload, outcome audit.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, audit.Entry{
		ReferenceNumber: referenceNumber,
		EventType:       eventType,
		Payload:         payload,
		Outcome:         outcome,
	})
}

func (r *capturingRecorder) byType(t audit.EventType) []audit.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Entry
	for _, e := range r.entries {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func fastPolicy() config.Policy {
	p := config.DefaultPolicy()
	p.RetryBaseDelay = time.Millisecond
	p.RetryMaxDelay = 2 * time.Millisecond
	return p
}

func timeoutErr() error {
	return NewUpstreamError(CategoryTimeout, "upstream timed out", nil)
}

func TestClientStartChallenge(t *testing.T) {
	t.Run("success on first attempt", func(t *testing.T) {
		gw := &scriptedGateway{starts: []startResult{
			{resp: StartResponse{Accepted: true, Contact: "jane@example.com"}},
		}}
		rec := &capturingRecorder{}
		client := NewClient(gw, fastPolicy(), WithRecorder(rec), WithLogger(slog.New(slog.DiscardHandler)))

		outcome := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "REF-1")

		require.Equal(t, KindSuccess, outcome.Kind)
		assert.Equal(t, "jane@example.com", outcome.Contact)
		assert.Equal(t, 1, outcome.Attempts)
		assert.Len(t, rec.byType(audit.EventUpstreamCall), 1)
	})

	t.Run("recovers after transient failures within budget", func(t *testing.T) {
		gw := &scriptedGateway{starts: []startResult{
			{err: timeoutErr()},
			{err: NewUpstreamError(CategoryOutage, "bad gateway", nil)},
			{resp: StartResponse{Accepted: true, Contact: "jane@example.com"}},
		}}
		rec := &capturingRecorder{}
		client := NewClient(gw, fastPolicy(), WithRecorder(rec), WithLogger(slog.New(slog.DiscardHandler)))

		outcome := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "REF-2")

		require.Equal(t, KindSuccess, outcome.Kind)
		assert.Equal(t, 3, outcome.Attempts)

		calls := rec.byType(audit.EventUpstreamCall)
		require.Len(t, calls, 3)
		for i, entry := range calls {
			assert.Equal(t, "REF-2", entry.ReferenceNumber)
			assert.Equal(t, strconv.Itoa(i+1), entry.Payload.Get("attempt"))
		}
		assert.Equal(t, audit.OutcomeFailure, calls[0].Outcome)
		assert.Equal(t, audit.OutcomeFailure, calls[1].Outcome)
		assert.Equal(t, audit.OutcomeSuccess, calls[2].Outcome)
	})

	t.Run("exhausted budget yields unavailable", func(t *testing.T) {
		gw := &scriptedGateway{starts: []startResult{
			{err: timeoutErr()},
			{err: timeoutErr()},
			{err: timeoutErr()},
		}}
		rec := &capturingRecorder{}
		client := NewClient(gw, fastPolicy(), WithRecorder(rec), WithLogger(slog.New(slog.DiscardHandler)))

		outcome := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "REF-3")

		require.Equal(t, KindUnrecoverableFailure, outcome.Kind)
		assert.Equal(t, ReasonUpstreamUnavailable, outcome.Reason)
		assert.Equal(t, 3, outcome.Attempts)
		assert.Len(t, rec.byType(audit.EventUpstreamCall), 3)
	})

	t.Run("non-retryable error fails on first attempt", func(t *testing.T) {
		gw := &scriptedGateway{starts: []startResult{
			{err: NewUpstreamError(CategoryAuthentication, "bad api key", nil)},
		}}
		rec := &capturingRecorder{}
		client := NewClient(gw, fastPolicy(), WithRecorder(rec), WithLogger(slog.New(slog.DiscardHandler)))

		outcome := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "REF-4")

		require.Equal(t, KindUnrecoverableFailure, outcome.Kind)
		assert.Equal(t, 1, outcome.Attempts)
	})

	t.Run("business rejection is not retried", func(t *testing.T) {
		gw := &scriptedGateway{starts: []startResult{
			{resp: StartResponse{Accepted: false, Reason: ReasonIdentifierNotFound}},
		}}
		client := NewClient(gw, fastPolicy(), WithLogger(slog.New(slog.DiscardHandler)))

		outcome := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "REF-5")

		require.Equal(t, KindBusinessRejection, outcome.Kind)
		assert.Equal(t, ReasonIdentifierNotFound, outcome.Reason)
		assert.Equal(t, 1, outcome.Attempts)
	})

	t.Run("masked identifier in attempt audit", func(t *testing.T) {
		gw := &scriptedGateway{starts: []startResult{
			{resp: StartResponse{Accepted: true}},
		}}
		rec := &capturingRecorder{}
		client := NewClient(gw, fastPolicy(), WithRecorder(rec), WithLogger(slog.New(slog.DiscardHandler)))

		client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "REF-6")

		calls := rec.byType(audit.EventUpstreamCall)
		require.Len(t, calls, 1)
		assert.Equal(t, "XXXXXXXX9012", calls[0].Payload.Get("identifier"))
	})
}

func TestClientConfirmChallenge(t *testing.T) {
	confirm := func(t *testing.T, verdict Verdict) Outcome {
		t.Helper()
		gw := &scriptedGateway{confirms: []confirmResult{
			{resp: ConfirmResponse{Verdict: verdict}},
		}}
		client := NewClient(gw, fastPolicy(), WithLogger(slog.New(slog.DiscardHandler)))
		return client.ConfirmChallenge(context.Background(), "123456789012", "123456", "REF-10")
	}

	t.Run("verified verdict succeeds", func(t *testing.T) {
		outcome := confirm(t, VerdictVerified)
		assert.Equal(t, KindSuccess, outcome.Kind)
	})

	t.Run("invalid verdict maps to otp mismatch", func(t *testing.T) {
		outcome := confirm(t, VerdictInvalid)
		require.Equal(t, KindBusinessRejection, outcome.Kind)
		assert.Equal(t, ReasonOTPMismatch, outcome.Reason)
	})

	t.Run("expired verdict maps to challenge expired", func(t *testing.T) {
		outcome := confirm(t, VerdictExpired)
		require.Equal(t, KindBusinessRejection, outcome.Kind)
		assert.Equal(t, ReasonChallengeExpired, outcome.Reason)
	})

	t.Run("unknown reference verdict", func(t *testing.T) {
		outcome := confirm(t, VerdictUnknownReference)
		require.Equal(t, KindBusinessRejection, outcome.Kind)
		assert.Equal(t, ReasonUnknownReference, outcome.Reason)
	})

	t.Run("cancelled context stops retrying", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		gw := &scriptedGateway{confirms: []confirmResult{
			{err: timeoutErr()},
		}}
		client := NewClient(gw, fastPolicy(), WithLogger(slog.New(slog.DiscardHandler)))

		outcome := client.ConfirmChallenge(ctx, "123456789012", "123456", "REF-11")

		require.Equal(t, KindUnrecoverableFailure, outcome.Kind)
		assert.Equal(t, ReasonUpstreamUnavailable, outcome.Reason)
	})
}

func TestClient_BreakerShortCircuits(t *testing.T) {
	gw := &scriptedGateway{starts: []startResult{
		{err: timeoutErr()},
		{err: timeoutErr()},
		{err: timeoutErr()},
	}}
	rec := &capturingRecorder{}
	client := NewClient(gw, fastPolicy(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithRecorder(rec),
		WithBreaker(circuit.New("authority", circuit.WithFailureThreshold(1))),
	)

	out := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "EKYC-1")
	require.Equal(t, KindUnrecoverableFailure, out.Kind)
	assert.Equal(t, 3, out.Attempts)

	// One exhausted call tripped the breaker; the next call never reaches
	// the gateway.
	out = client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "EKYC-1")
	assert.Equal(t, KindUnrecoverableFailure, out.Kind)
	assert.Equal(t, ReasonUpstreamUnavailable, out.Reason)
	assert.Equal(t, 0, out.Attempts)
	assert.Equal(t, 3, gw.calls)

	entries := rec.byType(audit.EventUpstreamCall)
	require.Len(t, entries, 4)
	assert.Equal(t, "circuit_open", entries[3].Payload.Get("category"))
	assert.Equal(t, audit.OutcomeFailure, entries[3].Outcome)
}

func TestClient_BreakerRecoversAfterCooldown(t *testing.T) {
	gw := &scriptedGateway{starts: []startResult{
		{err: timeoutErr()},
		{err: timeoutErr()},
		{err: timeoutErr()},
		{resp: StartResponse{Accepted: true, Contact: "9876543210"}},
		{resp: StartResponse{Accepted: true, Contact: "9876543210"}},
	}}
	client := NewClient(gw, fastPolicy(),
		WithLogger(slog.New(slog.DiscardHandler)),
		WithBreaker(circuit.New("authority",
			circuit.WithFailureThreshold(1),
			circuit.WithSuccessThreshold(1),
			circuit.WithCooldown(time.Millisecond),
		)),
	)

	out := client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "EKYC-1")
	require.Equal(t, KindUnrecoverableFailure, out.Kind)

	// After the cooldown the breaker half-opens and the probe reaches the
	// gateway; its success closes the circuit for good.
	time.Sleep(20 * time.Millisecond)

	out = client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "EKYC-1")
	require.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, 1, out.Attempts)

	out = client.StartChallenge(context.Background(), "PRIMARY_ID", "123456789012", "EKYC-1")
	assert.Equal(t, KindSuccess, out.Kind)
	assert.Equal(t, 5, gw.calls)
}
