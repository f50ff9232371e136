package audit

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"ekyc/pkg/requestcontext"
)

// Recorder is the write side of the audit trail consumed by domain services.
type Recorder interface {
	Record(ctx context.Context, eventType EventType, referenceNumber string, payload Payload, outcome Outcome)
}

// AsyncRecorder appends entries through a single background worker so the
// business path never blocks on audit persistence and per-reference order is
// preserved (one writer, FIFO inbox). A failed append falls back to a local
// structured-log trace; it is never surfaced as a business error.
type AsyncRecorder struct {
	store  Store
	sinks  []Sink
	logger *slog.Logger

	inbox chan Entry
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int64

	onDrop func() // metrics hook
}

// Option configures an AsyncRecorder.
type Option func(*AsyncRecorder)

// WithLogger sets the fallback trace logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *AsyncRecorder) { r.logger = logger }
}

// WithSink adds a best-effort fan-out sink (e.g. the Kafka mirror).
func WithSink(sink Sink) Option {
	return func(r *AsyncRecorder) { r.sinks = append(r.sinks, sink) }
}

// WithInboxSize overrides the default inbox capacity.
func WithInboxSize(n int) Option {
	return func(r *AsyncRecorder) {
		if n > 0 {
			r.inbox = make(chan Entry, n)
		}
	}
}

// WithDropHook installs a callback invoked on every dropped entry.
func WithDropHook(fn func()) Option {
	return func(r *AsyncRecorder) { r.onDrop = fn }
}

func NewAsyncRecorder(store Store, opts ...Option) *AsyncRecorder {
	r := &AsyncRecorder{
		store:  store,
		logger: slog.Default(),
		inbox:  make(chan Entry, 1024),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record enqueues an entry. The entry ID and timestamp are fixed here so the
// audit trail reflects when the business event happened, not when the worker
// got around to persisting it.
func (r *AsyncRecorder) Record(ctx context.Context, eventType EventType, referenceNumber string, payload Payload, outcome Outcome) {
	entry := Entry{
		EntryID:         uuid.NewString(),
		ReferenceNumber: referenceNumber,
		EventType:       eventType,
		Payload:         payload,
		Outcome:         outcome,
		Timestamp:       requestcontext.Now(ctx),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.trace(entry, "recorder closed")
		return
	}
	select {
	case r.inbox <- entry:
		r.mu.Unlock()
	default:
		r.dropped++
		r.mu.Unlock()
		if r.onDrop != nil {
			r.onDrop()
		}
		r.trace(entry, "inbox full")
	}
}

// Run drains the inbox until Close is called, then finishes the backlog.
// Call it from a dedicated goroutine (errgroup in main).
func (r *AsyncRecorder) Run(ctx context.Context) error {
	defer close(r.done)
	for entry := range r.inbox {
		// Persistence uses a fresh context: the originating request may be
		// long gone by the time the worker reaches this entry.
		if err := r.store.Append(context.WithoutCancel(ctx), entry); err != nil {
			r.trace(entry, err.Error())
		} else {
			r.logger.Info("audit entry",
				"log_type", "audit",
				"event_type", string(entry.EventType),
				"reference_number", entry.ReferenceNumber,
				"outcome", string(entry.Outcome),
			)
		}
		for _, sink := range r.sinks {
			if err := sink.Append(context.WithoutCancel(ctx), entry); err != nil {
				r.logger.Warn("audit sink append failed",
					"entry_id", entry.EntryID,
					"event_type", string(entry.EventType),
					"error", err.Error(),
				)
			}
		}
	}
	return nil
}

// Close stops accepting entries and waits for the worker to drain the inbox.
func (r *AsyncRecorder) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	close(r.inbox)
	r.mu.Unlock()
	<-r.done
}

// Dropped reports how many entries were discarded because the inbox was full.
func (r *AsyncRecorder) Dropped() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// trace is the best-effort fallback when an entry cannot be persisted: the
// masked content goes to the structured log so the event is not lost entirely.
func (r *AsyncRecorder) trace(entry Entry, reason string) {
	args := []any{
		"log_type", "audit_fallback",
		"entry_id", entry.EntryID,
		"reference_number", entry.ReferenceNumber,
		"event_type", string(entry.EventType),
		"outcome", string(entry.Outcome),
		"reason", reason,
	}
	for _, k := range entry.Payload.Keys() {
		args = append(args, "payload_"+k, entry.Payload.Get(k))
	}
	r.logger.Error("audit write failed", args...)
}
