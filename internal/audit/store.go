package audit

import "context"

// Store is the append-only persistence for audit entries. Implementations must
// preserve insertion order per reference number.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	ListByReference(ctx context.Context, referenceNumber string) ([]Entry, error)
}

// Sink receives a copy of every entry for fan-out (Kafka mirror). Sinks are
// best-effort; a sink failure never fails the primary append.
type Sink interface {
	Append(ctx context.Context, entry Entry) error
}
