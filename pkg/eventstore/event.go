// Package eventstore implements the event store: an append-only,
// per-tenant-isolated log of domain events with optimistic concurrency.
package eventstore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Metadata is the event's wire-format metadata: tenantId is required for
// any event consumed by the dispatch event chain; traceId/spanId/
// traceFlags are carried verbatim when present and never defaulted when
// absent.
type Metadata struct {
	TenantID      string    `json:"tenantId"`
	UserID        string    `json:"userId"`
	CorrelationID string    `json:"correlationId"`
	Timestamp     time.Time `json:"timestamp"`
	TraceID       string    `json:"traceId,omitempty"`
	SpanID        string    `json:"spanId,omitempty"`
	TraceFlags    string    `json:"traceFlags,omitempty"`
}

// Event is the only mutable-by-append entity in the system: once written,
// it is never updated or deleted.
type Event struct {
	ID            string
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       json.RawMessage
	Metadata      Metadata
	TenantID      string
	Version       int64
	CreatedAt     time.Time
}

// Snapshot is an optional, freely-replaceable cache of an aggregate's
// folded state; never a source of truth.
type Snapshot struct {
	AggregateID   string
	AggregateType string
	Version       int64
	State         json.RawMessage
	TenantID      string
	CreatedAt     time.Time
}

// ConcurrencyConflict is returned when the stored max version for
// (tenantId, aggregateId) does not match the caller's expected version.
// No side effect occurs when this error is returned.
type ConcurrencyConflict struct {
	Expected int64
	Actual   int64
}

func (e *ConcurrencyConflict) Error() string {
	return fmt.Sprintf("eventstore: concurrency conflict: expected version %d, actual %d", e.Expected, e.Actual)
}

// StorageFailure wraps an underlying I/O or schema error. The caller
// decides how to surface it (command handlers typically report an
// internal error).
type StorageFailure struct {
	Cause error
}

func (e *StorageFailure) Error() string {
	return fmt.Sprintf("eventstore: storage failure: %v", e.Cause)
}

func (e *StorageFailure) Unwrap() error { return e.Cause }

// metadataJSON marshals Metadata for storage; a marshal failure here would
// mean the struct itself is malformed, which cannot happen at runtime, so
// the error is swallowed into an empty object rather than threaded through
// every caller's signature.
func metadataJSON(m Metadata) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		return []byte("{}")
	}
	return b
}

func unmarshalMetadata(raw []byte, m *Metadata) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, m)
}
