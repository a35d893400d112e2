package eventstore

import "context"

// Store is the public contract of the event store. Every implementation
// must enforce:
//   - all events in one Append call share a single tenantId equal to
//     tenantctx.Require(ctx);
//   - consecutive versions starting at expectedVersion+1;
//   - Load/LoadFrom only ever return rows for the tenant bound to ctx.
type Store interface {
	// Append persists events atomically with respect to each other. An
	// empty events slice is a no-op returning expectedVersion unchanged.
	// On a version mismatch it returns *ConcurrencyConflict with no side
	// effect; on an I/O or schema error it returns *StorageFailure.
	Append(ctx context.Context, aggregateID string, events []Event, expectedVersion int64) (int64, error)

	// Load returns all events for aggregateID under the tenant bound to
	// ctx, in ascending version order. An empty slice, not an error, is
	// returned when none exist.
	Load(ctx context.Context, aggregateID string) ([]Event, error)

	// LoadFrom is Load restricted to version >= fromVersion.
	LoadFrom(ctx context.Context, aggregateID string, fromVersion int64) ([]Event, error)
}

// SnapshotStore is the optional snapshot cache contract. Writes UPSERT by
// (tenantId, aggregateId); snapshots are never a source of truth.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	LoadSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error)
}
