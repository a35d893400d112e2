package eventstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/wisbric/eaf/pkg/tenantctx"
)

// MemoryStore is an in-memory Store used by tests. It enforces exactly the same tenant-isolation and
// optimistic-concurrency rules as the Postgres-backed implementation,
// since every test in this repo runs against it rather than a live
// database.
type MemoryStore struct {
	mu   sync.Mutex
	rows map[string][]Event // key: tenantID + "/" + aggregateID
}

// NewMemoryStore constructs an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string][]Event)}
}

func key(tenantID, aggregateID string) string {
	return tenantID + "/" + aggregateID
}

func (s *MemoryStore) Append(ctx context.Context, aggregateID string, events []Event, expectedVersion int64) (int64, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return expectedVersion, nil
	}
	for _, e := range events {
		if e.TenantID != tenantID {
			recordAppend("failure", 0)
			return 0, &StorageFailure{Cause: errMixedTenant(e.TenantID, tenantID)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := key(tenantID, aggregateID)
	existing := s.rows[k]
	actual := int64(len(existing))
	if actual != expectedVersion {
		recordAppend("conflict", 0)
		return 0, &ConcurrencyConflict{Expected: expectedVersion, Actual: actual}
	}

	version := expectedVersion
	now := time.Now()
	for _, e := range events {
		version++
		e.Version = version
		e.CreatedAt = now
		existing = append(existing, e)
	}
	s.rows[k] = existing
	recordAppend("ok", len(events))
	return version, nil
}

func (s *MemoryStore) Load(ctx context.Context, aggregateID string) ([]Event, error) {
	return s.LoadFrom(ctx, aggregateID, 1)
}

func (s *MemoryStore) LoadFrom(ctx context.Context, aggregateID string, fromVersion int64) ([]Event, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.rows[key(tenantID, aggregateID)]
	out := make([]Event, 0, len(rows))
	for _, e := range rows {
		if e.Version >= fromVersion {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

type mixedTenantError struct {
	got, bound string
}

func (e mixedTenantError) Error() string {
	return "eventstore: event tenant " + e.got + " does not match bound tenant " + e.bound
}

func errMixedTenant(got, bound string) error {
	return mixedTenantError{got: got, bound: bound}
}
