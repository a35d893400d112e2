package eventstore

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wisbric/eaf/pkg/sessionbinder"
	"github.com/wisbric/eaf/pkg/tenantctx"
)

// uniqueViolation is the Postgres SQLSTATE for a unique-constraint
// violation, raised here by the (tenant_id, aggregate_id, version) index
// when two appends race on the same expected version.
const uniqueViolation = "23505"

// PostgresStore is the production Store/SnapshotStore. Every operation
// opens its own transaction through sessionbinder.Bind, which sets
// app.current_tenant for that transaction before any statement runs, so
// row-level security enforces isolation even if a query's own WHERE
// clause were wrong. Reads still filter by tenant_id explicitly rather
// than relying solely on the RLS policy.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an existing pool. Every operation binds its own
// transaction through sessionbinder.Bind, so callers pass a plain pool
// rather than a pre-bound one.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, aggregateID string, events []Event, expectedVersion int64) (int64, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return expectedVersion, nil
	}

	var version int64
	err = sessionbinder.BindFunc(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		var maxVersion int64
		if err := tx.QueryRow(ctx,
			`SELECT COALESCE(MAX(version), 0) FROM events WHERE tenant_id = $1 AND aggregate_id = $2`,
			tenantID, aggregateID,
		).Scan(&maxVersion); err != nil {
			recordAppend("failure", 0)
			return &StorageFailure{Cause: err}
		}
		if maxVersion != expectedVersion {
			return &ConcurrencyConflict{Expected: expectedVersion, Actual: maxVersion}
		}

		version = expectedVersion
		now := time.Now()
		batch := &pgx.Batch{}
		for _, e := range events {
			version++
			batch.Queue(
				`INSERT INTO events
					(id, tenant_id, aggregate_id, aggregate_type, event_type, payload, metadata, version, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				e.ID, tenantID, aggregateID, e.AggregateType, e.EventType, e.Payload, metadataJSON(e.Metadata), version, now,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for range events {
			if _, err := br.Exec(); err != nil {
				br.Close()
				var pgErr *pgconn.PgError
				if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
					recordAppend("conflict", 0)
					return &ConcurrencyConflict{Expected: expectedVersion, Actual: maxVersion}
				}
				recordAppend("failure", 0)
				return &StorageFailure{Cause: err}
			}
		}
		if err := br.Close(); err != nil {
			recordAppend("failure", 0)
			return &StorageFailure{Cause: err}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	recordAppend("ok", len(events))
	return version, nil
}

func (s *PostgresStore) Load(ctx context.Context, aggregateID string) ([]Event, error) {
	return s.LoadFrom(ctx, aggregateID, 1)
}

func (s *PostgresStore) LoadFrom(ctx context.Context, aggregateID string, fromVersion int64) ([]Event, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	timer := prometheusTimer()
	defer timer()

	var out []Event
	err = sessionbinder.BindFunc(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			`SELECT id, aggregate_id, aggregate_type, event_type, payload, metadata, version, created_at
			 FROM events
			 WHERE tenant_id = $1 AND aggregate_id = $2 AND version >= $3
			 ORDER BY version ASC`,
			tenantID, aggregateID, fromVersion,
		)
		if err != nil {
			return &StorageFailure{Cause: err}
		}
		defer rows.Close()

		for rows.Next() {
			var e Event
			var metadataRaw []byte
			if err := rows.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Payload, &metadataRaw, &e.Version, &e.CreatedAt); err != nil {
				return &StorageFailure{Cause: err}
			}
			if err := unmarshalMetadata(metadataRaw, &e.Metadata); err != nil {
				return &StorageFailure{Cause: err}
			}
			e.AggregateID = aggregateID
			out = append(out, e)
		}
		if err := rows.Err(); err != nil {
			return &StorageFailure{Cause: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) SaveSnapshot(ctx context.Context, snap Snapshot) error {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return err
	}
	err = sessionbinder.BindFunc(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO snapshots (tenant_id, aggregate_id, aggregate_type, version, state, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (tenant_id, aggregate_id)
			 DO UPDATE SET version = EXCLUDED.version, state = EXCLUDED.state, created_at = EXCLUDED.created_at`,
			tenantID, snap.AggregateID, snap.AggregateType, snap.Version, snap.State, time.Now(),
		)
		if err != nil {
			return &StorageFailure{Cause: err}
		}
		return nil
	})
	return err
}

func (s *PostgresStore) LoadSnapshot(ctx context.Context, aggregateID string) (*Snapshot, error) {
	tenantID, err := tenantctx.Require(ctx)
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	var found bool
	err = sessionbinder.BindFunc(ctx, s.pool, func(ctx context.Context, tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`SELECT aggregate_id, aggregate_type, version, state, tenant_id, created_at
			 FROM snapshots WHERE tenant_id = $1 AND aggregate_id = $2`,
			tenantID, aggregateID,
		).Scan(&snap.AggregateID, &snap.AggregateType, &snap.Version, &snap.State, &snap.TenantID, &snap.CreatedAt)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return &StorageFailure{Cause: err}
		}
		found = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}
