// Package postgresengine provides a PostgreSQL-backed implementation of the
// operation queue.
//
// The coalescing discipline (at most one pending operation per entity
// identity) maps onto a single upsert statement: the table carries a primary
// key on entity_id, and a write either inserts a fresh row or folds into the
// existing one via ON CONFLICT DO UPDATE. The lookup-then-act sequence is
// therefore atomic inside the database, even under concurrent writers on
// different connections. Residual races surface as retryable
// syncqueue.ErrCoalescingConflict, never as a duplicated row.
//
// The expected table shape (schema management is owned by the host
// application):
//
//	CREATE TABLE pending_operations (
//		entity_id       TEXT PRIMARY KEY,
//		entity_type     TEXT NOT NULL,
//		kind            TEXT NOT NULL,
//		payload         JSONB NOT NULL,
//		queued_at       TIMESTAMPTZ NOT NULL,
//		last_changed_at TIMESTAMPTZ NOT NULL
//	);
//
// Transmission order is FIFO by queued_at, which is assigned on first write
// and never touched by coalescing.
package postgresengine
