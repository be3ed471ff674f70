// Package store provides the SQLite-backed provenance ledger for pinbase.
//
// The store keeps:
//   - Sources: trust-ranked data origins
//   - Entities: structural identity (kind, id, parent, grouping key)
//   - Claims: every fact ever asserted, active and superseded
//   - Resolved entities: the staged output of the last resolve pass
//   - Catalog snapshots: published, immutable catalog versions
//
// # Invariants
//
// At most one active claim per (entity, source, claim key). A partial
// unique index makes a violation impossible to commit; Assert and
// BulkAssert deactivate and insert inside one transaction.
//
// Recency is the logical seq assigned inside the write transaction, never
// wall-clock time. created_at is recorded for display only.
//
// Deleting an entity cascades to its claims. A source cannot be deleted
// while claims reference it.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
