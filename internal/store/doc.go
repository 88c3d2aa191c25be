// Package store provides SQLite-backed durable storage for the shared
// event index (the "control store").
//
// One row per event, in the events table:
//   - identity: id (immutable UUID), slug + start_date (natural key)
//   - provisioning state: status, status_detail, resource_id, resource_addr
//   - derived surface: tag, admin/public/display URLs, geo fields
//
// Alongside it, two key/value tables: meta (store identity, ownership
// token) and settings (operator defaults for new events).
//
// # Critical Patterns
//
// Natural-key idempotency
//   - UNIQUE(slug, start_date) index on events
//   - Duplicate creations are detected at the constraint, not by racing reads
//
// Single default
//   - SetDefault clears and sets inside one transaction
//   - At most one row ever has is_default = 1
//
// Deterministic index order
//   - ListRecords always orders by start_date ASC, slug ASC, id ASC
//   - The index ETag is computed over this order and must be stable
//
// Schema from spec
//   - Open never creates tables; Initialize applies DDL generated from a
//     record.StoreSpec so the reconciler can tell a missing table from a
//     fresh store
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
