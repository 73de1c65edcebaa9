// Package repository provides generic CRUD over an entity descriptor
// and a connector.
//
// Save is an atomic upsert whose statement shape follows the
// connector's capability: ON DUPLICATE KEY UPDATE on MySQL, INSERT OR
// REPLACE on SQLite, and an update-then-insert fallback elsewhere (the
// fallback's race on fresh identities is narrowed by one retry after a
// duplicate-key failure). SaveAll and DeleteAll hold a single
// connection for one transaction and roll back on any failure, so a
// batch is never partially applied.
//
// When wired to a cluster manager, every successful mutation publishes
// a change event so peer processes can invalidate what they cached.
// Repositories hold no per-entity state; the database is authoritative.
package repository
