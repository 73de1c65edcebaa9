// Package database owns the pooled connection to a single SQL backend.
//
// A Connector hands out connections in a scoped borrow-then-return
// pattern: WithConn acquires one pooled connection, runs the callback,
// and guarantees the connection goes back to the pool on all exit paths.
// Pool acquisition is bounded by a configured timeout so an exhausted
// pool fails loudly instead of hanging forever.
//
// Two backends are supported: MySQL/MariaDB over the network and SQLite
// as a local file. Each connector advertises its atomic upsert
// capability via UpsertStyle, which is how dialect-specific SQL is
// selected — never by sniffing generated strings.
//
// A connector whose construction failed stays permanently disabled and
// returns ErrNotInitialized from every operation.
package database
