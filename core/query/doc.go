// Package query provides fluent builders for single SQL statements.
//
// Each builder accumulates clause state, renders the statement with ?
// placeholders via BuildSQL, and binds values in declaration order.
// WHERE predicates are ANDed in the order they were added; OR and
// nested grouping are not supported.
//
// Value coercion for bound parameters lives in one place (Normalize):
// nil becomes SQL NULL, UUIDs travel in string form, byte slices stay
// binary. Every builder goes through it.
//
// Builders execute synchronously, blocking the caller, or
// asynchronously via the *Async variants, which run on a separate
// goroutine and deliver a (result, error) pair to a callback. Either
// way the borrowed connection is returned to the pool before the
// execution call completes, including when the statement fails.
package query
