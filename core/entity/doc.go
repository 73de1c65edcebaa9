// Package entity maps domain objects to and from column-value maps.
//
// Mappings are explicit field-descriptor tables registered at startup,
// one per entity type: each field names its column (snake_case of the
// field name by default), its storage hints, and the closures that move
// the value in and out of the struct. A field that is never registered
// is not mapped; exactly one field must be the identity or descriptor
// construction fails.
//
// Reads are deliberately tolerant for rolling schema upgrades: unknown
// enum names resolve to the zero value, malformed UUIDs to uuid.Nil,
// numeric columns widen to the declared field type, booleans accept
// nonzero numbers, and a column absent from the result set skips the
// field instead of failing the row.
package entity
