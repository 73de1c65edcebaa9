package cluster

import "encoding/json"

// Event is one cross-process change notification. Processes sharing a
// database broadcast an Event after a successful mutation; every other
// process re-reads or invalidates whatever it cached for that table.
type Event struct {
	// ProcessID identifies the originating process. Events are never
	// delivered back to their originator.
	ProcessID string `json:"process_id"`
	// Table is the logical table name the mutation touched.
	Table string `json:"table"`
	// Prefix is the table prefix of the originating deployment.
	Prefix string `json:"prefix"`
	// Payload is an opaque block the publisher attached, typically the
	// mutated identity.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Listener handles inbound events. A returned error is logged and does
// not abort dispatch to the remaining listeners.
type Listener func(Event) error

type registration struct {
	listener Listener
	table    string
	prefix   string
}

func (r registration) matches(ev Event) bool {
	if r.table != "" && r.table != ev.Table {
		return false
	}
	if r.prefix != "" && r.prefix != ev.Prefix {
		return false
	}
	return true
}

// SubscribeOption narrows which events a listener receives. Unset
// filters match everything.
type SubscribeOption func(*registration)

// WithTable delivers only events for the given table.
func WithTable(table string) SubscribeOption {
	return func(r *registration) { r.table = table }
}

// WithPrefix delivers only events for the given table prefix.
func WithPrefix(prefix string) SubscribeOption {
	return func(r *registration) { r.prefix = prefix }
}
