package query

import (
	"github.com/google/uuid"
)

// Normalize converts one bound value into a form both supported drivers
// accept. This is the single place parameter coercion happens; builders
// must never duplicate these rules.
//
// Rules: nil stays SQL NULL, UUIDs travel as their string form for
// portability across dialects, byte slices stay binary, everything else
// (numeric wrappers, strings, bools, time.Time) is passed to the driver
// unchanged.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case uuid.UUID:
		return t.String()
	case *uuid.UUID:
		if t == nil {
			return nil
		}
		return t.String()
	default:
		return v
	}
}

// NormalizeArgs applies Normalize to every argument, in order.
func NormalizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = Normalize(a)
	}
	return out
}
