package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Drivers do not agree on the Go type a column comes back as: MySQL
// hands integers back as int64 or []byte depending on the statement
// kind, SQLite reads everything it can as int64/float64/string. These
// helpers normalize whatever arrived into the field's declared type.

// AsInt64 coerces driver values to int64.
func AsInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case int16:
		return int64(v)
	case int8:
		return int64(v)
	case uint64:
		return int64(v)
	case uint32:
		return int64(v)
	case uint:
		return int64(v)
	case float64:
		return int64(v)
	case float32:
		return int64(v)
	case string:
		i, _ := strconv.ParseInt(v, 10, 64)
		return i
	case []byte:
		i, _ := strconv.ParseInt(string(v), 10, 64)
		return i
	default:
		s := fmt.Sprintf("%v", v)
		i, _ := strconv.ParseInt(s, 10, 64)
		return i
	}
}

// AsFloat64 coerces driver values to float64.
func AsFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	case string:
		f, _ := strconv.ParseFloat(v, 64)
		return f
	case []byte:
		f, _ := strconv.ParseFloat(string(v), 64)
		return f
	default:
		return 0
	}
}

// AsString coerces driver values to string.
func AsString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// AsBool coerces driver values to bool. Accepts a native bool, any
// nonzero number, and the textual forms "1"/"true".
func AsBool(val any) bool {
	switch v := val.(type) {
	case bool:
		return v
	case int, int64, int32, int16, int8, uint, uint64, uint32, uint16, uint8, float64, float32:
		return AsInt64(v) != 0
	case string:
		return v == "1" || strings.EqualFold(v, "true")
	case []byte:
		s := string(v)
		return s == "1" || strings.EqualFold(s, "true")
	default:
		return false
	}
}

// AsUUID coerces driver values to a UUID. Malformed input yields the
// zero UUID rather than an error, so a corrupt identity column degrades
// instead of failing the whole row.
func AsUUID(val any) uuid.UUID {
	id, err := uuid.Parse(AsString(val))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// AsBytes coerces driver values to a byte slice.
func AsBytes(val any) []byte {
	switch v := val.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

// AsTime coerces driver values to a time.Time. Text timestamps are read
// in the format SQLite stores by default; anything unparseable yields
// the zero time.
func AsTime(val any) time.Time {
	switch v := val.(type) {
	case time.Time:
		return v
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	default:
		return time.Time{}
	}
}

func parseTime(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
