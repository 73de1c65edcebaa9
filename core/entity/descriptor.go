package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNoIdentity is returned when a descriptor is built without exactly
// one identity field.
var ErrNoIdentity = errors.New("entity: descriptor requires exactly one identity field")

// Kind classifies a field for schema generation and coercion.
type Kind int

const (
	KindString Kind = iota
	KindInt
	KindLong
	KindFloat
	KindBool
	KindUUID
	KindEnum
	KindJSON
	KindBytes
	KindTime
)

// Field describes one mapped attribute of an entity type T: its column,
// its storage hints, and the closures that move the value in and out of
// the struct. Fields are registered explicitly at descriptor build time;
// a struct field that is never registered is simply not mapped.
type Field[T any] struct {
	name     string
	column   string
	kind     Kind
	identity bool
	notNull  bool
	unique   bool
	length   int
	sqlType  string

	encode func(*T) any
	decode func(*T, any)
	// ptr is set for KindJSON fields; the nested codec reads and writes
	// through it.
	ptr func(*T) any
}

// Column overrides the default snake_case column name.
func (f *Field[T]) Column(name string) *Field[T] { f.column = name; return f }

// Identity marks this field as the entity identity. Exactly one field
// per descriptor must carry it.
func (f *Field[T]) Identity() *Field[T] { f.identity = true; f.notNull = true; return f }

// NotNull marks the column NOT NULL in generated schemas.
func (f *Field[T]) NotNull() *Field[T] { f.notNull = true; return f }

// Unique marks the column UNIQUE in generated schemas.
func (f *Field[T]) Unique() *Field[T] { f.unique = true; return f }

// Length sets the column length hint for string columns.
func (f *Field[T]) Length(n int) *Field[T] { f.length = n; return f }

// SQLType overrides the generated column type entirely.
func (f *Field[T]) SQLType(t string) *Field[T] { f.sqlType = t; return f }

// String registers a string field.
func String[T any](name string, get func(*T) string, set func(*T, string)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindString,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsString(v)) },
	}
}

// Int registers an int field.
func Int[T any](name string, get func(*T) int, set func(*T, int)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindInt,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, int(AsInt64(v))) },
	}
}

// Long registers an int64 field.
func Long[T any](name string, get func(*T) int64, set func(*T, int64)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindLong,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsInt64(v)) },
	}
}

// Float registers a float64 field.
func Float[T any](name string, get func(*T) float64, set func(*T, float64)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindFloat,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsFloat64(v)) },
	}
}

// Bool registers a bool field, stored as a 0/1 integer column.
func Bool[T any](name string, get func(*T) bool, set func(*T, bool)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindBool,
		encode: func(e *T) any {
			if get(e) {
				return 1
			}
			return 0
		},
		decode: func(e *T, v any) { set(e, AsBool(v)) },
	}
}

// UUID registers a UUID field, stored in string form.
func UUID[T any](name string, get func(*T) uuid.UUID, set func(*T, uuid.UUID)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindUUID,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsUUID(v)) },
	}
}

// Enum registers an enum field stored as its name string. The set
// closure resolves the name case-sensitively and must leave the zero
// value on an unknown name; unknown values degrade, they never fail
// the row. That keeps reads working across rolling schema upgrades.
func Enum[T any](name string, get func(*T) string, set func(*T, string)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindEnum,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsString(v)) },
	}
}

// Bytes registers a binary field.
func Bytes[T any](name string, get func(*T) []byte, set func(*T, []byte)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindBytes,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsBytes(v)) },
	}
}

// Time registers a timestamp field.
func Time[T any](name string, get func(*T) time.Time, set func(*T, time.Time)) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindTime,
		encode: func(e *T) any { return get(e) },
		decode: func(e *T, v any) { set(e, AsTime(v)) },
	}
}

// JSON registers a nested object field serialized through the
// descriptor's nested codec. ptr must return a pointer to the nested
// value inside the entity.
func JSON[T any](name string, ptr func(*T) any) *Field[T] {
	return &Field[T]{
		name:   name,
		column: SnakeCase(name),
		kind:   KindJSON,
		ptr:    ptr,
	}
}

// Descriptor is the static, immutable field-mapping table for one
// entity type. Built once, fails fast on a bad configuration, shared by
// every repository operation afterwards.
type Descriptor[T any] struct {
	table  string
	fields []*Field[T]
	id     *Field[T]
	codec  NestedCodec
}

// NewDescriptor builds the mapping table for table with the given
// fields. It fails when no field (or more than one) carries Identity,
// or when two fields resolve to the same column.
func NewDescriptor[T any](table string, fields ...*Field[T]) (*Descriptor[T], error) {
	d := &Descriptor[T]{table: table, fields: fields, codec: JSONCodec{}}

	seen := make(map[string]string, len(fields))
	for _, f := range fields {
		if prev, dup := seen[f.column]; dup {
			return nil, fmt.Errorf("entity: fields %s and %s both map to column %s", prev, f.name, f.column)
		}
		seen[f.column] = f.name

		if f.identity {
			if d.id != nil {
				return nil, ErrNoIdentity
			}
			d.id = f
		}
	}
	if d.id == nil {
		return nil, ErrNoIdentity
	}
	return d, nil
}

// MustDescriptor is NewDescriptor that panics on a configuration error.
// Intended for package-level registration where a bad mapping is a
// programming bug.
func MustDescriptor[T any](table string, fields ...*Field[T]) *Descriptor[T] {
	d, err := NewDescriptor(table, fields...)
	if err != nil {
		panic(err)
	}
	return d
}

// WithCodec replaces the nested-object codec. Returns the descriptor
// for chaining during registration.
func (d *Descriptor[T]) WithCodec(c NestedCodec) *Descriptor[T] {
	d.codec = c
	return d
}

// Table returns the mapped table name.
func (d *Descriptor[T]) Table() string { return d.table }

// Columns returns every mapped column in registration order.
func (d *Descriptor[T]) Columns() []string {
	cols := make([]string, len(d.fields))
	for i, f := range d.fields {
		cols[i] = f.column
	}
	return cols
}

// IDColumn returns the identity column name.
func (d *Descriptor[T]) IDColumn() string { return d.id.column }

// ID extracts the identity value from an entity.
func (d *Descriptor[T]) ID(e *T) any { return d.encodeField(d.id, e) }

// Fields exposes the field table for schema generation.
func (d *Descriptor[T]) Fields() []*Field[T] { return d.fields }

// FieldInfo is the schema-relevant view of one field.
type FieldInfo struct {
	Column   string
	Kind     Kind
	Identity bool
	NotNull  bool
	Unique   bool
	Length   int
	SQLType  string
}

// Info returns the schema-relevant view of f.
func (f *Field[T]) Info() FieldInfo {
	return FieldInfo{
		Column:   f.column,
		Kind:     f.kind,
		Identity: f.identity,
		NotNull:  f.notNull,
		Unique:   f.unique,
		Length:   f.length,
		SQLType:  f.sqlType,
	}
}
