package entity

// Map builds an entity from one result row. A column missing from the
// row (e.g. after a narrow projection or a dropped column) skips that
// field; a NULL value leaves the field at its zero value. The returned
// entity is exclusively owned by the caller.
func (d *Descriptor[T]) Map(row map[string]any) (*T, error) {
	e := new(T)
	for _, f := range d.fields {
		v, ok := row[f.column]
		if !ok || v == nil {
			continue
		}
		if err := d.decodeField(f, e, v); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// ToMap flattens an entity into a column-name-to-value map covering
// every mapped field. Iterate Columns() for a deterministic order.
func (d *Descriptor[T]) ToMap(e *T) (map[string]any, error) {
	out := make(map[string]any, len(d.fields))
	for _, f := range d.fields {
		v := d.encodeField(f, e)
		if f.kind == KindJSON {
			b, err := d.codec.Marshal(f.ptr(e))
			if err != nil {
				return nil, err
			}
			v = string(b)
		}
		out[f.column] = v
	}
	return out, nil
}

func (d *Descriptor[T]) encodeField(f *Field[T], e *T) any {
	if f.kind == KindJSON {
		// Callers needing the serialized form go through ToMap; the raw
		// pointer is not a column value.
		return nil
	}
	return f.encode(e)
}

func (d *Descriptor[T]) decodeField(f *Field[T], e *T, v any) error {
	if f.kind == KindJSON {
		// A payload that no longer parses degrades to the zero nested
		// value instead of failing the row.
		_ = d.codec.Unmarshal(AsBytes(v), f.ptr(e))
		return nil
	}
	f.decode(e, v)
	return nil
}
