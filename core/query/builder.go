package query

import (
	"context"
	"database/sql"
	"strings"

	"datakit/core/database"
)

// RowMap is one result row keyed by column name. Values carry whatever
// type the driver produced; the entity mapper owns coercion.
type RowMap map[string]any

type predicate struct {
	column string
	op     string
	value  any
}

// whereClause accumulates predicates that are ANDed in declaration
// order. OR and nested grouping are intentionally unsupported.
type whereClause struct {
	preds []predicate
}

func (w *whereClause) add(column, op string, value any) {
	w.preds = append(w.preds, predicate{column: column, op: op, value: value})
}

func (w *whereClause) build(sb *strings.Builder, args *[]any) {
	if len(w.preds) == 0 {
		return
	}
	sb.WriteString(" WHERE ")
	for i, p := range w.preds {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(p.column)
		sb.WriteByte(' ')
		sb.WriteString(p.op)
		sb.WriteString(" ?")
		*args = append(*args, Normalize(p.value))
	}
}

// scanRows drains rows into RowMaps using the result's own column list,
// so a projection narrower than the mapping simply yields fewer keys.
func scanRows(rows *sql.Rows) ([]RowMap, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []RowMap
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(RowMap, len(cols))
		for i, c := range cols {
			row[c] = values[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// exec runs one statement through the connector's scoped borrow.
func exec(ctx context.Context, conn database.Connector, sqlStr string, args []any) (sql.Result, error) {
	var res sql.Result
	err := conn.WithConn(ctx, func(c *sql.Conn) error {
		var err error
		res, err = c.ExecContext(ctx, sqlStr, args...)
		return err
	})
	return res, err
}
