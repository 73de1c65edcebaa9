package query

import (
	"context"
	"database/sql"
	"strings"

	"datakit/core/database"
)

// InsertResult is the outcome of an INSERT. GeneratedKey is only set
// when key readback was requested and the driver produced one.
type InsertResult struct {
	RowsAffected int64
	GeneratedKey *int64
}

// InsertBuilder accumulates one INSERT statement. Column order follows
// Set call order so placeholders and bound values always line up.
type InsertBuilder struct {
	table     string
	columns   []string
	values    []any
	returnKey bool
}

// Insert starts an INSERT into the given table.
func Insert(table string) *InsertBuilder {
	return &InsertBuilder{table: table}
}

// Set appends one column/value pair.
func (b *InsertBuilder) Set(column string, value any) *InsertBuilder {
	b.columns = append(b.columns, column)
	b.values = append(b.values, value)
	return b
}

// ReturnGeneratedKey opts in to reading back the auto-generated key.
func (b *InsertBuilder) ReturnGeneratedKey() *InsertBuilder {
	b.returnKey = true
	return b
}

// BuildSQL renders the statement with ? placeholders and the bound
// arguments in placeholder order.
func (b *InsertBuilder) BuildSQL() (string, []any) {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(b.table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(b.columns, ", "))
	sb.WriteString(") VALUES (")
	for i := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
	}
	sb.WriteString(")")

	return sb.String(), NormalizeArgs(b.values)
}

// Exec runs the insert. When key readback was requested, exactly one
// generated key is read; a driver that generated none yields a nil key,
// not an error.
func (b *InsertBuilder) Exec(ctx context.Context, conn database.Connector) (InsertResult, error) {
	sqlStr, args := b.BuildSQL()

	var out InsertResult
	err := conn.WithConn(ctx, func(c *sql.Conn) error {
		res, err := c.ExecContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		out.RowsAffected, _ = res.RowsAffected()
		if b.returnKey {
			// Both supported drivers report 0 from LastInsertId when the
			// statement generated no key, and neither hands out 0 as a
			// real auto-increment value, so 0 means "none" here.
			if id, err := res.LastInsertId(); err == nil && id != 0 {
				out.GeneratedKey = &id
			}
		}
		return nil
	})
	if err != nil {
		return InsertResult{}, err
	}
	return out, nil
}

// ExecAsync runs Exec on a separate goroutine and funnels the outcome
// into the callback.
func (b *InsertBuilder) ExecAsync(ctx context.Context, conn database.Connector, cb Callback[InsertResult]) {
	Async(func() (InsertResult, error) { return b.Exec(ctx, conn) }, cb)
}
