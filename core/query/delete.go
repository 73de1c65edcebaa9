package query

import (
	"context"
	"strings"

	"datakit/core/database"
)

// DeleteBuilder accumulates one DELETE statement.
type DeleteBuilder struct {
	table string
	where whereClause
}

// Delete starts a DELETE against the given table.
func Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{table: table}
}

// Where appends one (column, operator, value) predicate.
func (b *DeleteBuilder) Where(column, op string, value any) *DeleteBuilder {
	b.where.add(column, op, value)
	return b
}

// WhereEq is shorthand for Where(column, "=", value).
func (b *DeleteBuilder) WhereEq(column string, value any) *DeleteBuilder {
	return b.Where(column, "=", value)
}

// BuildSQL renders the statement with ? placeholders and the bound
// arguments in placeholder order.
func (b *DeleteBuilder) BuildSQL() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("DELETE FROM ")
	sb.WriteString(b.table)
	b.where.build(&sb, &args)
	return sb.String(), args
}

// Exec runs the delete and returns the number of affected rows.
func (b *DeleteBuilder) Exec(ctx context.Context, conn database.Connector) (int64, error) {
	sqlStr, args := b.BuildSQL()
	res, err := exec(ctx, conn, sqlStr, args)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// ExecAsync runs Exec on a separate goroutine and funnels the outcome
// into the callback.
func (b *DeleteBuilder) ExecAsync(ctx context.Context, conn database.Connector, cb Callback[int64]) {
	Async(func() (int64, error) { return b.Exec(ctx, conn) }, cb)
}
