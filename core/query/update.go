package query

import (
	"context"
	"strings"

	"datakit/core/database"
)

// UpdateBuilder accumulates one UPDATE statement. SET pairs bind before
// WHERE values, both in declaration order.
type UpdateBuilder struct {
	table   string
	columns []string
	values  []any
	where   whereClause
}

// Update starts an UPDATE against the given table.
func Update(table string) *UpdateBuilder {
	return &UpdateBuilder{table: table}
}

// Set appends one column/value assignment.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	b.columns = append(b.columns, column)
	b.values = append(b.values, value)
	return b
}

// Where appends one (column, operator, value) predicate.
func (b *UpdateBuilder) Where(column, op string, value any) *UpdateBuilder {
	b.where.add(column, op, value)
	return b
}

// WhereEq is shorthand for Where(column, "=", value).
func (b *UpdateBuilder) WhereEq(column string, value any) *UpdateBuilder {
	return b.Where(column, "=", value)
}

// BuildSQL renders the statement with ? placeholders and the bound
// arguments in placeholder order.
func (b *UpdateBuilder) BuildSQL() (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(b.values)+len(b.where.preds))

	sb.WriteString("UPDATE ")
	sb.WriteString(b.table)
	sb.WriteString(" SET ")
	for i, col := range b.columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteString(" = ?")
		args = append(args, Normalize(b.values[i]))
	}

	b.where.build(&sb, &args)
	return sb.String(), args
}

// Exec runs the update and returns the number of affected rows.
func (b *UpdateBuilder) Exec(ctx context.Context, conn database.Connector) (int64, error) {
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
func (b *UpdateBuilder) ExecAsync(ctx context.Context, conn database.Connector, cb Callback[int64]) {
	Async(func() (int64, error) { return b.Exec(ctx, conn) }, cb)
}
