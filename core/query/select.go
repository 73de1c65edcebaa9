package query

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"datakit/core/database"
)

// SelectBuilder accumulates one SELECT statement. After BuildSQL the
// accumulated state is treated as immutable.
type SelectBuilder struct {
	table   string
	columns []string
	where   whereClause
	orderBy string
	desc    bool
	limit   int
	offset  int
}

// Select starts a SELECT against the given table with a * projection.
func Select(table string) *SelectBuilder {
	return &SelectBuilder{table: table, limit: -1, offset: -1}
}

// Columns replaces the default * projection.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Where appends one (column, operator, value) predicate. Predicates are
// ANDed in declaration order.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where.add(column, op, value)
	return b
}

// WhereEq is shorthand for Where(column, "=", value).
func (b *SelectBuilder) WhereEq(column string, value any) *SelectBuilder {
	return b.Where(column, "=", value)
}

// OrderBy sets the ordering column and direction.
func (b *SelectBuilder) OrderBy(column string, descending bool) *SelectBuilder {
	b.orderBy = column
	b.desc = descending
	return b
}

// Limit caps the number of returned rows.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

// Offset skips the first n rows.
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = n
	return b
}

// BuildSQL renders the statement with ? placeholders and the bound
// arguments in placeholder order. Pure function of accumulated state.
func (b *SelectBuilder) BuildSQL() (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	if len(b.columns) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(b.columns, ", "))
	}
	sb.WriteString(" FROM ")
	sb.WriteString(b.table)

	b.where.build(&sb, &args)

	if b.orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(b.orderBy)
		if b.desc {
			sb.WriteString(" DESC")
		} else {
			sb.WriteString(" ASC")
		}
	}
	if b.limit >= 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(b.limit))
	}
	if b.offset >= 0 {
		sb.WriteString(" OFFSET ")
		sb.WriteString(strconv.Itoa(b.offset))
	}

	return sb.String(), args
}

// All executes the query and returns every row as a RowMap.
func (b *SelectBuilder) All(ctx context.Context, conn database.Connector) ([]RowMap, error) {
	sqlStr, args := b.BuildSQL()

	var rowsOut []RowMap
	err := conn.WithConn(ctx, func(c *sql.Conn) error {
		rows, err := c.QueryContext(ctx, sqlStr, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		rowsOut, err = scanRows(rows)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rowsOut, nil
}

// First executes the query limited to one row and returns it, or nil
// with no error when nothing matched.
func (b *SelectBuilder) First(ctx context.Context, conn database.Connector) (RowMap, error) {
	b.limit = 1
	rows, err := b.All(ctx, conn)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Long executes the query and reads a single int64 from the first
// column of the first row, e.g. a COUNT(*) projection.
func (b *SelectBuilder) Long(ctx context.Context, conn database.Connector) (int64, error) {
	sqlStr, args := b.BuildSQL()

	var out int64
	err := conn.WithConn(ctx, func(c *sql.Conn) error {
		row := c.QueryRowContext(ctx, sqlStr, args...)
		if err := row.Scan(&out); err != nil {
			return fmt.Errorf("query: scalar read failed: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return out, nil
}

// AllAsync runs All on a separate goroutine and funnels the outcome
// into the callback.
func (b *SelectBuilder) AllAsync(ctx context.Context, conn database.Connector, cb Callback[[]RowMap]) {
	Async(func() ([]RowMap, error) { return b.All(ctx, conn) }, cb)
}

// FirstAsync runs First on a separate goroutine and funnels the outcome
// into the callback.
func (b *SelectBuilder) FirstAsync(ctx context.Context, conn database.Connector, cb Callback[RowMap]) {
	Async(func() (RowMap, error) { return b.First(ctx, conn) }, cb)
}
