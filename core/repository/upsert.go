package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"datakit/core/database"
	"datakit/core/query"

	"github.com/go-sql-driver/mysql"
)

// execer is satisfied by *sql.Conn and *sql.Tx, so the same upsert path
// serves single saves and batched transactions.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// execUpsert persists one column map atomically, insert-or-update,
// using the statement shape the backend supports.
func execUpsert(ctx context.Context, ex execer, style database.UpsertStyle, table, idCol string, cols []string, values map[string]any) error {
	switch style {
	case database.UpsertDuplicateKey:
		sqlStr, args := buildDuplicateKeyUpsert(table, idCol, cols, values)
		_, err := ex.ExecContext(ctx, sqlStr, args...)
		return err
	case database.UpsertReplace:
		sqlStr, args := buildReplaceUpsert(table, cols, values)
		_, err := ex.ExecContext(ctx, sqlStr, args...)
		return err
	default:
		return execFallbackUpsert(ctx, ex, table, idCol, cols, values)
	}
}

// buildDuplicateKeyUpsert renders the MySQL-family single-statement
// upsert: every non-identity column is rewritten on a duplicate key.
func buildDuplicateKeyUpsert(table, idCol string, cols []string, values map[string]any) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(cols))

	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, query.Normalize(values[col]))
	}
	sb.WriteString(") ON DUPLICATE KEY UPDATE ")

	first := true
	for _, col := range cols {
		if col == idCol {
			continue
		}
		if !first {
			sb.WriteString(", ")
		}
		first = false
		sb.WriteString(col)
		sb.WriteString(" = VALUES(")
		sb.WriteString(col)
		sb.WriteString(")")
	}
	if first {
		// Identity-only entity: the assignment list must not be empty,
		// so touch the key with a no-op.
		sb.WriteString(idCol)
		sb.WriteString(" = ")
		sb.WriteString(idCol)
	}

	return sb.String(), args
}

// buildReplaceUpsert renders the SQLite-family single-statement upsert.
func buildReplaceUpsert(table string, cols []string, values map[string]any) (string, []any) {
	var sb strings.Builder
	args := make([]any, 0, len(cols))

	sb.WriteString("INSERT OR REPLACE INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, query.Normalize(values[col]))
	}
	sb.WriteString(")")

	return sb.String(), args
}

// execFallbackUpsert is the generic path: UPDATE, then INSERT when no
// row was touched. The window between the two is racy under concurrent
// writers of a fresh identity; a duplicate-key failure of the INSERT is
// therefore retried once as an UPDATE so racing writers converge.
func execFallbackUpsert(ctx context.Context, ex execer, table, idCol string, cols []string, values map[string]any) error {
	hasData := false
	for _, col := range cols {
		if col != idCol {
			hasData = true
			break
		}
	}

	update := func() (int64, error) {
		var sb strings.Builder
		args := make([]any, 0, len(cols))

		sb.WriteString("UPDATE ")
		sb.WriteString(table)
		sb.WriteString(" SET ")
		first := true
		for _, col := range cols {
			if col == idCol {
				continue
			}
			if !first {
				sb.WriteString(", ")
			}
			first = false
			sb.WriteString(col)
			sb.WriteString(" = ?")
			args = append(args, query.Normalize(values[col]))
		}
		sb.WriteString(" WHERE ")
		sb.WriteString(idCol)
		sb.WriteString(" = ?")
		args = append(args, query.Normalize(values[idCol]))

		res, err := ex.ExecContext(ctx, sb.String(), args...)
		if err != nil {
			return 0, err
		}
		return res.RowsAffected()
	}

	// An identity-only entity has no SET list, so the UPDATE leg is
	// skipped and presence alone makes the INSERT's duplicate-key
	// failure a success.
	if hasData {
		affected, err := update()
		if err != nil {
			return err
		}
		if affected > 0 {
			return nil
		}
	}

	var sb strings.Builder
	args := make([]any, 0, len(cols))
	sb.WriteString("INSERT INTO ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(cols, ", "))
	sb.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("?")
		args = append(args, query.Normalize(values[col]))
	}
	sb.WriteString(")")

	if _, err := ex.ExecContext(ctx, sb.String(), args...); err != nil {
		if isDuplicateKey(err) {
			if !hasData {
				return nil
			}
			affected, retryErr := update()
			if retryErr != nil {
				return retryErr
			}
			if affected == 0 {
				return fmt.Errorf("repository: upsert lost race for %s.%s: %w", table, idCol, err)
			}
			return nil
		}
		return err
	}
	return nil
}

// isDuplicateKey recognizes unique/primary key violations from both
// supported backends.
func isDuplicateKey(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "Duplicate entry") ||
		strings.Contains(msg, "constraint violation")
}
