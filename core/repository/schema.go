package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"datakit/core/database"
	"datakit/core/entity"

	"go.uber.org/zap"
)

// EnsureTable creates the entity's table when absent and adds columns
// that exist in the descriptor but not yet in the database. Returns a
// description of every change it made. Columns are only ever added,
// never dropped or retyped.
func (r *Repository[T]) EnsureTable(ctx context.Context) ([]string, error) {
	var changes []string

	createSQL := r.buildCreateTable()
	err := r.conn.WithConn(ctx, func(c *sql.Conn) error {
		_, err := c.ExecContext(ctx, createSQL)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("repository: failed to create table %s: %w", r.table(), err)
	}

	existing, err := database.TableColumns(ctx, r.conn, r.table())
	if err != nil {
		return nil, err
	}
	present := make(map[string]bool, len(existing))
	for _, col := range existing {
		present[col.Field] = true
	}

	for _, f := range r.desc.Fields() {
		info := f.Info()
		if present[info.Column] {
			continue
		}

		alterSQL := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			r.table(), info.Column, r.columnType(info))
		err := r.conn.WithConn(ctx, func(c *sql.Conn) error {
			_, err := c.ExecContext(ctx, alterSQL)
			return err
		})
		if err != nil {
			return changes, fmt.Errorf("repository: failed to add column %s: %w", info.Column, err)
		}

		change := fmt.Sprintf("Added column: %s (%s)", info.Column, r.columnType(info))
		changes = append(changes, change)
		r.log.Info("Schema updated", zap.String("change", change))
	}

	return changes, nil
}

func (r *Repository[T]) buildCreateTable() string {
	var defs []string
	for _, f := range r.desc.Fields() {
		info := f.Info()
		def := info.Column + " " + r.columnType(info)
		if info.Identity {
			def += " PRIMARY KEY"
		} else {
			if info.NotNull {
				def += " NOT NULL"
			}
			if info.Unique {
				def += " UNIQUE"
			}
		}
		defs = append(defs, def)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", r.table(), strings.Join(defs, ", "))
}

// columnType picks the column type for one field: the explicit override
// when present, else a dialect-appropriate default for the field kind.
func (r *Repository[T]) columnType(info entity.FieldInfo) string {
	if info.SQLType != "" {
		return info.SQLType
	}

	sqlite := r.conn.Dialect() == "sqlite"
	switch info.Kind {
	case entity.KindUUID:
		return "VARCHAR(36)"
	case entity.KindString:
		length := info.Length
		if length <= 0 {
			length = 255
		}
		return fmt.Sprintf("VARCHAR(%d)", length)
	case entity.KindEnum:
		return "VARCHAR(64)"
	case entity.KindInt:
		return "INT"
	case entity.KindLong:
		return "BIGINT"
	case entity.KindFloat:
		return "DOUBLE"
	case entity.KindBool:
		if sqlite {
			return "INTEGER"
		}
		return "TINYINT(1)"
	case entity.KindJSON:
		return "TEXT"
	case entity.KindBytes:
		return "BLOB"
	case entity.KindTime:
		if sqlite {
			return "TEXT"
		}
		return "DATETIME"
	default:
		return "TEXT"
	}
}
