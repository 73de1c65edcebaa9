package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ColumnInfo describes one column of an existing table.
type ColumnInfo struct {
	Field string
	Type  string
}

// TableColumns retrieves the column definitions for a given table.
// Field and type names are normalized to lowercase.
func TableColumns(ctx context.Context, conn Connector, tableName string) ([]ColumnInfo, error) {
	var columns []ColumnInfo

	err := conn.WithConn(ctx, func(c *sql.Conn) error {
		if conn.Dialect() == "sqlite" {
			// SQLite uses PRAGMA table_info
			rows, err := c.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info('%s')", tableName))
			if err != nil {
				return fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
			}
			defer rows.Close()

			for rows.Next() {
				var (
					cid        int
					name, typ  string
					notNull    int
					defaultVal sql.NullString
					pk         int
				)
				if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
					return err
				}
				columns = append(columns, ColumnInfo{
					Field: strings.ToLower(name),
					Type:  strings.ToLower(typ),
				})
			}
			return rows.Err()
		}

		// MySQL uses SHOW COLUMNS; raw SQL gives exact type strings.
		rows, err := c.QueryContext(ctx, fmt.Sprintf("SHOW COLUMNS FROM `%s`", tableName))
		if err != nil {
			return fmt.Errorf("failed to get columns for table %s: %w", tableName, err)
		}
		defer rows.Close()

		for rows.Next() {
			var (
				field, typ, null, key string
				defaultVal            sql.NullString
				extra                 string
			)
			if err := rows.Scan(&field, &typ, &null, &key, &defaultVal, &extra); err != nil {
				return err
			}
			columns = append(columns, ColumnInfo{
				Field: strings.ToLower(field),
				Type:  strings.ToLower(typ),
			})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return columns, nil
}
