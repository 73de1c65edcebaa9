package repository

import (
	"context"
	"database/sql"
	"fmt"

	"datakit/core/cluster"
	"datakit/core/database"
	"datakit/core/entity"
	"datakit/core/logger"
	"datakit/core/query"

	"go.uber.org/zap"
)

// Repository is a generic CRUD facade over one entity descriptor. It is
// stateless between calls; all state lives in the database.
type Repository[T any] struct {
	conn   database.Connector
	desc   *entity.Descriptor[T]
	bus    *cluster.Manager
	prefix string
	log    *zap.Logger
}

// Option configures a repository.
type Option[T any] func(*Repository[T])

// WithCluster makes every successful mutation publish a change
// notification through the given manager.
func WithCluster[T any](bus *cluster.Manager) Option[T] {
	return func(r *Repository[T]) { r.bus = bus }
}

// WithTablePrefix prepends a deployment prefix to the physical table
// name, the usual multi-server convention for shared databases.
func WithTablePrefix[T any](prefix string) Option[T] {
	return func(r *Repository[T]) { r.prefix = prefix }
}

// New builds a repository for the descriptor's entity type.
func New[T any](conn database.Connector, desc *entity.Descriptor[T], log *zap.Logger, opts ...Option[T]) *Repository[T] {
	r := &Repository[T]{
		conn: conn,
		desc: desc,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = logger.WithTable(log, r.table())
	return r
}

func (r *Repository[T]) table() string {
	return r.prefix + r.desc.Table()
}

// mutation is the payload attached to published change events.
type mutation struct {
	Op string `json:"op"`
	ID any    `json:"id"`
}

func (r *Repository[T]) publish(op string, id any) {
	if r.bus == nil {
		return
	}
	r.bus.PublishEvent(r.desc.Table(), r.prefix, mutation{Op: op, ID: query.Normalize(id)})
}

// Save persists the entity atomically: inserted when absent, updated
// when present, with no separate existence check. The statement shape
// follows the connector's upsert capability.
func (r *Repository[T]) Save(ctx context.Context, e *T) error {
	values, err := r.desc.ToMap(e)
	if err != nil {
		return fmt.Errorf("repository: failed to map entity: %w", err)
	}

	err = r.conn.WithConn(ctx, func(c *sql.Conn) error {
		return execUpsert(ctx, c, r.conn.UpsertStyle(), r.table(), r.desc.IDColumn(), r.desc.Columns(), values)
	})
	if err != nil {
		return err
	}

	r.publish("save", r.desc.ID(e))
	return nil
}

// SaveAsync runs Save on a separate goroutine and funnels the outcome
// into the callback.
func (r *Repository[T]) SaveAsync(ctx context.Context, e *T, cb query.Callback[*T]) {
	query.Async(func() (*T, error) {
		if err := r.Save(ctx, e); err != nil {
			return nil, err
		}
		return e, nil
	}, cb)
}

// SaveAll persists the batch in a single transaction on one borrowed
// connection: either every entity lands or none do.
func (r *Repository[T]) SaveAll(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}

	err := r.conn.WithConn(ctx, func(c *sql.Conn) error {
		tx, err := c.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("repository: failed to begin transaction: %w", err)
		}

		for _, e := range entities {
			values, err := r.desc.ToMap(e)
			if err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("repository: failed to map entity: %w", err)
			}
			if err := execUpsert(ctx, tx, r.conn.UpsertStyle(), r.table(), r.desc.IDColumn(), r.desc.Columns(), values); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	for _, e := range entities {
		r.publish("save", r.desc.ID(e))
	}
	return nil
}

// SaveAllAsync runs SaveAll on a separate goroutine and funnels the
// outcome into the callback.
func (r *Repository[T]) SaveAllAsync(ctx context.Context, entities []*T, cb query.Callback[[]*T]) {
	query.Async(func() ([]*T, error) {
		if err := r.SaveAll(ctx, entities); err != nil {
			return nil, err
		}
		return entities, nil
	}, cb)
}

// FindByID returns the entity with the given identity, or nil with no
// error when nothing matched.
func (r *Repository[T]) FindByID(ctx context.Context, id any) (*T, error) {
	row, err := query.Select(r.table()).
		WhereEq(r.desc.IDColumn(), id).
		First(ctx, r.conn)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return r.desc.Map(row)
}

// FindByIDAsync runs FindByID on a separate goroutine and funnels the
// outcome into the callback.
func (r *Repository[T]) FindByIDAsync(ctx context.Context, id any, cb query.Callback[*T]) {
	query.Async(func() (*T, error) { return r.FindByID(ctx, id) }, cb)
}

// FindAll returns every row mapped to an entity.
func (r *Repository[T]) FindAll(ctx context.Context) ([]*T, error) {
	rows, err := query.Select(r.table()).All(ctx, r.conn)
	if err != nil {
		return nil, err
	}

	out := make([]*T, 0, len(rows))
	for _, row := range rows {
		e, err := r.desc.Map(row)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// FindAllAsync runs FindAll on a separate goroutine and funnels the
// outcome into the callback.
func (r *Repository[T]) FindAllAsync(ctx context.Context, cb query.Callback[[]*T]) {
	query.Async(func() ([]*T, error) { return r.FindAll(ctx) }, cb)
}

// ExistsByID probes for the identity with an identity-column-only
// projection. A missing row is false with no error.
func (r *Repository[T]) ExistsByID(ctx context.Context, id any) (bool, error) {
	row, err := query.Select(r.table()).
		Columns(r.desc.IDColumn()).
		WhereEq(r.desc.IDColumn(), id).
		First(ctx, r.conn)
	if err != nil {
		return false, err
	}
	return row != nil, nil
}

// Count returns the number of rows in the table.
func (r *Repository[T]) Count(ctx context.Context) (int64, error) {
	return query.Select(r.table()).
		Columns("COUNT(*)").
		Long(ctx, r.conn)
}

// DeleteByID removes the row with the given identity and reports
// whether anything was deleted.
func (r *Repository[T]) DeleteByID(ctx context.Context, id any) (bool, error) {
	n, err := query.Delete(r.table()).
		WhereEq(r.desc.IDColumn(), id).
		Exec(ctx, r.conn)
	if err != nil {
		return false, err
	}
	if n > 0 {
		r.publish("delete", id)
	}
	return n > 0, nil
}

// Delete removes the entity's row, matching by identity only.
func (r *Repository[T]) Delete(ctx context.Context, e *T) (bool, error) {
	return r.DeleteByID(ctx, r.desc.ID(e))
}

// DeleteAll removes the batch in a single transaction through one
// prepared statement, matching identity values only. All-or-nothing.
func (r *Repository[T]) DeleteAll(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}

	sqlStr := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", r.table(), r.desc.IDColumn())

	err := r.conn.WithConn(ctx, func(c *sql.Conn) error {
		tx, err := c.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("repository: failed to begin transaction: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, sqlStr)
		if err != nil {
			_ = tx.Rollback()
			return err
		}
		defer stmt.Close()

		for _, e := range entities {
			if _, err := stmt.ExecContext(ctx, query.Normalize(r.desc.ID(e))); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		return tx.Commit()
	})
	if err != nil {
		return err
	}

	for _, e := range entities {
		r.publish("delete", r.desc.ID(e))
	}
	return nil
}

// DeleteAllAsync runs DeleteAll on a separate goroutine and funnels the
// outcome into the callback.
func (r *Repository[T]) DeleteAllAsync(ctx context.Context, entities []*T, cb query.Callback[[]*T]) {
	query.Async(func() ([]*T, error) {
		if err := r.DeleteAll(ctx, entities); err != nil {
			return nil, err
		}
		return entities, nil
	}, cb)
}
