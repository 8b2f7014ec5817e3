// Package repository implements the generic data-access layer: a single
// Repository type parameterised over any domain.Record, backed by the
// connection pool and a squirrel-built SQL dialect.
package repository

import (
	"context"
	"fmt"

	sqrl "github.com/Masterminds/squirrel"

	"github.com/corebooks/erp-core/internal/domain"
	"github.com/corebooks/erp-core/internal/mdb"
	"github.com/corebooks/erp-core/internal/mvalue"
	"github.com/corebooks/erp-core/pkg/merrors"
	"github.com/corebooks/erp-core/pkg/mlog"
)

// Repository is a generic CRUD layer over a table, typed over a
// domain.Record implementation. It acquires a pool connection per
// operation and releases it on every exit path, unless bound to an
// explicit Connection via WithConnection (the execute_transaction case,
// where every repository call inside the work callback must share the
// same Connection the transaction was opened on).
type Repository[T domain.Record] struct {
	pool      *mdb.ConnectionPool
	table     string
	newRecord func() T
	log       mlog.Logger

	conn *mdb.Connection
}

// New constructs a Repository for table, bound to pool. newRecord must
// return a freshly zeroed T (e.g. func() *domain.GLAccount { return
// &domain.GLAccount{} }), since T is typically a pointer type and the
// generic parameter alone carries no zero-value constructor.
func New[T domain.Record](pool *mdb.ConnectionPool, table string, newRecord func() T, log mlog.Logger) *Repository[T] {
	if log == nil {
		log = mlog.Nop{}
	}

	return &Repository[T]{pool: pool, table: table, newRecord: newRecord, log: log}
}

// WithConnection returns a copy of the repository bound to conn instead
// of the pool, for use inside a transactional work callback.
func (r *Repository[T]) WithConnection(conn *mdb.Connection) *Repository[T] {
	bound := *r
	bound.conn = conn

	return &bound
}

// withConn runs fn against either the bound connection or one acquired
// from the pool for the duration of the call, releasing it afterward.
func (r *Repository[T]) withConn(ctx context.Context, fn func(conn *mdb.Connection) error) error {
	if r.conn != nil {
		return fn(r.conn)
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer r.pool.Release(conn)

	return fn(conn)
}

// Create inserts record, rejecting an empty projection.
func (r *Repository[T]) Create(ctx context.Context, record T) error {
	cols := record.ToMap()
	if len(cols) == 0 {
		return merrors.New(merrors.InvalidInput, fmt.Sprintf("repository: empty projection for table %s", r.table))
	}

	names := make([]string, 0, len(cols))
	for name := range cols {
		names = append(names, name)
	}

	builder := sqrl.Insert(r.table).Columns(names...)

	values := make([]any, len(names))
	for i, name := range names {
		values[i] = sqrl.Expr(":" + name)
	}

	builder = builder.Values(values...)

	query, _, err := builder.ToSql()
	if err != nil {
		return merrors.Wrap(merrors.DatabaseError, err, "repository: build insert")
	}

	r.log.Debugf("repository: create table=%s", r.table)

	return r.withConn(ctx, func(conn *mdb.Connection) error {
		ok, err := conn.Execute(ctx, query, cols)
		if err != nil {
			return err
		}

		if !ok {
			return merrors.New(merrors.DatabaseError, fmt.Sprintf("repository: insert into %s failed", r.table))
		}

		return nil
	})
}

// Get runs a SELECT filtered by an ANDed column=value map; an empty
// filter returns every row.
func (r *Repository[T]) Get(ctx context.Context, filter map[string]mvalue.Value) ([]T, error) {
	builder := sqrl.Select("*").From(r.table)

	params := make(map[string]mvalue.Value, len(filter))

	i := 0
	for name, v := range filter {
		placeholder := fmt.Sprintf("f%d", i)
		builder = builder.Where(fmt.Sprintf("%s = :%s", name, placeholder))
		params[placeholder] = v
		i++
	}

	query, _, err := builder.ToSql()
	if err != nil {
		return nil, merrors.Wrap(merrors.DatabaseError, err, "repository: build select")
	}

	r.log.Debugf("repository: get table=%s", r.table)

	var out []T

	err = r.withConn(ctx, func(conn *mdb.Connection) error {
		rows, err := conn.Query(ctx, query, params)
		if err != nil {
			return err
		}

		for _, row := range rows {
			rec := r.newRecord()
			if err := rec.FromMap(row); err != nil {
				return merrors.Wrap(merrors.DatabaseError, err, "repository: decode row")
			}

			out = append(out, rec)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// GetByID wraps Get with a single {id: id} filter.
func (r *Repository[T]) GetByID(ctx context.Context, id string) (T, bool, error) {
	rows, err := r.Get(ctx, map[string]mvalue.Value{"id": mvalue.String(id)})

	var zero T

	if err != nil {
		return zero, false, err
	}

	if len(rows) == 0 {
		return zero, false, nil
	}

	return rows[0], true, nil
}

// Update builds a parameterised UPDATE ... WHERE id = :id. record.ID
// must be non-empty.
func (r *Repository[T]) Update(ctx context.Context, record T) error {
	cols := record.ToMap()

	id, ok := cols["id"]
	if !ok || id.IsNull() {
		return merrors.New(merrors.InvalidInput, "repository: update requires a non-empty id")
	}

	builder := sqrl.Update(r.table)

	for name := range cols {
		if name == "id" {
			continue
		}

		builder = builder.Set(name, sqrl.Expr(":"+name))
	}

	builder = builder.Where("id = :id")

	query, _, err := builder.ToSql()
	if err != nil {
		return merrors.Wrap(merrors.DatabaseError, err, "repository: build update")
	}

	r.log.Debugf("repository: update table=%s", r.table)

	return r.withConn(ctx, func(conn *mdb.Connection) error {
		ok, err := conn.Execute(ctx, query, cols)
		if err != nil {
			return err
		}

		if !ok {
			return merrors.New(merrors.DatabaseError, fmt.Sprintf("repository: update on %s failed", r.table))
		}

		return nil
	})
}

// Remove issues a DELETE WHERE id = :id. Callers preferring a
// soft-delete use Update with Status instead.
func (r *Repository[T]) Remove(ctx context.Context, id string) error {
	query, _, err := sqrl.Delete(r.table).Where("id = :id").ToSql()
	if err != nil {
		return merrors.Wrap(merrors.DatabaseError, err, "repository: build delete")
	}

	r.log.Debugf("repository: remove table=%s", r.table)

	return r.withConn(ctx, func(conn *mdb.Connection) error {
		ok, err := conn.Execute(ctx, query, map[string]mvalue.Value{"id": mvalue.String(id)})
		if err != nil {
			return err
		}

		if !ok {
			return merrors.New(merrors.DatabaseError, fmt.Sprintf("repository: delete on %s failed", r.table))
		}

		return nil
	})
}

// Count returns the number of rows matching filter.
func (r *Repository[T]) Count(ctx context.Context, filter map[string]mvalue.Value) (int64, error) {
	builder := sqrl.Select("COUNT(*) AS n").From(r.table)

	params := make(map[string]mvalue.Value, len(filter))

	i := 0
	for name, v := range filter {
		placeholder := fmt.Sprintf("f%d", i)
		builder = builder.Where(fmt.Sprintf("%s = :%s", name, placeholder))
		params[placeholder] = v
		i++
	}

	query, _, err := builder.ToSql()
	if err != nil {
		return 0, merrors.Wrap(merrors.DatabaseError, err, "repository: build count")
	}

	var n int64

	err = r.withConn(ctx, func(conn *mdb.Connection) error {
		rows, err := conn.Query(ctx, query, params)
		if err != nil {
			return err
		}

		if len(rows) == 0 {
			return nil
		}

		v, ok := rows[0]["n"]
		if !ok {
			return nil
		}

		count, err := v.AsInt()
		if err != nil {
			return merrors.Wrap(merrors.DatabaseError, err, "repository: decode count")
		}

		n = count

		return nil
	})
	if err != nil {
		return 0, err
	}

	return n, nil
}
