package adapters

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	f "github.com/kestrel-labs/tenancy-go/core"
	dserrors "github.com/kestrel-labs/tenancy-go/errors"
)

type connectionImpl struct {
	id      string
	dbType  f.DbType
	db      *bun.DB
	acquire func(ctx context.Context) (f.PooledConn, error)
}

// NewConnection exposes a routed pool through the ORM-facing Connection
// surface. The pool stays owned by the registry; closing it is not the
// connection's business.
func NewConnection(id string, dbType f.DbType, sqldb *sql.DB) (f.Connection, error) {
	var db *bun.DB
	switch dbType {
	case f.DbTypePostgres:
		db = bun.NewDB(sqldb, pgdialect.New())
	case f.DbTypeMysql:
		db = bun.NewDB(sqldb, mysqldialect.New())
	case f.DbTypeSqlite:
		db = bun.NewDB(sqldb, sqlitedialect.New())
	default:
		return nil, dserrors.Validation("no ORM dialect for %s", dbType)
	}
	return &connectionImpl{id: id, dbType: dbType, db: db}, nil
}

// NewRoutedConnection builds the ORM surface for a registered handle. For a
// handle on a shared pool, every statement is checked out through Acquire so
// it runs in the tenant's schema, not in whatever schema the recycled
// session last had.
func NewRoutedConnection(id string, dbType f.DbType, handle f.PoolHandle) (f.Connection, error) {
	cnx, err := NewConnection(id, dbType, handle.DB())
	if err != nil {
		return nil, err
	}
	impl := cnx.(*connectionImpl)
	if handle.PoolKey() != "" {
		impl.acquire = handle.Acquire
	}
	return impl, nil
}

// run executes fn against the pool for dedicated tenants, or against a
// freshly acquired schema-switched connection for shared ones.
func (t connectionImpl) run(ctx context.Context, fn func(cn bun.IConn) error) error {
	if t.acquire == nil {
		return fn(t.db)
	}
	pooled, err := t.acquire(ctx)
	if err != nil {
		return err
	}
	defer pooled.Close()
	return fn(pooled)
}

func (t connectionImpl) Id() string {
	return t.id
}

func (t connectionImpl) Ping() error {
	ctx := context.Background()
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := cn.ExecContext(ctx, "SELECT 1")
		return err
	})
}

func (t connectionImpl) Exec(ctx context.Context, query string, args ...any) error {
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := cn.ExecContext(ctx, query, args...)
		return err
	})
}

func (t connectionImpl) Insert(ctx context.Context, entity f.Entity) error {
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := t.db.NewInsert().Conn(cn).Model(entity).Exec(ctx)
		return err
	})
}

func (t connectionImpl) InsertBatch(ctx context.Context, entities f.Entity) error {
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := t.db.NewInsert().Conn(cn).Model(entities).Exec(ctx)
		return err
	})
}

func (t connectionImpl) Update(ctx context.Context, entity f.Entity, columns ...string) error {
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := t.db.
			NewUpdate().
			Conn(cn).
			Model(entity).
			Column(columns...).
			WherePK().
			Exec(ctx)
		return err
	})
}

func (t connectionImpl) UpdateBy(ctx context.Context, entity f.Entity, columns []string, where string, args ...any) (int64, error) {
	var affected int64
	err := t.run(ctx, func(cn bun.IConn) error {
		res, err := t.db.
			NewUpdate().
			Conn(cn).
			Model(entity).
			Column(columns...).
			Where(where, args...).
			Exec(ctx)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (t connectionImpl) Delete(ctx context.Context, entity f.Entity) error {
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := t.db.NewDelete().Conn(cn).Model(entity).WherePK().Exec(ctx)
		return err
	})
}

func (t connectionImpl) DeleteBy(ctx context.Context, entity f.Entity, where string, args ...any) error {
	return t.run(ctx, func(cn bun.IConn) error {
		_, err := t.db.NewDelete().Conn(cn).Model(entity).Where(where, args...).Exec(ctx)
		return err
	})
}

func (t connectionImpl) FindBy(ctx context.Context, entity f.Entity, where string, args ...any) (bool, error) {
	notFound := false
	err := t.run(ctx, func(cn bun.IConn) error {
		err := t.db.NewSelect().Conn(cn).Model(entity).Where(where, args...).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			notFound = true
			return nil
		}
		return err
	})
	return notFound, err
}

func (t connectionImpl) ExistsBy(ctx context.Context, entity f.Entity, where string, args ...any) (bool, error) {
	exists := true
	err := t.run(ctx, func(cn bun.IConn) error {
		err := t.db.NewSelect().Conn(cn).Model(entity).Where(where, args...).Scan(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			exists = false
			return nil
		}
		return err
	})
	return exists, err
}

func (t connectionImpl) Count(ctx context.Context, entity f.Entity) (int, error) {
	var count int
	err := t.run(ctx, func(cn bun.IConn) error {
		n, err := t.db.NewSelect().
			Conn(cn).
			Model(entity).
			Count(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		count = n
		return err
	})
	return count, err
}

func (t connectionImpl) CountBy(ctx context.Context, entity f.Entity, where string, args ...any) (int, error) {
	var count int
	err := t.run(ctx, func(cn bun.IConn) error {
		n, err := t.db.NewSelect().
			Conn(cn).
			Model(entity).
			Where(where, args...).
			Count(ctx)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		count = n
		return err
	})
	return count, err
}

func (t connectionImpl) Query(ctx context.Context, model f.Entity, options ...f.QueryOpts) (bool, error) {
	notFound := false
	err := t.run(ctx, func(cn bun.IConn) error {
		q := t.db.NewSelect().Conn(cn).Model(model)
		for _, opts := range options {
			if opts.Columns != "" {
				q = q.ColumnExpr(opts.Columns)
			}
			for _, join := range opts.Joins {
				q = q.Join(join)
			}
			if opts.Where != "" {
				q = q.Where(opts.Where, opts.Args...)
			}
			if opts.OrderBy != "" {
				q = q.Order(opts.OrderBy)
			}
			if opts.Limit > 0 {
				q = q.Limit(opts.Limit)
			}
			if opts.Offset > 0 {
				q = q.Offset(opts.Offset)
			}
		}
		if err := q.Scan(ctx); errors.Is(err, sql.ErrNoRows) {
			notFound = true
			return nil
		} else if err != nil {
			return err
		}
		return nil
	})
	return notFound, err
}
