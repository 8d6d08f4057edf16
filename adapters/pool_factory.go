package adapters

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"

	_ "github.com/go-sql-driver/mysql"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/h"
)

type PoolConfig struct {
	Name     string
	DbType   f.DbType
	Url      string
	Username string
	Password string
	Options  f.PoolOptions
	// Eager pools are pinged at build time and capped at one connection.
	// Used for bootstrap pools that live for a single provisioning call.
	Eager bool
}

// PoolFactory builds pooled datasources. Stateless.
type PoolFactory struct {
	// Open overrides driver selection, for tests.
	Open func(cfg PoolConfig) (*sql.DB, error)
}

func (pf *PoolFactory) Build(cfg PoolConfig) (*sql.DB, error) {
	open := pf.Open
	if open == nil {
		open = openPool
	}
	db, err := open(cfg)
	if err != nil {
		return nil, errors.PoolCreation(err, "failed to open pool %s", cfg.Name)
	}
	if cfg.Eager {
		db.SetMaxOpenConns(1)
		if err := db.Ping(); err != nil {
			_ = db.Close()
			return nil, errors.PoolCreation(err, "failed to connect pool %s", cfg.Name)
		}
		return db, nil
	}
	if cfg.Options.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Options.MaxOpenConns)
	}
	if cfg.Options.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Options.MaxIdleConns)
	}
	if cfg.Options.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Options.ConnMaxLifetime)
	}
	return db, nil
}

func openPool(cfg PoolConfig) (*sql.DB, error) {
	databaseUrl, err := h.WithUserInfo(cfg.Url, cfg.Username, cfg.Password)
	if err != nil {
		return nil, err
	}
	switch cfg.DbType {
	case f.DbTypeMysql:
		dsn, err := h.MysqlDSN(databaseUrl)
		if err != nil {
			return nil, err
		}
		return sql.Open("mysql", dsn)
	case f.DbTypePostgres:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(databaseUrl))), nil
	case f.DbTypeSqlite:
		return sql.Open(sqliteshim.ShimName, strings.TrimPrefix(databaseUrl, "sqlite://"))
	default:
		return nil, errors.Validation("unsupported pool dialect: %s", cfg.DbType)
	}
}

// ------------------------------------------------------------------------------------------------------------------
// DEDICATED POOL HANDLE
// ------------------------------------------------------------------------------------------------------------------

type dedicatedPool struct {
	name string
	db   *sql.DB
}

func NewDedicatedPool(name string, db *sql.DB) f.PoolHandle {
	return &dedicatedPool{name: name, db: db}
}

func (p *dedicatedPool) Name() string {
	return p.name
}

func (p *dedicatedPool) DB() *sql.DB {
	return p.db
}

func (p *dedicatedPool) PoolKey() string {
	return ""
}

func (p *dedicatedPool) Acquire(ctx context.Context) (f.PooledConn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.PoolCreation(err, "failed to acquire connection from pool %s", p.name)
	}
	return conn, nil
}

func (p *dedicatedPool) Close() error {
	return p.db.Close()
}
