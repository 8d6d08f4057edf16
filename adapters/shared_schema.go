package adapters

import (
	"context"
	"database/sql"
	"fmt"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/log"
)

// SharedSchemaPool routes one tenant's traffic through a physical pool
// shared by every SCHEMA-strategy tenant on the same server/credentials.
// Each checkout switches the session to the tenant's schema; each return
// resets it so the recycled connection cannot leak the schema to the next
// tenant.
type SharedSchemaPool struct {
	name    string
	db      *sql.DB
	poolKey string
	schema  string
	dbType  f.DbType
}

func NewSharedSchemaPool(name string, db *sql.DB, poolKey string, schema string, dbType f.DbType) *SharedSchemaPool {
	return &SharedSchemaPool{
		name:    name,
		db:      db,
		poolKey: poolKey,
		schema:  schema,
		dbType:  dbType,
	}
}

func (p *SharedSchemaPool) Name() string {
	return p.name
}

func (p *SharedSchemaPool) DB() *sql.DB {
	return p.db
}

func (p *SharedSchemaPool) PoolKey() string {
	return p.poolKey
}

func (p *SharedSchemaPool) Schema() string {
	return p.schema
}

// Close is a no-op: the physical pool is owned by the registry and closed
// only when no entry references the pool key anymore.
func (p *SharedSchemaPool) Close() error {
	return nil
}

func (p *SharedSchemaPool) Acquire(ctx context.Context) (f.PooledConn, error) {
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.PoolCreation(err, "failed to acquire connection from pool %s", p.name)
	}
	original, err := currentSchema(ctx, conn, p.dbType)
	if err != nil {
		// some drivers cannot report the active schema; reset falls back to
		// the dialect default
		original = ""
	}
	if err := setSchema(ctx, conn, p.dbType, p.schema); err != nil {
		_ = conn.Close()
		return nil, errors.PoolCreation(err, "failed to switch connection to schema %s", p.schema)
	}
	return &tenantConn{
		conn:     conn,
		dbType:   p.dbType,
		schema:   p.schema,
		original: original,
	}, nil
}

// tenantConn wraps a raw pooled connection checked out for one tenant.
// Close resets the session schema before handing the physical connection
// back to the pool.
type tenantConn struct {
	conn     *sql.Conn
	dbType   f.DbType
	schema   string
	original string
}

func (c *tenantConn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *tenantConn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *tenantConn) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c *tenantConn) PingContext(ctx context.Context) error {
	return c.conn.PingContext(ctx)
}

func (c *tenantConn) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return c.conn.BeginTx(ctx, opts)
}

func (c *tenantConn) PrepareContext(ctx context.Context, query string) (*sql.Stmt, error) {
	return c.conn.PrepareContext(ctx, query)
}

func (c *tenantConn) Raw(fn func(driverConn any) error) error {
	return c.conn.Raw(fn)
}

func (c *tenantConn) Close() error {
	reset := c.original
	if reset == "" {
		reset = defaultSchema(c.dbType)
	}
	if reset != "" {
		if err := setSchema(context.Background(), c.conn, c.dbType, reset); err != nil {
			// never suppress the physical close, otherwise the connection
			// leaks out of the pool
			log.Error("failed to reset schema from %s to %s: %v", c.schema, reset, err)
		}
	}
	return c.conn.Close()
}

func currentSchema(ctx context.Context, conn *sql.Conn, dbType f.DbType) (string, error) {
	var query string
	switch dbType {
	case f.DbTypePostgres:
		query = "SELECT current_schema()"
	case f.DbTypeMysql:
		query = "SELECT DATABASE()"
	default:
		return "", fmt.Errorf("schema introspection not supported for %s", dbType)
	}
	var schema sql.NullString
	if err := conn.QueryRowContext(ctx, query).Scan(&schema); err != nil {
		return "", err
	}
	return schema.String, nil
}

func setSchema(ctx context.Context, conn *sql.Conn, dbType f.DbType, schema string) error {
	if !f.ValidSchemaName(schema) {
		return errors.Validation("invalid schema name: %s", schema)
	}
	var stmt string
	switch dbType {
	case f.DbTypePostgres:
		stmt = fmt.Sprintf(`SET search_path TO "%s"`, schema)
	case f.DbTypeMysql:
		stmt = fmt.Sprintf("USE `%s`", schema)
	default:
		return fmt.Errorf("schema switching not supported for %s", dbType)
	}
	_, err := conn.ExecContext(ctx, stmt)
	return err
}

func defaultSchema(dbType f.DbType) string {
	switch dbType {
	case f.DbTypePostgres:
		return "public"
	case f.DbTypeMysql:
		return "information_schema"
	default:
		return ""
	}
}
