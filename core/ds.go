package f

import (
	"context"
	"database/sql"
	"encoding/json"
	"io/fs"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kestrel-labs/tenancy-go/errors"
)

type DbType string

const (
	DbTypeMysql     DbType = "mysql"
	DbTypePostgres  DbType = "postgresql"
	DbTypeOracle    DbType = "oracle"
	DbTypeSqlServer DbType = "sqlserver"
	// DbTypeSqlite is a development and test convenience, not a production
	// tenant dialect.
	DbTypeSqlite DbType = "sqlite"
)

type Strategy string

const (
	StrategyDatabase Strategy = "DATABASE"
	StrategySchema   Strategy = "SCHEMA"
)

type Action string

const (
	ActionInit Action = "INIT"
	ActionAdd  Action = "ADD"
	ActionDel  Action = "DEL"
)

// TenantDataSourceTopic is the event bus topic lifecycle events arrive on.
const TenantDataSourceTopic = "tenant_datasource"

// TenantDataSourceEvent carries everything the lifecycle handler needs to
// provision and register a tenant's datasource. Immutable once validated.
type TenantDataSourceEvent struct {
	TenantCode  string   `json:"tenant_code" validate:"required"`
	DbType      DbType   `json:"db_type" validate:"required,oneof=mysql postgresql oracle sqlserver sqlite"`
	DatabaseUrl string   `json:"database_url" validate:"required"`
	Username    string   `json:"username"`
	Password    string   `json:"password"`
	SchemaName  string   `json:"schema_name"`
	Strategy    Strategy `json:"strategy" validate:"omitempty,oneof=DATABASE SCHEMA"`
}

var (
	schemaNameRe = regexp.MustCompile(`^[0-9a-zA-Z_-]+$`)
	validate     = validator.New()
)

// ValidSchemaName is the injection defense for identifiers that end up
// interpolated into DDL.
func ValidSchemaName(name string) bool {
	return schemaNameRe.MatchString(name)
}

func (e TenantDataSourceEvent) Validate() error {
	if err := validate.Struct(e); err != nil {
		return errors.Validation("invalid tenant datasource event: %v", err)
	}
	if !ValidSchemaName(e.TenantCode) {
		return errors.Validation("invalid tenant code: %s", e.TenantCode)
	}
	if e.SchemaName != "" && !ValidSchemaName(e.SchemaName) {
		return errors.Validation("invalid schema name: %s", e.SchemaName)
	}
	if e.Strategy == StrategySchema && e.SchemaName == "" {
		return errors.Validation("schema name is required for SCHEMA strategy")
	}
	return nil
}

// SharedPoolKey identifies the physical pool shared by SCHEMA-strategy
// tenants living on the same server with the same credentials.
func (e TenantDataSourceEvent) SharedPoolKey() string {
	return e.DatabaseUrl + "|" + e.Username
}

func RoutingKey(prefix string, tenantCode string) string {
	return prefix + tenantCode
}

// FireTenantEvent publishes a lifecycle event on the shared bus.
func FireTenantEvent(ctx context.Context, action Action, event TenantDataSourceEvent) {
	FireEvent(ctx, TenantDataSourceTopic, map[string]any{
		"action": string(action),
		"event":  event,
	})
}

// DecodeTenantEvent is the inverse of FireTenantEvent. It tolerates both the
// typed payload fired in-process and a plain map coming off a broker.
func DecodeTenantEvent(data map[string]any) (Action, TenantDataSourceEvent, error) {
	action := Action("")
	if raw, ok := data["action"].(string); ok {
		action = Action(raw)
	}
	switch evt := data["event"].(type) {
	case TenantDataSourceEvent:
		return action, evt, nil
	default:
		encoded, err := json.Marshal(evt)
		if err != nil {
			return action, TenantDataSourceEvent{}, errors.Validation("invalid tenant datasource payload: %v", err)
		}
		var out TenantDataSourceEvent
		if err = json.Unmarshal(encoded, &out); err != nil {
			return action, TenantDataSourceEvent{}, errors.Validation("invalid tenant datasource payload: %v", err)
		}
		return action, out, nil
	}
}

// ------------------------------------------------------------------------------------------------------------------
// ROUTING CONTRACTS
// ------------------------------------------------------------------------------------------------------------------

// PooledConn is what query-time code gets back from the router: either a raw
// pooled connection or a schema-switching wrapper. Close returns the
// connection to its pool.
type PooledConn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PingContext(ctx context.Context) error
	Close() error
}

// PoolHandle is a live registry entry: a dedicated pool, or a shared-pool
// wrapper bound to one tenant's schema.
type PoolHandle interface {
	Name() string
	DB() *sql.DB
	// PoolKey is empty for dedicated pools.
	PoolKey() string
	Acquire(ctx context.Context) (PooledConn, error)
	Close() error
}

type Registry interface {
	Get(key string) (PoolHandle, bool)
	Put(key string, handle PoolHandle)
	Remove(key string) PoolHandle
	Keys() []string
	// SharedPool returns the live physical pool for a shared pool key, if any
	// registered entry still references it.
	SharedPool(poolKey string) (*sql.DB, bool)
	SharedRefs(poolKey string) int
}

// ------------------------------------------------------------------------------------------------------------------
// PROVISIONING CONTRACTS
// ------------------------------------------------------------------------------------------------------------------

// BootstrapTarget is a connection that does not require the target schema to
// exist: MySQL connects through information_schema, PostgreSQL through a
// maintenance database.
type BootstrapTarget struct {
	DbType DbType
	Url    string
	DB     *sql.DB
}

type SchemaProvisioner interface {
	EnsureSchema(ctx context.Context, target BootstrapTarget, schemaName string) error
}

// ProvisioningLock guards schema provisioning across process instances. The
// returned function releases the lock.
type ProvisioningLock interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

type LifecycleHandler interface {
	Handle(ctx context.Context, action Action, event TenantDataSourceEvent) error
	InitSqlScript(ctx context.Context, event TenantDataSourceEvent, variables map[string]any) error
}

// ------------------------------------------------------------------------------------------------------------------
// TENANT PROVIDER
// ------------------------------------------------------------------------------------------------------------------

type Tenant struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	DatabaseUrl string   `json:"database_url"`
	DbType      DbType   `json:"db_type"`
	SchemaName  string   `json:"schema_name"`
	Strategy    Strategy `json:"strategy"`
}

type TenantList struct {
	Tenants []Tenant `json:"tenants"`
}

type TenantProvider interface {
	Load(ctx context.Context) ([]Tenant, error)
	GetTenant(ctx context.Context, id string) (*Tenant, error)
}

// ------------------------------------------------------------------------------------------------------------------
// CONFIG
// ------------------------------------------------------------------------------------------------------------------

type PoolOptions struct {
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"30m"`
}

type DataSourceConfig struct {
	// Prefix namespaces routing keys inside the registry.
	Prefix      string
	Pool        PoolOptions
	ScriptFS    fs.FS
	ScriptPaths []string
	MigrationFS fs.FS
}
