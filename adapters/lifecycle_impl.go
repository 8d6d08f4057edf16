package adapters

import (
	"context"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/h"
	"github.com/kestrel-labs/tenancy-go/log"
)

// lifecycleHandler processes tenant datasource events: provisions the
// schema, builds or rebuilds the pool, updates the registry. A mutex
// serializes all lifecycle mutations, which is what makes the registry's
// shared-pool reference counting sound.
type lifecycleHandler struct {
	mu          sync.Mutex
	cfg         f.DataSourceConfig
	registry    f.Registry
	provisioner f.SchemaProvisioner
	pools       *PoolFactory
}

func NewLifecycleHandler(cfg f.DataSourceConfig, registry f.Registry, provisioner f.SchemaProvisioner, pools *PoolFactory) f.LifecycleHandler {
	return &lifecycleHandler{
		cfg:         cfg,
		registry:    registry,
		provisioner: provisioner,
		pools:       pools,
	}
}

func (lh *lifecycleHandler) Handle(ctx context.Context, action f.Action, event f.TenantDataSourceEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}
	lh.mu.Lock()
	defer lh.mu.Unlock()
	switch action {
	case f.ActionInit:
		return lh.provision(ctx, event)
	case f.ActionAdd:
		return lh.register(ctx, event)
	case f.ActionDel:
		return lh.deregister(event)
	default:
		return errors.Validation("unknown action: %s", action)
	}
}

// InitSqlScript provisions the schema, registers the pool and runs the
// configured init scripts against it, in that strict order. Running scripts
// before the schema exists or before the pool points at it yields "unknown
// database" failures.
func (lh *lifecycleHandler) InitSqlScript(ctx context.Context, event f.TenantDataSourceEvent, variables map[string]any) error {
	if err := event.Validate(); err != nil {
		return err
	}
	if _, err := lh.schemaFor(event); err != nil {
		return err
	}
	lh.mu.Lock()
	defer lh.mu.Unlock()
	if err := lh.provision(ctx, event); err != nil {
		return err
	}
	if err := lh.register(ctx, event); err != nil {
		return err
	}
	return lh.runScripts(ctx, event, variables)
}

// schemaFor resolves the tenant's schema name: explicit when supplied,
// derived from the database URL for the DATABASE strategy.
func (lh *lifecycleHandler) schemaFor(event f.TenantDataSourceEvent) (string, error) {
	if event.SchemaName != "" {
		return event.SchemaName, nil
	}
	if event.Strategy == f.StrategySchema {
		return "", errors.Validation("schema name is required for SCHEMA strategy")
	}
	name, err := h.UrlDatabase(event.DatabaseUrl)
	if err != nil || name == "" {
		return "", errors.Validation("cannot derive schema name from url for tenant %s", event.TenantCode)
	}
	return name, nil
}

func (lh *lifecycleHandler) provision(ctx context.Context, event f.TenantDataSourceEvent) error {
	if event.DbType == f.DbTypeSqlite {
		// nothing to provision, the driver creates the file on first open
		return nil
	}
	schema, err := lh.schemaFor(event)
	if err != nil {
		return err
	}
	bootstrapUrl, err := bootstrapUrlFor(event)
	if err != nil {
		return err
	}
	db, err := lh.pools.Build(PoolConfig{
		Name:     "BootstrapPool_" + event.TenantCode,
		DbType:   event.DbType,
		Url:      bootstrapUrl,
		Username: event.Username,
		Password: event.Password,
		Eager:    true,
	})
	if err != nil {
		return err
	}
	defer db.Close()
	return lh.provisioner.EnsureSchema(ctx, f.BootstrapTarget{
		DbType: event.DbType,
		Url:    bootstrapUrl,
		DB:     db,
	}, schema)
}

func (lh *lifecycleHandler) register(ctx context.Context, event f.TenantDataSourceEvent) error {
	schema, err := lh.schemaFor(event)
	if err != nil {
		return err
	}
	key := f.RoutingKey(lh.cfg.Prefix, event.TenantCode)
	poolName := "TenantPool_" + event.TenantCode

	if event.DbType == f.DbTypePostgres && event.Strategy == f.StrategySchema {
		poolKey := event.SharedPoolKey()
		db, ok := lh.registry.SharedPool(poolKey)
		if !ok {
			db, err = lh.pools.Build(PoolConfig{
				Name:     "SharedPool_" + event.TenantCode,
				DbType:   event.DbType,
				Url:      event.DatabaseUrl,
				Username: event.Username,
				Password: event.Password,
				Options:  lh.cfg.Pool,
			})
			if err != nil {
				return err
			}
			log.Info("shared pool created for %s", poolKey)
		}
		lh.registry.Put(key, NewSharedSchemaPool(poolName, db, poolKey, schema, event.DbType))
		log.Info("tenant %s registered on shared pool (schema %s)", event.TenantCode, schema)
		return lh.migrate(event, schema)
	}

	tenantUrl := event.DatabaseUrl
	if event.DbType != f.DbTypeSqlite {
		tenantUrl, err = h.ReplaceUrlDatabase(event.DatabaseUrl, schema)
		if err != nil {
			return errors.Validation("invalid database url for tenant %s: %v", event.TenantCode, err)
		}
	}
	db, err := lh.pools.Build(PoolConfig{
		Name:     poolName,
		DbType:   event.DbType,
		Url:      tenantUrl,
		Username: event.Username,
		Password: event.Password,
		Options:  lh.cfg.Pool,
	})
	if err != nil {
		return err
	}
	lh.registry.Put(key, NewDedicatedPool(poolName, db))
	log.Info("tenant %s registered on dedicated pool %s", event.TenantCode, poolName)
	return lh.migrate(event, schema)
}

func (lh *lifecycleHandler) deregister(event f.TenantDataSourceEvent) error {
	key := f.RoutingKey(lh.cfg.Prefix, event.TenantCode)
	if handle := lh.registry.Remove(key); handle == nil {
		log.Warn("no datasource registered for %s, nothing to remove", key)
	} else {
		log.Info("tenant %s deregistered", event.TenantCode)
	}
	return nil
}

func (lh *lifecycleHandler) runScripts(ctx context.Context, event f.TenantDataSourceEvent, variables map[string]any) error {
	if lh.cfg.ScriptFS == nil || len(lh.cfg.ScriptPaths) == 0 {
		return nil
	}
	key := f.RoutingKey(lh.cfg.Prefix, event.TenantCode)
	handle, ok := lh.registry.Get(key)
	if !ok {
		return errors.RoutingMiss("no datasource registered for %s", key)
	}
	conn, err := handle.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	schema, _ := lh.schemaFor(event)
	vars := map[string]any{
		"tenant_code": event.TenantCode,
		"schema_name": schema,
	}
	for name, value := range variables {
		vars[name] = value
	}

	for _, path := range lh.cfg.ScriptPaths {
		content, err := fs.ReadFile(lh.cfg.ScriptFS, path)
		if err != nil {
			return errors.ScriptExecution(err, "failed to read script %s", path)
		}
		lines := strings.Split(string(content), "\n")
		for i, line := range lines {
			lines[i] = h.Interpolate(line, vars)
		}
		script := strings.Join(lines, "\n")
		for _, stmt := range h.SplitSqlStatements(script) {
			if _, err := conn.ExecContext(ctx, stmt); err != nil {
				return errors.ScriptExecution(err, "script %s failed for tenant %s", path, event.TenantCode)
			}
		}
		log.Info("script %s executed for tenant %s", path, event.TenantCode)
	}
	return nil
}

// migrate runs the tenant migration set against the freshly registered
// pool, the same way the default datasource migrates at startup.
// Shared-schema tenants migrate through a short-lived single-connection
// pool pinned to their schema: the search_path switch and the migration
// statements must land on the same session, and the shared pool must
// never see the mutated session.
func (lh *lifecycleHandler) migrate(event f.TenantDataSourceEvent, schema string) error {
	if lh.cfg.MigrationFS == nil {
		return nil
	}
	key := f.RoutingKey(lh.cfg.Prefix, event.TenantCode)
	handle, ok := lh.registry.Get(key)
	if !ok {
		return errors.RoutingMiss("no datasource registered for %s", key)
	}
	dialect, err := gooseDialect(event.DbType)
	if err != nil {
		log.Warn("skipping migrations for tenant %s: %v", event.TenantCode, err)
		return nil
	}
	db := handle.DB()
	if event.Strategy == f.StrategySchema && event.DbType == f.DbTypePostgres {
		db, err = lh.pools.Build(PoolConfig{
			Name:     "MigrationPool_" + event.TenantCode,
			DbType:   event.DbType,
			Url:      event.DatabaseUrl,
			Username: event.Username,
			Password: event.Password,
			Eager:    true,
		})
		if err != nil {
			return err
		}
		defer db.Close()
		if _, err := db.Exec(fmt.Sprintf(`SET search_path TO "%s"`, schema)); err != nil {
			return errors.Provisioning(err, "failed to set search path for tenant %s", event.TenantCode)
		}
	}
	goose.SetBaseFS(lh.cfg.MigrationFS)
	goose.SetTableName("database_changelog")
	if err := goose.SetDialect(dialect); err != nil {
		return errors.Provisioning(err, "failed to set migration dialect")
	}
	if err := goose.Up(db, "db/migrations/tenant", goose.WithAllowMissing()); err != nil {
		return errors.Provisioning(err, "failed to run migrations for tenant %s", event.TenantCode)
	}
	log.Info("migrations completed for tenant %s", event.TenantCode)
	return nil
}

// bootstrapUrlFor derives a connection URL that does not require the target
// schema to exist yet.
func bootstrapUrlFor(event f.TenantDataSourceEvent) (string, error) {
	switch event.DbType {
	case f.DbTypeMysql:
		// the tenant database may not exist yet; information_schema always does
		return h.ReplaceUrlDatabase(event.DatabaseUrl, "information_schema")
	default:
		// postgres creates the schema inside the database the URL already
		// names, which is expected to exist
		return event.DatabaseUrl, nil
	}
}

func gooseDialect(dbType f.DbType) (string, error) {
	switch dbType {
	case f.DbTypeMysql:
		return "mysql", nil
	case f.DbTypePostgres:
		return "postgres", nil
	case f.DbTypeSqlite:
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("no migration dialect for %s", dbType)
	}
}
