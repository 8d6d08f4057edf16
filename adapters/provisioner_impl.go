package adapters

import (
	"context"
	"fmt"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/h"
	"github.com/kestrel-labs/tenancy-go/log"
)

// schemaProvisioner idempotently ensures a tenant schema or database exists
// before any pool is created against it. DDL runs on a bootstrap connection
// that never targets the schema being created.
type schemaProvisioner struct {
	cache h.Cache
	lock  f.ProvisioningLock
}

// NewSchemaProvisioner builds a provisioner. lock may be nil when lifecycle
// events are already serialized within a single process.
func NewSchemaProvisioner(lock f.ProvisioningLock) f.SchemaProvisioner {
	return &schemaProvisioner{
		cache: h.NewCache(),
		lock:  lock,
	}
}

func (p *schemaProvisioner) EnsureSchema(ctx context.Context, target f.BootstrapTarget, schemaName string) error {
	if !f.ValidSchemaName(schemaName) {
		return errors.Validation("invalid schema name: %s", schemaName)
	}
	cacheKey := target.Url + "|" + schemaName
	if _, ok := p.cache.Get(cacheKey); ok {
		return nil
	}
	if p.lock != nil {
		release, err := p.lock.Acquire(ctx, cacheKey)
		if err != nil {
			return errors.Provisioning(err, "failed to acquire provisioning lock for %s", schemaName)
		}
		defer release()
	}
	if err := p.ensure(ctx, target, schemaName); err != nil {
		return err
	}
	p.cache.Set(cacheKey, true)
	return nil
}

func (p *schemaProvisioner) ensure(ctx context.Context, target f.BootstrapTarget, schemaName string) error {
	switch target.DbType {
	case f.DbTypeSqlite:
		// sqlite has no schema objects to provision
		return nil
	case f.DbTypeMysql:
		return p.create(ctx, target, schemaName,
			"SELECT COUNT(*) FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?",
			fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_general_ci", schemaName))
	case f.DbTypePostgres:
		return p.create(ctx, target, schemaName,
			"SELECT COUNT(*) FROM information_schema.schemata WHERE schema_name = $1",
			fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS "%s"`, schemaName))
	case f.DbTypeOracle:
		// legacy path: tenant schemas are users on Oracle
		return p.create(ctx, target, schemaName,
			"SELECT COUNT(*) FROM ALL_USERS WHERE USERNAME = UPPER(:1)",
			fmt.Sprintf("CREATE USER %s IDENTIFIED BY %s DEFAULT TABLESPACE USERS", schemaName, schemaName))
	case f.DbTypeSqlServer:
		return p.create(ctx, target, schemaName,
			"SELECT COUNT(*) FROM sys.schemas WHERE name = @p1",
			fmt.Sprintf("CREATE SCHEMA %s", schemaName))
	default:
		return errors.Validation("unsupported dialect: %s", target.DbType)
	}
}

func (p *schemaProvisioner) create(ctx context.Context, target f.BootstrapTarget, schemaName string, existsQuery string, createStmt string) error {
	var count int
	if err := target.DB.QueryRowContext(ctx, existsQuery, schemaName).Scan(&count); err != nil {
		return errors.Provisioning(err, "failed to check existence of schema %s", schemaName)
	}
	if count > 0 {
		log.Debug("schema %s already exists, skipping creation", schemaName)
		return nil
	}
	if _, err := target.DB.ExecContext(ctx, createStmt); err != nil {
		return errors.Provisioning(err, "failed to create schema %s", schemaName)
	}
	log.Info("schema %s created", schemaName)
	return nil
}
