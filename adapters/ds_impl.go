package adapters

import (
	"context"
	"sync"

	"github.com/kestrel-labs/tenancy-go/config"
	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/log"
)

// MultiTenantDataSource owns the routing table and the lifecycle machinery
// around it. Request-scoped code resolves a tenant key here and never learns
// whether the connection came from a dedicated pool or a shared,
// schema-switched one.
type MultiTenantDataSource struct {
	cfg         f.DataSourceConfig
	registry    *Registry
	handler     f.LifecycleHandler
	provider    f.TenantProvider
	lock        f.ProvisioningLock
	mu          sync.RWMutex
	connections map[string]f.Connection
	dialects    map[string]f.DbType
}

func NewMultiTenantDS(cfg ...f.DataSourceConfig) *MultiTenantDataSource {
	ds := &MultiTenantDataSource{
		connections: make(map[string]f.Connection),
		dialects:    make(map[string]f.DbType),
	}
	if len(cfg) > 0 {
		ds.cfg = cfg[0]
	}
	return ds
}

// NewMultiTenantDSFromEnv builds a datasource from process configuration:
// the tenant provider, the provisioning lock and the pool sizing all come
// from the environment.
func NewMultiTenantDSFromEnv() (*MultiTenantDataSource, error) {
	settings := config.LoadSettings()
	ds := NewMultiTenantDS(f.DataSourceConfig{
		Prefix: settings.KeyPrefix,
		Pool:   settings.Pool,
	})
	if settings.TenantProvider != "" {
		provider, err := NewTenantProvider(settings.TenantProvider)
		if err != nil {
			return nil, err
		}
		ds.UseTenantProvider(provider)
	}
	if settings.RedisUrl != "" {
		client, err := NewRedisClient(settings.RedisUrl)
		if err != nil {
			return nil, err
		}
		ds.UseProvisioningLock(NewRedisProvisioningLock(client))
	}
	return ds, nil
}

func (ds *MultiTenantDataSource) UseTenantProvider(provider f.TenantProvider) *MultiTenantDataSource {
	ds.provider = provider
	return ds
}

func (ds *MultiTenantDataSource) UseProvisioningLock(lock f.ProvisioningLock) *MultiTenantDataSource {
	ds.lock = lock
	return ds
}

// Init wires the registry and lifecycle handler, replays every tenant known
// to the provider, and subscribes to tenant datasource events.
func (ds *MultiTenantDataSource) Init(ctx context.Context) error {
	ds.registry = NewRegistry()
	ds.handler = NewLifecycleHandler(ds.cfg, ds.registry, NewSchemaProvisioner(ds.lock), &PoolFactory{})

	if ds.provider != nil {
		tenants, err := ds.provider.Load(ctx)
		if err != nil {
			return err
		}
		for _, tenant := range tenants {
			event := tenantEvent(tenant)
			if err := ds.Apply(ctx, f.ActionInit, event); err != nil {
				return err
			}
			if err := ds.Apply(ctx, f.ActionAdd, event); err != nil {
				return err
			}
		}
		log.Info("multi tenant data source initialized with %d tenants", len(tenants))
	}

	f.OnEvent(ctx, f.TenantDataSourceTopic, func(data map[string]any) error {
		action, event, err := f.DecodeTenantEvent(data)
		if err != nil {
			return err
		}
		return ds.Apply(context.Background(), action, event)
	})
	return nil
}

// Apply feeds a lifecycle event through the handler and invalidates any
// cached ORM connection for that tenant.
func (ds *MultiTenantDataSource) Apply(ctx context.Context, action f.Action, event f.TenantDataSourceEvent) error {
	if err := ds.handler.Handle(ctx, action, event); err != nil {
		return err
	}
	ds.mu.Lock()
	delete(ds.connections, event.TenantCode)
	if action == f.ActionDel {
		delete(ds.dialects, event.TenantCode)
	} else {
		ds.dialects[event.TenantCode] = event.DbType
	}
	ds.mu.Unlock()
	return nil
}

// InitTenant is the compound onboarding operation: provision, register,
// then run the templated init scripts.
func (ds *MultiTenantDataSource) InitTenant(ctx context.Context, event f.TenantDataSourceEvent, variables map[string]any) error {
	if err := ds.handler.InitSqlScript(ctx, event, variables); err != nil {
		return err
	}
	ds.mu.Lock()
	delete(ds.connections, event.TenantCode)
	ds.dialects[event.TenantCode] = event.DbType
	ds.mu.Unlock()
	return nil
}

// ResolveConn checks out a connection for a tenant. Shared-schema tenants
// get a schema-switching wrapper; dedicated ones a raw pooled connection.
func (ds *MultiTenantDataSource) ResolveConn(ctx context.Context, tenantCode string) (f.PooledConn, error) {
	handle, ok := ds.registry.Get(f.RoutingKey(ds.cfg.Prefix, tenantCode))
	if !ok {
		return nil, errors.RoutingMiss("no datasource registered for tenant %s", tenantCode)
	}
	return handle.Acquire(ctx)
}

// Connection returns the ORM-facing surface for a tenant, or nil when the
// tenant is not registered.
func (ds *MultiTenantDataSource) Connection(tenantCode string) f.Connection {
	ds.mu.RLock()
	cnx, ok := ds.connections[tenantCode]
	ds.mu.RUnlock()
	if ok {
		return cnx
	}
	handle, ok := ds.registry.Get(f.RoutingKey(ds.cfg.Prefix, tenantCode))
	if !ok {
		return nil
	}
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if cnx, ok := ds.connections[tenantCode]; ok {
		return cnx
	}
	dbType, ok := ds.dialects[tenantCode]
	if !ok {
		return nil
	}
	cnx, err := NewRoutedConnection(tenantCode, dbType, handle)
	if err != nil {
		log.Error("failed to build connection for tenant %s: %v", tenantCode, err)
		return nil
	}
	ds.connections[tenantCode] = cnx
	return cnx
}

func (ds *MultiTenantDataSource) Registry() *Registry {
	return ds.registry
}

func (ds *MultiTenantDataSource) Shutdown(ctx context.Context) {
	ds.registry.Shutdown()
	ds.mu.Lock()
	ds.connections = make(map[string]f.Connection)
	ds.dialects = make(map[string]f.DbType)
	ds.mu.Unlock()
}

func tenantEvent(tenant f.Tenant) f.TenantDataSourceEvent {
	return f.TenantDataSourceEvent{
		TenantCode:  tenant.ID,
		DbType:      tenant.DbType,
		DatabaseUrl: tenant.DatabaseUrl,
		SchemaName:  tenant.SchemaName,
		Strategy:    tenant.Strategy,
	}
}
