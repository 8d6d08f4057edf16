package adapters

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/test"
)

func TestRegistryPutAndGet(t *testing.T) {
	assert := test.NewAssertions(t)

	db, _, err := sqlmock.New()
	assert.Nil(err)
	registry := NewRegistry()
	registry.Put("tenant_a", NewDedicatedPool("PoolA", db))

	handle, ok := registry.Get("tenant_a")
	assert.True(ok)
	assert.Equals(handle.Name(), "PoolA")
	assert.Equals(handle.PoolKey(), "")
	assert.Len(registry.Keys(), 1)

	_, ok = registry.Get("tenant_b")
	assert.False(ok)
}

func TestRegistryPutReplacesAndClosesPrevious(t *testing.T) {
	assert := test.NewAssertions(t)

	oldDb, oldMock, err := sqlmock.New()
	assert.Nil(err)
	newDb, _, err := sqlmock.New()
	assert.Nil(err)
	oldMock.ExpectClose()

	registry := NewRegistry()
	registry.Put("tenant_a", NewDedicatedPool("PoolA_v1", oldDb))
	registry.Put("tenant_a", NewDedicatedPool("PoolA_v2", newDb))

	handle, ok := registry.Get("tenant_a")
	assert.True(ok)
	assert.Equals(handle.Name(), "PoolA_v2")
	assert.Len(registry.Keys(), 1)
	assert.Nil(oldMock.ExpectationsWereMet())
}

func TestRegistryRemoveClosesDedicatedPool(t *testing.T) {
	assert := test.NewAssertions(t)

	sqldb, mock, err := sqlmock.New()
	assert.Nil(err)
	mock.ExpectClose()

	registry := NewRegistry()
	registry.Put("tenant_a", NewDedicatedPool("PoolA", sqldb))

	handle := registry.Remove("tenant_a")
	assert.NotNil(handle)
	assert.Len(registry.Keys(), 0)
	assert.Nil(mock.ExpectationsWereMet())

	assert.True(registry.Remove("tenant_a") == nil)
}

func TestRegistrySharedPoolRefCounting(t *testing.T) {
	assert := test.NewAssertions(t)

	sqldb, mock, err := sqlmock.New()
	assert.Nil(err)

	registry := NewRegistry()
	registry.Put("tenant_a", NewSharedSchemaPool("PoolA", sqldb, "pg://host|admin", "tenant_a", f.DbTypePostgres))
	registry.Put("tenant_b", NewSharedSchemaPool("PoolB", sqldb, "pg://host|admin", "tenant_b", f.DbTypePostgres))

	assert.Equals(registry.SharedRefs("pg://host|admin"), 2)

	// removing one tenant must not close the pool the other still uses
	registry.Remove("tenant_a")
	assert.Equals(registry.SharedRefs("pg://host|admin"), 1)
	_, alive := registry.SharedPool("pg://host|admin")
	assert.True(alive)

	mock.ExpectClose()
	registry.Remove("tenant_b")
	assert.Equals(registry.SharedRefs("pg://host|admin"), 0)
	_, alive = registry.SharedPool("pg://host|admin")
	assert.False(alive)
	assert.Nil(mock.ExpectationsWereMet())
}

func TestRegistryPutSameKeySharedPoolSurvives(t *testing.T) {
	assert := test.NewAssertions(t)

	sqldb, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	assert.Nil(err)

	registry := NewRegistry()
	registry.Put("tenant_a", NewSharedSchemaPool("PoolA", sqldb, "pg://host|admin", "tenant_a", f.DbTypePostgres))
	// a replayed registration for the sole tenant on the pool must not drive
	// the refcount through zero and close the pool out from under it
	registry.Put("tenant_a", NewSharedSchemaPool("PoolA", sqldb, "pg://host|admin", "tenant_a", f.DbTypePostgres))

	assert.Equals(registry.SharedRefs("pg://host|admin"), 1)
	mock.ExpectPing()
	assert.Nil(sqldb.Ping())

	mock.ExpectClose()
	registry.Remove("tenant_a")
	assert.Nil(mock.ExpectationsWereMet())
}

func TestRegistryShutdownClosesEverything(t *testing.T) {
	assert := test.NewAssertions(t)

	dedicated, dedicatedMock, err := sqlmock.New()
	assert.Nil(err)
	shared, sharedMock, err := sqlmock.New()
	assert.Nil(err)
	dedicatedMock.ExpectClose()
	sharedMock.ExpectClose()

	registry := NewRegistry()
	registry.Put("tenant_a", NewDedicatedPool("PoolA", dedicated))
	registry.Put("tenant_b", NewSharedSchemaPool("PoolB", shared, "pg://host|admin", "tenant_b", f.DbTypePostgres))
	registry.Put("tenant_c", NewSharedSchemaPool("PoolC", shared, "pg://host|admin", "tenant_c", f.DbTypePostgres))

	registry.Shutdown()
	assert.Len(registry.Keys(), 0)
	assert.Nil(dedicatedMock.ExpectationsWereMet())
	assert.Nil(sharedMock.ExpectationsWereMet())
}
