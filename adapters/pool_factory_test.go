package adapters

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/kestrel-labs/tenancy-go/test"
)

func TestPoolFactoryRejectsUnknownDialect(t *testing.T) {
	assert := test.NewAssertions(t)

	factory := &PoolFactory{}
	_, err := factory.Build(PoolConfig{
		Name:   "BadPool",
		DbType: "db2",
		Url:    "db2://host/app",
	})
	assert.ErrorKind(err, errors.KindPoolCreation)
}

func TestPoolFactoryAppliesPoolOptions(t *testing.T) {
	assert := test.NewAssertions(t)

	factory := &PoolFactory{Open: func(cfg PoolConfig) (*sql.DB, error) {
		db, _, err := sqlmock.New()
		return db, err
	}}
	db, err := factory.Build(PoolConfig{
		Name:   "TenantPool",
		DbType: f.DbTypePostgres,
		Url:    "postgres://host/app",
		Options: f.PoolOptions{
			MaxOpenConns:    5,
			MaxIdleConns:    2,
			ConnMaxLifetime: time.Minute,
		},
	})
	assert.Nil(err)
	defer db.Close()
	assert.Equals(db.Stats().MaxOpenConnections, 5)
}

func TestPoolFactoryEagerPingFailure(t *testing.T) {
	assert := test.NewAssertions(t)

	factory := &PoolFactory{Open: func(cfg PoolConfig) (*sql.DB, error) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			return nil, err
		}
		mock.ExpectPing().WillReturnError(context.DeadlineExceeded)
		mock.ExpectClose()
		return db, nil
	}}
	_, err := factory.Build(PoolConfig{
		Name:   "BootstrapPool",
		DbType: f.DbTypePostgres,
		Url:    "postgres://host/app",
		Eager:  true,
	})
	assert.ErrorKind(err, errors.KindPoolCreation)
}

func TestDedicatedPoolAcquire(t *testing.T) {
	assert := test.NewAssertions(t)
	ctx := context.Background()

	sqldb, mock, err := sqlmock.New()
	assert.Nil(err)

	pool := NewDedicatedPool("PoolA", sqldb)
	assert.Equals(pool.Name(), "PoolA")
	assert.Equals(pool.PoolKey(), "")

	conn, err := pool.Acquire(ctx)
	assert.Nil(err)
	assert.Nil(conn.Close())

	mock.ExpectClose()
	assert.Nil(pool.Close())
	assert.Nil(mock.ExpectationsWereMet())
}
