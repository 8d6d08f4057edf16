package f

import (
	"testing"

	"github.com/kestrel-labs/tenancy-go/errors"
	"github.com/onsi/gomega"
)

func TestTenantDataSourceEventValidate(t *testing.T) {
	g := gomega.NewWithT(t)

	valid := TenantDataSourceEvent{
		TenantCode:  "tenant_a",
		DbType:      DbTypePostgres,
		DatabaseUrl: "postgres://db/app",
		SchemaName:  "tenant_a",
		Strategy:    StrategySchema,
	}
	g.Expect(valid.Validate()).To(gomega.BeNil())

	cases := []struct {
		name  string
		event TenantDataSourceEvent
	}{
		{"missing tenant code", TenantDataSourceEvent{DbType: DbTypePostgres, DatabaseUrl: "postgres://db/app"}},
		{"missing database url", TenantDataSourceEvent{TenantCode: "tenant_a", DbType: DbTypePostgres}},
		{"unknown dialect", TenantDataSourceEvent{TenantCode: "tenant_a", DbType: "db2", DatabaseUrl: "db2://db/app"}},
		{"tenant code with spaces", TenantDataSourceEvent{TenantCode: "tenant a", DbType: DbTypePostgres, DatabaseUrl: "postgres://db/app"}},
		{"schema with quotes", TenantDataSourceEvent{TenantCode: "tenant_a", DbType: DbTypePostgres, DatabaseUrl: "postgres://db/app", SchemaName: `x";DROP`}},
		{"schema strategy without schema", TenantDataSourceEvent{TenantCode: "tenant_a", DbType: DbTypePostgres, DatabaseUrl: "postgres://db/app", Strategy: StrategySchema}},
	}
	for _, tc := range cases {
		err := tc.event.Validate()
		g.Expect(err).NotTo(gomega.BeNil(), tc.name)
		g.Expect(errors.IsKind(err, errors.KindValidation)).To(gomega.BeTrue(), tc.name)
	}
}

func TestValidSchemaName(t *testing.T) {
	g := gomega.NewWithT(t)

	g.Expect(ValidSchemaName("tenant_a")).To(gomega.BeTrue())
	g.Expect(ValidSchemaName("Tenant-42")).To(gomega.BeTrue())
	g.Expect(ValidSchemaName("")).To(gomega.BeFalse())
	g.Expect(ValidSchemaName("tenant a")).To(gomega.BeFalse())
	g.Expect(ValidSchemaName(`tenant";--`)).To(gomega.BeFalse())
	g.Expect(ValidSchemaName("tenant.a")).To(gomega.BeFalse())
}

func TestSharedPoolKey(t *testing.T) {
	g := gomega.NewWithT(t)

	a := TenantDataSourceEvent{DatabaseUrl: "postgres://db/app", Username: "admin"}
	b := TenantDataSourceEvent{DatabaseUrl: "postgres://db/app", Username: "admin"}
	c := TenantDataSourceEvent{DatabaseUrl: "postgres://db/app", Username: "reporting"}

	g.Expect(a.SharedPoolKey()).To(gomega.Equal(b.SharedPoolKey()))
	g.Expect(a.SharedPoolKey()).NotTo(gomega.Equal(c.SharedPoolKey()))
}

func TestRoutingKey(t *testing.T) {
	g := gomega.NewWithT(t)
	g.Expect(RoutingKey("ds_", "tenant_a")).To(gomega.Equal("ds_tenant_a"))
	g.Expect(RoutingKey("", "tenant_a")).To(gomega.Equal("tenant_a"))
}

func TestDecodeTenantEvent(t *testing.T) {
	g := gomega.NewWithT(t)

	typed := TenantDataSourceEvent{
		TenantCode:  "tenant_a",
		DbType:      DbTypePostgres,
		DatabaseUrl: "postgres://db/app",
	}
	action, event, err := DecodeTenantEvent(map[string]any{
		"action": "ADD",
		"event":  typed,
	})
	g.Expect(err).To(gomega.BeNil())
	g.Expect(action).To(gomega.Equal(ActionAdd))
	g.Expect(event).To(gomega.Equal(typed))

	// plain map payload, as it would arrive off a broker
	action, event, err = DecodeTenantEvent(map[string]any{
		"action": "DEL",
		"event": map[string]any{
			"tenant_code":  "tenant_b",
			"db_type":      "mysql",
			"database_url": "mysql://db/app",
		},
	})
	g.Expect(err).To(gomega.BeNil())
	g.Expect(action).To(gomega.Equal(ActionDel))
	g.Expect(event.TenantCode).To(gomega.Equal("tenant_b"))
	g.Expect(event.DbType).To(gomega.Equal(DbTypeMysql))
}
