package adapters

import (
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kestrel-labs/tenancy-go/test"
)

const tenantFixture = `{
  "tenants": [
    {"id": "tenant_a", "slug": "acme", "name": "Acme", "db_type": "sqlite", "database_url": "sqlite:///tmp/acme.db"},
    {"id": "tenant_b", "slug": "globex", "name": "Globex", "db_type": "postgresql", "database_url": "postgres://db/globex", "schema_name": "globex", "strategy": "SCHEMA"}
  ]
}`

func TestFileTenantProvider(t *testing.T) {
	helper := test.New(t)
	defer helper.TearDown()
	assert := helper.Assert

	file := filepath.Join(t.TempDir(), "tenants.json")
	assert.Nil(os.WriteFile(file, []byte(tenantFixture), 0600))

	provider, err := NewTenantProvider("file://" + file)
	assert.Nil(err)

	tenants, err := provider.Load(helper.Context)
	assert.Nil(err)
	assert.Len(tenants, 2)

	tenant, err := provider.GetTenant(helper.Context, "tenant_b")
	assert.Nil(err)
	assert.NotNil(tenant)
	assert.Equals(tenant.SchemaName, "globex")

	// slugs resolve too
	tenant, err = provider.GetTenant(helper.Context, "acme")
	assert.Nil(err)
	assert.NotNil(tenant)
	assert.Equals(tenant.ID, "tenant_a")

	tenant, err = provider.GetTenant(helper.Context, "ghost")
	assert.Nil(err)
	assert.True(tenant == nil)
}

func TestFileTenantProviderExpandsRandomPlaceholder(t *testing.T) {
	helper := test.New(t)
	defer helper.TearDown()
	assert := helper.Assert

	file := filepath.Join(t.TempDir(), "tenants.json")
	content := `{"tenants": [{"id": "tenant_a", "db_type": "sqlite", "database_url": "sqlite:///tmp/db_%RANDOM%.db"}]}`
	assert.Nil(os.WriteFile(file, []byte(content), 0600))

	provider, err := NewTenantProvider("file://" + file)
	assert.Nil(err)

	tenant, err := provider.GetTenant(helper.Context, "tenant_a")
	assert.Nil(err)
	assert.NotNil(tenant)
	assert.False(tenant.DatabaseUrl == "sqlite:///tmp/db_%RANDOM%.db")
}

func TestBase64TenantProvider(t *testing.T) {
	helper := test.New(t)
	defer helper.TearDown()
	assert := helper.Assert

	encoded := base64.StdEncoding.EncodeToString([]byte(tenantFixture))
	provider, err := NewTenantProvider("base64:" + encoded)
	assert.Nil(err)

	tenants, err := provider.Load(helper.Context)
	assert.Nil(err)
	assert.Len(tenants, 2)
}

func TestBase64TenantProviderRejectsGarbage(t *testing.T) {
	assert := test.NewAssertions(t)

	_, err := NewTenantProvider("base64:!!!not-base64!!!")
	assert.NotNil(err)
}

func TestHttpTenantProvider(t *testing.T) {
	helper := test.New(t)
	defer helper.TearDown()
	assert := helper.Assert

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(tenantFixture))
	}))
	defer server.Close()

	provider, err := NewTenantProvider(server.URL)
	assert.Nil(err)

	tenants, err := provider.Load(helper.Context)
	assert.Nil(err)
	assert.Len(tenants, 2)

	tenant, err := provider.GetTenant(helper.Context, "tenant_a")
	assert.Nil(err)
	assert.NotNil(tenant)
}

func TestHttpTenantProviderBareArray(t *testing.T) {
	helper := test.New(t)
	defer helper.TearDown()
	assert := helper.Assert

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id": "tenant_a", "db_type": "sqlite", "database_url": "sqlite:///tmp/a.db"}]`))
	}))
	defer server.Close()

	provider, err := NewTenantProvider(server.URL)
	assert.Nil(err)

	tenants, err := provider.Load(helper.Context)
	assert.Nil(err)
	assert.Len(tenants, 1)
}

func TestNewTenantProviderUnsupportedScheme(t *testing.T) {
	assert := test.NewAssertions(t)

	_, err := NewTenantProvider("ftp://tenants.example.com")
	assert.NotNil(err)
}
