package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/h"
	"github.com/kestrel-labs/tenancy-go/log"
	"github.com/tidwall/gjson"
)

func NewTenantProvider(provider string) (f.TenantProvider, error) {
	if strings.HasPrefix(provider, "base64:") {
		log.Info("using base64 tenant provider")
		return NewBase64TenantProvider(strings.TrimPrefix(provider, "base64:"))
	}

	res, err := h.ParseUrl(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant provider: %v", err)
	}
	if res.Scheme == "file" {
		log.Info("using file tenant provider: %s", res.Url)
		return NewFileTenantProvider(res)
	}
	if res.Scheme == "https" || res.Scheme == "http" {
		log.Info("using http tenant provider: %s", res.Url)
		return NewHttpTenantProvider(res), nil
	}
	return nil, fmt.Errorf("unsupported tenant provider: %s", res.Scheme)
}

func MustNewTenantProvider(provider string) f.TenantProvider {
	tp, err := NewTenantProvider(provider)
	if err != nil {
		panic(err)
	}
	return tp
}

func indexTenants(tenants []f.Tenant) map[string]f.Tenant {
	out := make(map[string]f.Tenant)
	for _, tenant := range tenants {
		databaseUrl := strings.Replace(tenant.DatabaseUrl, "%RANDOM%", h.RandomString(5), 1)
		tenant.DatabaseUrl = databaseUrl
		out[tenant.ID] = tenant
		if tenant.Slug != "" {
			out[tenant.Slug] = tenant
		}
	}
	return out
}

// ------------------------------------------------------------------------------------------------------------------
// FILE TENANT PROVIDER IMPL
// ------------------------------------------------------------------------------------------------------------------

type FileTenantProvider struct {
	tenants map[string]f.Tenant
}

func NewFileTenantProvider(cfg h.Url) (f.TenantProvider, error) {
	bytes, err := os.ReadFile(strings.TrimPrefix(cfg.Url, "file://"))
	if err != nil {
		return nil, fmt.Errorf("error reading tenant file: %v", err)
	}

	var content f.TenantList
	if err := json.Unmarshal(bytes, &content); err != nil {
		return nil, fmt.Errorf("error parsing tenant file: %v", err)
	}

	log.Info("file tenant provider initialized with %d tenants", len(content.Tenants))
	return &FileTenantProvider{
		tenants: indexTenants(content.Tenants),
	}, nil
}

func (tp *FileTenantProvider) Load(ctx context.Context) ([]f.Tenant, error) {
	tenants := []f.Tenant{}
	seen := map[string]bool{}
	for _, tenant := range tp.tenants {
		if seen[tenant.ID] {
			continue
		}
		seen[tenant.ID] = true
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

func (tp *FileTenantProvider) GetTenant(ctx context.Context, id string) (*f.Tenant, error) {
	if tenant, ok := tp.tenants[id]; ok {
		return &tenant, nil
	}
	return nil, nil
}

// ------------------------------------------------------------------------------------------------------------------
// HTTP TENANT PROVIDER IMPL
// ------------------------------------------------------------------------------------------------------------------

type HttpTenantProvider struct {
	tenants map[string]f.Tenant
	target  string
	bearer  string
	client  *resty.Client
	cache   h.Cache
}

func NewHttpTenantProvider(cfg h.Url) f.TenantProvider {
	return &HttpTenantProvider{
		bearer:  cfg.User,
		target:  cfg.Url,
		client:  resty.New(),
		tenants: make(map[string]f.Tenant),
		cache:   h.DefaultCache(),
	}
}

func (tp *HttpTenantProvider) Load(ctx context.Context) ([]f.Tenant, error) {
	resp, err := tp.client.R().
		SetContext(ctx).
		SetAuthToken(tp.bearer).
		Get(tp.target)
	if err != nil {
		log.Error("failed to load tenants: %v", err)
		return nil, err
	}

	// Accept either {"tenants": [...]} or a bare array.
	body := string(resp.Body())
	raw := gjson.Get(body, "tenants")
	if !raw.Exists() {
		raw = gjson.Parse(body)
	}
	var tenants []f.Tenant
	if err := json.Unmarshal([]byte(raw.Raw), &tenants); err != nil {
		return nil, fmt.Errorf("error parsing tenant list: %v", err)
	}

	tp.cache.Set("tenants", tenants)
	log.Info("[http-tenant] %d tenants loaded", len(tenants))
	for id, tenant := range indexTenants(tenants) {
		tp.tenants[id] = tenant
	}
	return tenants, nil
}

func (tp *HttpTenantProvider) GetTenant(ctx context.Context, id string) (*f.Tenant, error) {
	if tenant, ok := tp.tenants[id]; ok {
		return &tenant, nil
	}
	if _, err := tp.Load(ctx); err != nil {
		return nil, err
	}
	if tenant, ok := tp.tenants[id]; ok {
		return &tenant, nil
	}
	return nil, nil
}

// ------------------------------------------------------------------------------------------------------------------
// BASE64 TENANT PROVIDER IMPL
// ------------------------------------------------------------------------------------------------------------------

type Base64TenantProvider struct {
	tenants map[string]f.Tenant
}

func NewBase64TenantProvider(cfg string) (f.TenantProvider, error) {
	decoded, err := base64.StdEncoding.DecodeString(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 tenants: %v", err)
	}
	var tenants f.TenantList
	if err := json.Unmarshal(decoded, &tenants); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tenants: %v", err)
	}
	return &Base64TenantProvider{
		tenants: indexTenants(tenants.Tenants),
	}, nil
}

func (tp *Base64TenantProvider) Load(ctx context.Context) ([]f.Tenant, error) {
	tenants := []f.Tenant{}
	seen := map[string]bool{}
	for _, tenant := range tp.tenants {
		if seen[tenant.ID] {
			continue
		}
		seen[tenant.ID] = true
		tenants = append(tenants, tenant)
	}
	return tenants, nil
}

func (tp *Base64TenantProvider) GetTenant(ctx context.Context, id string) (*f.Tenant, error) {
	if tenant, ok := tp.tenants[id]; ok {
		return &tenant, nil
	}
	return nil, nil
}
