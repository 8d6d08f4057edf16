package test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/go-faker/faker/v4"
	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/h"
)

type Helper struct {
	Context   context.Context
	Assert    Assertions
	Server    *httptest.Server
	Http      *RestClient
	openFiles []string
	rootDir   string
}

func New(t *testing.T) *Helper {
	t.Helper()
	return &Helper{
		Context:   context.TODO(),
		Assert:    NewAssertions(t),
		openFiles: []string{},
		rootDir:   ProjectRoot(t),
	}
}

// Serve exposes a handler through a test server and points the rest client
// at it.
func (t *Helper) Serve(tt *testing.T, handler http.Handler) {
	tt.Helper()
	t.Server = httptest.NewServer(handler)
	t.Http = NewRestClient(tt, t.Server.URL)
}

func (t *Helper) FilePath(p string) string {
	return path.Join(t.rootDir, p)
}

func (t *Helper) TearDown() {
	if t.Server != nil {
		t.Server.Close()
	}
	for _, file := range t.openFiles {
		_ = os.Remove(file)
	}
}

func (t *Helper) RegisterFile(file string) {
	t.openFiles = append(t.openFiles, file)
}

// SqliteUrl returns a throwaway file-backed sqlite URL, removed at TearDown.
func (t *Helper) SqliteUrl(tt *testing.T) string {
	tt.Helper()
	file := filepath.Join(tt.TempDir(), "tenant-"+h.RandomString(6)+".db")
	t.RegisterFile(file)
	return "sqlite://" + file
}

// NewTenantEvent builds a plausible lifecycle event for a sqlite-backed
// tenant. Fields can be overridden by the caller afterwards.
func (t *Helper) NewTenantEvent(tt *testing.T) f.TenantDataSourceEvent {
	tt.Helper()
	return f.TenantDataSourceEvent{
		TenantCode:  fmt.Sprintf("t_%s", h.RandomString(8)),
		DbType:      f.DbTypeSqlite,
		DatabaseUrl: t.SqliteUrl(tt),
		Strategy:    f.StrategyDatabase,
	}
}

// FakeTenant fills the display fields with generated data.
func (t *Helper) FakeTenant(tt *testing.T) f.Tenant {
	tt.Helper()
	return f.Tenant{
		ID:          fmt.Sprintf("t_%s", h.RandomString(8)),
		Slug:        faker.Username(),
		Name:        faker.Name(),
		DbType:      f.DbTypeSqlite,
		DatabaseUrl: t.SqliteUrl(tt),
		Strategy:    f.StrategyDatabase,
	}
}
