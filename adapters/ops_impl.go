package adapters

import (
	"context"
	"net/http"
	"time"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/log"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// OpsServer exposes the operational surface of a multi tenant datasource:
// liveness of every registered pool and the current routing table.
type OpsServer struct {
	service  string
	ds       *MultiTenantDataSource
	internal *echo.Echo
}

type tenantPoolInfo struct {
	RoutingKey string `json:"routing_key"`
	PoolKey    string `json:"pool_key,omitempty"`
	Shared     bool   `json:"shared"`
	OpenConns  int    `json:"open_conns"`
	InUse      int    `json:"in_use"`
	Idle       int    `json:"idle"`
}

func NewOpsServer(service string, ds *MultiTenantDataSource) *OpsServer {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())

	s := &OpsServer{service: service, ds: ds, internal: e}
	e.GET("/healthz", s.healthz)
	e.GET("/tenants", s.tenants)
	return s
}

func (s *OpsServer) healthz(c echo.Context) error {
	hc := f.NewHealthCheck(s.service)
	registry := s.ds.Registry()
	for _, key := range registry.Keys() {
		handle, ok := registry.Get(key)
		if !ok {
			continue
		}
		hc.Add(handle.Name(), func() error {
			ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
			defer cancel()
			return handle.DB().PingContext(ctx)
		})
	}
	res := hc.Build()
	code := http.StatusOK
	if res.Status != f.StatusUp {
		code = http.StatusServiceUnavailable
	}
	return c.JSON(code, res)
}

func (s *OpsServer) tenants(c echo.Context) error {
	registry := s.ds.Registry()
	out := []tenantPoolInfo{}
	for _, key := range registry.Keys() {
		handle, ok := registry.Get(key)
		if !ok {
			continue
		}
		stats := handle.DB().Stats()
		out = append(out, tenantPoolInfo{
			RoutingKey: key,
			PoolKey:    handle.PoolKey(),
			Shared:     handle.PoolKey() != "",
			OpenConns:  stats.OpenConnections,
			InUse:      stats.InUse,
			Idle:       stats.Idle,
		})
	}
	return c.JSON(http.StatusOK, out)
}

func (s *OpsServer) Handler() http.Handler {
	return s.internal
}

func (s *OpsServer) Start(addr string) error {
	log.Info("ops server listening on %s", addr)
	return s.internal.Start(addr)
}

func (s *OpsServer) Shutdown(ctx context.Context) error {
	return s.internal.Shutdown(ctx)
}
