package adapters

import (
	"net/http"
	"strings"

	f "github.com/kestrel-labs/tenancy-go/core"
	"github.com/kestrel-labs/tenancy-go/log"
	"github.com/labstack/echo/v4"
)

const tenantIdKey = "tenantId"
const connectionKey = "connection"

// TenantMiddleware resolves the tenant from the request (path param, query
// param, then X-TenantId header), routes it through the datasource and makes
// the connection available to handlers.
func TenantMiddleware(ds *MultiTenantDataSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tenantId := c.Param("tenant")
			if tenantId == "" {
				tenantId = c.QueryParam("tid")
			}
			if tenantId == "" {
				tenantId = c.Request().Header.Get("X-TenantId")
			}
			if tenantId == "" {
				return echo.NewHTTPError(http.StatusBadRequest, "TENANT_REQUIRED")
			}
			cnx := ds.Connection(tenantId)
			if cnx == nil {
				tenantId = strings.ToLower(tenantId)
				cnx = ds.Connection(tenantId)
			}
			if cnx == nil {
				log.Warn("request for unknown tenant: %s", tenantId)
				return echo.NewHTTPError(http.StatusBadRequest, "INVALID_TENANT")
			}
			c.Set(tenantIdKey, tenantId)
			c.Set(connectionKey, cnx)
			return next(c)
		}
	}
}

func CurrentTenant(c echo.Context) string {
	tenantId, _ := c.Get(tenantIdKey).(string)
	return tenantId
}

func CurrentConnection(c echo.Context) f.Connection {
	cnx, _ := c.Get(connectionKey).(f.Connection)
	return cnx
}
