package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/loyalty/pkg/tenantctx"
)

const tenantHeader = "X-Tenant-Id"

// TenantContext resolves the acting tenant from the request header and
// stamps it onto the request context. Requests without a header fall back
// to the configured default tenant; requests with a malformed header are
// rejected before reaching a handler.
func (s *Server) TenantContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(tenantHeader))

		tenantID := snowflake.ID(s.cfg.DefaultTenantID)
		if raw != "" {
			parsed, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || parsed <= 0 {
				AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "invalid tenant id"))
				return
			}
			tenantID = snowflake.ID(parsed)
		}

		if tenantID == 0 {
			AbortWithError(c, newValidationError("tenant_id", "invalid_tenant", "tenant id is required"))
			return
		}

		ctx := tenantctx.WithTenantID(c.Request.Context(), tenantID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
