package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"github.com/tilver/backend/internal/interfaces/http/dto"
)

// gin.Context keys set by Tenant
const (
	TenantIDKey = "tenant_id"
	ActorKey    = "actor"
)

// TenantConfig holds configuration for the tenant middleware
type TenantConfig struct {
	// SkipPaths are served without tenant headers
	SkipPaths []string
	// ActorRequired rejects requests without X-User-ID. When false, such
	// requests may only read.
	ActorRequired bool
}

// DefaultTenantConfig returns the tenant middleware defaults
func DefaultTenantConfig() TenantConfig {
	return TenantConfig{
		SkipPaths:     []string{"/health", "/api/v1/health", "/swagger"},
		ActorRequired: false,
	}
}

// Tenant reads the tenant scope from X-Tenant-ID and the acting user from
// X-User-ID. Both must be UUIDs. Writes always need an actor.
func Tenant(cfg TenantConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		raw := c.GetHeader(TenantHeader)
		if raw == "" {
			abortWithCode(c, dto.ErrCodeMissingTenant, TenantHeader+" header is required")
			return
		}
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			abortWithCode(c, dto.ErrCodeMissingTenant, TenantHeader+" must be a UUID")
			return
		}

		ctx := c.Request.Context()
		ctx, log := logger.WithTenantID(ctx, logger.FromContext(ctx), tenantID)
		c.Set(TenantIDKey, tenantID)

		if rawUser := c.GetHeader(UserHeader); rawUser != "" {
			userID, err := uuid.Parse(rawUser)
			if err != nil || userID == uuid.Nil {
				abortWithCode(c, dto.ErrCodeMissingActor, UserHeader+" must be a non-nil UUID")
				return
			}
			actor := shared.NewUserActor(userID)
			ctx, _ = logger.WithActor(ctx, log, actor)
			c.Set(ActorKey, actor)
		} else if cfg.ActorRequired || isWrite(c.Request.Method) {
			abortWithCode(c, dto.ErrCodeMissingActor, UserHeader+" header is required")
			return
		}

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func isWrite(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH", "DELETE":
		return true
	}
	return false
}

func abortWithCode(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(
		code, message, logger.GetRequestID(c.Request.Context())))
}

// GetTenantUUID returns the tenant set by Tenant, or uuid.Nil
func GetTenantUUID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get(TenantIDKey); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
	}
	return uuid.Nil
}

// GetActor returns the user actor set by Tenant
func GetActor(c *gin.Context) (shared.Actor, bool) {
	if v, ok := c.Get(ActorKey); ok {
		if actor, ok := v.(shared.Actor); ok {
			return actor, true
		}
	}
	return shared.Actor{}, false
}
