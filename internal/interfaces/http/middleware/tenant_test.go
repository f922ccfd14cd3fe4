package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"github.com/tilver/backend/internal/interfaces/http/dto"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func tenantRouter() *gin.Engine {
	r := gin.New()
	r.Use(Tenant(DefaultTenantConfig()))
	echo := func(c *gin.Context) {
		actor, _ := shared.ActorFromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{
			"tenant":     GetTenantUUID(c).String(),
			"ctx_tenant": logger.GetTenantID(c.Request.Context()).String(),
			"actor":      actor.String(),
		})
	}
	r.GET("/api/v1/invoices", echo)
	r.POST("/api/v1/invoices", echo)
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestTenant(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	tests := []struct {
		name       string
		method     string
		path       string
		tenant     string
		user       string
		wantStatus int
		wantCode   string
	}{
		{"read with tenant only", http.MethodGet, "/api/v1/invoices", tenantID.String(), "", http.StatusOK, ""},
		{"write with actor", http.MethodPost, "/api/v1/invoices", tenantID.String(), userID.String(), http.StatusOK, ""},
		{"missing tenant", http.MethodGet, "/api/v1/invoices", "", "", http.StatusBadRequest, dto.ErrCodeMissingTenant},
		{"malformed tenant", http.MethodGet, "/api/v1/invoices", "acme", "", http.StatusBadRequest, dto.ErrCodeMissingTenant},
		{"nil tenant", http.MethodGet, "/api/v1/invoices", uuid.Nil.String(), "", http.StatusBadRequest, dto.ErrCodeMissingTenant},
		{"write without actor", http.MethodPost, "/api/v1/invoices", tenantID.String(), "", http.StatusBadRequest, dto.ErrCodeMissingActor},
		{"nil actor is reserved", http.MethodPost, "/api/v1/invoices", tenantID.String(), uuid.Nil.String(), http.StatusBadRequest, dto.ErrCodeMissingActor},
		{"health skips headers", http.MethodGet, "/health", "", "", http.StatusOK, ""},
	}

	r := tenantRouter()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.tenant != "" {
				req.Header.Set(TenantHeader, tt.tenant)
			}
			if tt.user != "" {
				req.Header.Set(UserHeader, tt.user)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode == "" {
				return
			}
			var resp dto.Response
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestTenant_StoresScopeAndActor(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil)
	req.Header.Set(TenantHeader, tenantID.String())
	req.Header.Set(UserHeader, userID.String())
	w := httptest.NewRecorder()
	tenantRouter().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, tenantID.String(), body["tenant"])
	assert.Equal(t, tenantID.String(), body["ctx_tenant"])
	assert.Equal(t, "user:"+userID.String(), body["actor"])
}

func TestGetActor_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := GetActor(c)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, GetTenantUUID(c))
}
