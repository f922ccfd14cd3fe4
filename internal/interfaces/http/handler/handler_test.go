package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/interfaces/http/dto"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

var (
	testTenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	testUser   = uuid.MustParse("22222222-2222-2222-2222-222222222222")
	testActor  = shared.NewUserActor(testUser)
)

func newTestRouter() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Tenant(middleware.DefaultTenantConfig()))
	return r
}

type testRequest struct {
	method  string
	path    string
	body    any
	noActor bool
	headers map[string]string
}

func perform(t *testing.T, r http.Handler, tr testRequest) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	switch b := tr.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(tr.method, tr.path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(middleware.TenantHeader, testTenant.String())
	if !tr.noActor {
		req.Header.Set(middleware.UserHeader, testUser.String())
	}
	for k, v := range tr.headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// decode unmarshals the response envelope and its data into data
func decode(t *testing.T, w *httptest.ResponseRecorder, data any) dto.Response {
	t.Helper()
	var resp struct {
		dto.Response
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return resp.Response
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode(t, w, nil)
	require.NotNil(t, resp.Error, "expected an error body, got %s", w.Body.String())
	return resp.Error.Code
}
