// Package testutil provides helpers shared by the integration tests: an HTTP
// client that carries tenant headers, an event recorder and polling asserts.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/interfaces/http/dto"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
)

// APIClient sends requests to an in-process handler as one tenant and user
type APIClient struct {
	Handler  http.Handler
	TenantID uuid.UUID
	// UserID is sent as X-User-ID unless it is uuid.Nil
	UserID   uuid.UUID
	BasePath string
}

// NewAPIClient creates a client for a fresh tenant and user under /api/v1
func NewAPIClient(h http.Handler) *APIClient {
	return &APIClient{
		Handler:  h,
		TenantID: uuid.New(),
		UserID:   uuid.New(),
		BasePath: "/api/v1",
	}
}

// AsTenant returns a copy of the client acting for another tenant
func (c *APIClient) AsTenant(tenantID uuid.UUID) *APIClient {
	cp := *c
	cp.TenantID = tenantID
	return &cp
}

// Do sends body as JSON, or raw when it is an io.Reader
func (c *APIClient) Do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return c.DoWithContentType(t, method, path, body, "application/json")
}

// DoWithContentType is Do with an explicit content type
func (c *APIClient) DoWithContentType(t *testing.T, method, path string, body any, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case io.Reader:
		reader = b
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err, "marshal request body")
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, c.BasePath+path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set(middleware.TenantHeader, c.TenantID.String())
	if c.UserID != uuid.Nil {
		req.Header.Set(middleware.UserHeader, c.UserID.String())
	}

	w := httptest.NewRecorder()
	c.Handler.ServeHTTP(w, req)
	return w
}

// Envelope is the response wrapper with data left undecoded
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

// DecodeEnvelope parses the response wrapper
func DecodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), "decode response: %s", w.Body.String())
	return env
}

// RequireData asserts the status code and decodes the data of a success response
func RequireData[T any](t *testing.T, w *httptest.ResponseRecorder, status int) T {
	t.Helper()
	require.Equal(t, status, w.Code, "unexpected status, body: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	require.True(t, env.Success, "expected success, body: %s", w.Body.String())

	var data T
	require.NoError(t, json.Unmarshal(env.Data, &data), "decode data")
	return data
}

// RequireErrorCode asserts the status code and the error code of a failed response
func RequireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, w.Code, "unexpected status, body: %s", w.Body.String())
	env := DecodeEnvelope(t, w)
	require.NotNil(t, env.Error, "expected an error body: %s", w.Body.String())
	require.Equal(t, code, env.Error.Code)
}
