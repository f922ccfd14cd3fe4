// Package handler implements the ledger REST endpoints.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"github.com/tilver/backend/internal/interfaces/http/dto"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return logger.GetRequestID(c.Request.Context())
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessPage sends one page of a list with pagination meta
func SuccessPage[T any](c *gin.Context, page *shared.Paginated[T]) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(page.Items, page.Total, page.Page, page.PageSize))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the status of code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BindError answers a request body or query that could not be bound
func (h *BaseHandler) BindError(c *gin.Context, err error) {
	_ = c.Error(err)
	middleware.HandleValidationError(c, err)
}

// HandleDomainError converts domain errors to HTTP responses. Anything that
// is not a *shared.DomainError is logged and answered with 500.
func (h *BaseHandler) HandleDomainError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, domainErr.Code, domainErr.Message)
		return
	}

	logger.L(c.Request.Context()).Error("request failed", zap.Error(err))
	h.Error(c, dto.ErrCodeInternal, "An unexpected error occurred")
}

// scope returns the tenant set by the tenant middleware. It answers 400 and
// returns false when the route was mounted without it.
func (h *BaseHandler) scope(c *gin.Context) (uuid.UUID, bool) {
	tenantID := middleware.GetTenantUUID(c)
	if tenantID == uuid.Nil {
		h.Error(c, dto.ErrCodeMissingTenant, middleware.TenantHeader+" header is required")
		return uuid.Nil, false
	}
	return tenantID, true
}

// actor returns the acting user; writes without one are rejected
func (h *BaseHandler) actor(c *gin.Context) (shared.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		h.Error(c, dto.ErrCodeMissingActor, middleware.UserHeader+" header is required")
		return shared.Actor{}, false
	}
	return actor, true
}

// pathID parses the :id path parameter
func (h *BaseHandler) pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, shared.CodeInvalidInput, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// scoped resolves the tenant and the :id parameter
func (h *BaseHandler) scoped(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	scope, ok := h.scope(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	id, ok := h.pathID(c)
	return scope, id, ok
}
