package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

// RecurringUseCases manages recurring invoice templates
type RecurringUseCases interface {
	Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreateRecurringTemplateRequest) (*appinvoicing.RecurringTemplateResponse, error)
	Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.RecurringTemplateResponse, error)
	List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.RecurringTemplateResponse], error)
	Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.UpdateRecurringTemplateRequest) (*appinvoicing.RecurringTemplateResponse, error)
	Execute(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.RunResult, error)
}

// RecurringHandler handles recurring template endpoints
type RecurringHandler struct {
	BaseHandler
	templates RecurringUseCases
}

// NewRecurringHandler creates a new RecurringHandler
func NewRecurringHandler(templates RecurringUseCases) *RecurringHandler {
	return &RecurringHandler{templates: templates}
}

// Create godoc
// @ID           createRecurringTemplate
// @Summary      Create a recurring invoice template
// @Tags         recurring
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        request body appinvoicing.CreateRecurringTemplateRequest true "Template"
// @Success      201 {object} APIResponse[appinvoicing.RecurringTemplateResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /recurring-templates [post]
func (h *RecurringHandler) Create(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.CreateRecurringTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	t, err := h.templates.Create(c.Request.Context(), scope, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, t)
}

// Get godoc
// @ID           getRecurringTemplate
// @Summary      Get a recurring template
// @Tags         recurring
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Template ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.RecurringTemplateResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /recurring-templates/{id} [get]
func (h *RecurringHandler) Get(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	t, err := h.templates.Get(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, t)
}

// List godoc
// @ID           listRecurringTemplates
// @Summary      List recurring templates
// @Tags         recurring
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Matches the template name"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]appinvoicing.RecurringTemplateResponse]
// @Router       /recurring-templates [get]
func (h *RecurringHandler) List(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var filter appinvoicing.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.templates.List(c.Request.Context(), scope, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Update godoc
// @ID           updateRecurringTemplate
// @Summary      Update a recurring template
// @Tags         recurring
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Template ID" format(uuid)
// @Param        request body appinvoicing.UpdateRecurringTemplateRequest true "Changed fields"
// @Success      200 {object} APIResponse[appinvoicing.RecurringTemplateResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /recurring-templates/{id} [patch]
func (h *RecurringHandler) Update(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.UpdateRecurringTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	t, err := h.templates.Update(c.Request.Context(), scope, id, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, t)
}

// Execute godoc
// @ID           executeRecurringTemplate
// @Summary      Run a template now
// @Description  Generates the occurrence that is due. Running twice for the same date returns DUPLICATE.
// @Tags         recurring
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Template ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.RunResult]
// @Failure      404 {object} ErrorResponse
// @Router       /recurring-templates/{id}/execute [post]
func (h *RecurringHandler) Execute(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	res, err := h.templates.Execute(c.Request.Context(), scope, id, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, res)
}
