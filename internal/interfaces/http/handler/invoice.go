package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

// InvoiceUseCases is the invoice part of the document facade
type InvoiceUseCases interface {
	Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreateInvoiceRequest) (*appinvoicing.InvoiceResponse, error)
	Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.InvoiceResponse, error)
	List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.InvoiceResponse], error)
	Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.UpdateInvoiceRequest) (*appinvoicing.InvoiceResponse, error)
	Transition(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.TransitionInvoiceRequest) (*appinvoicing.InvoiceResponse, error)
}

// InvoiceHandler handles invoice endpoints
type InvoiceHandler struct {
	BaseHandler
	invoices InvoiceUseCases
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoices InvoiceUseCases) *InvoiceHandler {
	return &InvoiceHandler{invoices: invoices}
}

// Create godoc
// @ID           createInvoice
// @Summary      Draft an invoice
// @Description  Creates a DRAFT invoice with a number of the form INV-YYYYMM-NNNNN
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        request body appinvoicing.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /invoices [post]
func (h *InvoiceHandler) Create(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	inv, err := h.invoices.Create(c.Request.Context(), scope, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, inv)
}

// Get godoc
// @ID           getInvoice
// @Summary      Get an invoice
// @Tags         invoices
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /invoices/{id} [get]
func (h *InvoiceHandler) Get(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	inv, err := h.invoices.Get(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, inv)
}

// List godoc
// @ID           listInvoices
// @Summary      List invoices
// @Tags         invoices
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Matches number and customer"
// @Param        status query string false "Invoice status"
// @Param        order_by query string false "Sort field"
// @Param        order_dir query string false "asc or desc"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]appinvoicing.InvoiceResponse]
// @Router       /invoices [get]
func (h *InvoiceHandler) List(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var filter appinvoicing.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.invoices.List(c.Request.Context(), scope, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Update godoc
// @ID           updateInvoice
// @Summary      Update a draft invoice
// @Description  Applies a partial update. Only DRAFT and PENDING invoices are editable.
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.UpdateInvoiceRequest true "Changed fields"
// @Success      200 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{id} [patch]
func (h *InvoiceHandler) Update(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.UpdateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.invoices.Update(c.Request.Context(), scope, id, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, inv)
}

// Transition godoc
// @ID           transitionInvoice
// @Summary      Change the invoice status
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body appinvoicing.TransitionInvoiceRequest true "Target status"
// @Success      200 {object} APIResponse[appinvoicing.InvoiceResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /invoices/{id}/transition [post]
func (h *InvoiceHandler) Transition(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.TransitionInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	inv, err := h.invoices.Transition(c.Request.Context(), scope, id, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, inv)
}
