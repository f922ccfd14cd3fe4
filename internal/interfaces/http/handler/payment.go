package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

// PaymentUseCases is the payment part of the document facade
type PaymentUseCases interface {
	Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreatePaymentRequest) (*appinvoicing.PaymentResponse, error)
	Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.PaymentResponse, error)
	List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.PaymentResponse], error)
	ApplyAction(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.PaymentActionRequest) (*appinvoicing.PaymentActionResponse, error)
}

// PaymentHandler handles payment endpoints
type PaymentHandler struct {
	BaseHandler
	payments PaymentUseCases
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(payments PaymentUseCases) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

// Create godoc
// @ID           createPayment
// @Summary      Record a payment
// @Description  Creates a PENDING payment, optionally against an invoice or an expense
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        request body appinvoicing.CreatePaymentRequest true "Payment"
// @Success      201 {object} APIResponse[appinvoicing.PaymentResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /payments [post]
func (h *PaymentHandler) Create(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	p, err := h.payments.Create(c.Request.Context(), scope, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, p)
}

// Get godoc
// @ID           getPayment
// @Summary      Get a payment
// @Tags         payments
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.PaymentResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /payments/{id} [get]
func (h *PaymentHandler) Get(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	p, err := h.payments.Get(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, p)
}

// List godoc
// @ID           listPayments
// @Summary      List payments
// @Tags         payments
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        status query string false "Payment status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]appinvoicing.PaymentResponse]
// @Router       /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var filter appinvoicing.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.payments.List(c.Request.Context(), scope, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	SuccessPage(c, page)
}

// ApplyAction godoc
// @ID           applyPaymentAction
// @Summary      Apply an action to a payment
// @Description  Actions are APPROVE, REJECT, COMPLETE, CANCEL and REFUND. A refund returns the reversal payment as well.
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Payment ID" format(uuid)
// @Param        request body appinvoicing.PaymentActionRequest true "Action"
// @Success      200 {object} APIResponse[appinvoicing.PaymentActionResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /payments/{id}/actions [post]
func (h *PaymentHandler) ApplyAction(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.PaymentActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.payments.ApplyAction(c.Request.Context(), scope, id, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, resp)
}
