package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

// ExpenseUseCases is the expense part of the document facade
type ExpenseUseCases interface {
	Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreateExpenseRequest) (*appinvoicing.ExpenseResponse, error)
	Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.ExpenseResponse, error)
	List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.ExpenseResponse], error)
	Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.UpdateExpenseRequest) (*appinvoicing.ExpenseResponse, error)
	Submit(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error)
	Approve(ctx context.Context, scope, id uuid.UUID, approver shared.Actor) (*appinvoicing.ExpenseResponse, error)
	Reject(ctx context.Context, scope, id uuid.UUID, approver shared.Actor, req appinvoicing.RejectExpenseRequest) (*appinvoicing.ExpenseResponse, error)
	Pay(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.PayExpenseRequest) (*appinvoicing.ExpenseResponse, error)
}

// ExpenseHandler handles expense endpoints including the approval workflow
type ExpenseHandler struct {
	BaseHandler
	expenses ExpenseUseCases
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenses ExpenseUseCases) *ExpenseHandler {
	return &ExpenseHandler{expenses: expenses}
}

// Create godoc
// @ID           createExpense
// @Summary      Record an expense
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        request body appinvoicing.CreateExpenseRequest true "Expense"
// @Success      201 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /expenses [post]
func (h *ExpenseHandler) Create(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.CreateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	exp, err := h.expenses.Create(c.Request.Context(), scope, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, exp)
}

// Get godoc
// @ID           getExpense
// @Summary      Get an expense
// @Tags         expenses
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Expense ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /expenses/{id} [get]
func (h *ExpenseHandler) Get(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	exp, err := h.expenses.Get(c.Request.Context(), scope, id)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, exp)
}

// List godoc
// @ID           listExpenses
// @Summary      List expenses
// @Tags         expenses
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Matches number and vendor"
// @Param        status query string false "Expense status"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]appinvoicing.ExpenseResponse]
// @Router       /expenses [get]
func (h *ExpenseHandler) List(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var filter appinvoicing.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.expenses.List(c.Request.Context(), scope, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	SuccessPage(c, page)
}

// Update godoc
// @ID           updateExpense
// @Summary      Update a draft expense
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Expense ID" format(uuid)
// @Param        request body appinvoicing.UpdateExpenseRequest true "Changed fields"
// @Success      200 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /expenses/{id} [patch]
func (h *ExpenseHandler) Update(c *gin.Context) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req appinvoicing.UpdateExpenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	exp, err := h.expenses.Update(c.Request.Context(), scope, id, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, exp)
}

// Submit godoc
// @ID           submitExpense
// @Summary      Submit an expense for approval
// @Tags         expenses
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Expense ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /expenses/{id}/submit [post]
func (h *ExpenseHandler) Submit(c *gin.Context) {
	h.act(c, func(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error) {
		return h.expenses.Submit(ctx, scope, id, actor)
	})
}

// Approve godoc
// @ID           approveExpense
// @Summary      Approve a pending expense
// @Description  The approver must differ from the creator
// @Tags         expenses
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Approver ID"
// @Param        id path string true "Expense ID" format(uuid)
// @Success      200 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      403 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /expenses/{id}/approve [post]
func (h *ExpenseHandler) Approve(c *gin.Context) {
	h.act(c, func(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error) {
		return h.expenses.Approve(ctx, scope, id, actor)
	})
}

// Reject godoc
// @ID           rejectExpense
// @Summary      Reject a pending expense
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Approver ID"
// @Param        id path string true "Expense ID" format(uuid)
// @Param        request body appinvoicing.RejectExpenseRequest true "Rejection reason"
// @Success      200 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /expenses/{id}/reject [post]
func (h *ExpenseHandler) Reject(c *gin.Context) {
	var req appinvoicing.RejectExpenseRequest
	h.actWithBody(c, &req, func(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error) {
		return h.expenses.Reject(ctx, scope, id, actor, req)
	})
}

// Pay godoc
// @ID           payExpense
// @Summary      Pay an approved expense
// @Description  Records a completed outgoing payment and marks the expense PAID
// @Tags         expenses
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        id path string true "Expense ID" format(uuid)
// @Param        request body appinvoicing.PayExpenseRequest true "Payment details"
// @Success      200 {object} APIResponse[appinvoicing.ExpenseResponse]
// @Failure      422 {object} ErrorResponse
// @Router       /expenses/{id}/pay [post]
func (h *ExpenseHandler) Pay(c *gin.Context) {
	var req appinvoicing.PayExpenseRequest
	h.actWithBody(c, &req, func(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error) {
		return h.expenses.Pay(ctx, scope, id, actor, req)
	})
}

type expenseAction func(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error)

func (h *ExpenseHandler) act(c *gin.Context, fn expenseAction) {
	h.actWithBody(c, nil, fn)
}

// actWithBody binds body, when given, before running fn
func (h *ExpenseHandler) actWithBody(c *gin.Context, body any, fn expenseAction) {
	scope, id, ok := h.scoped(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	if body != nil {
		if err := c.ShouldBindJSON(body); err != nil {
			h.BindError(c, err)
			return
		}
	}
	exp, err := fn(c.Request.Context(), scope, id, actor)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, exp)
}
