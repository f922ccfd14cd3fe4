package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

type MockExpenseUseCases struct {
	mock.Mock
}

func (m *MockExpenseUseCases) result(args mock.Arguments) (*appinvoicing.ExpenseResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.ExpenseResponse), args.Error(1)
}

func (m *MockExpenseUseCases) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreateExpenseRequest) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, actor, req))
}

func (m *MockExpenseUseCases) Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, id))
}

func (m *MockExpenseUseCases) List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.ExpenseResponse], error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appinvoicing.ExpenseResponse]), args.Error(1)
}

func (m *MockExpenseUseCases) Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.UpdateExpenseRequest) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, id, actor, req))
}

func (m *MockExpenseUseCases) Submit(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, id, actor))
}

func (m *MockExpenseUseCases) Approve(ctx context.Context, scope, id uuid.UUID, approver shared.Actor) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, id, approver))
}

func (m *MockExpenseUseCases) Reject(ctx context.Context, scope, id uuid.UUID, approver shared.Actor, req appinvoicing.RejectExpenseRequest) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, id, approver, req))
}

func (m *MockExpenseUseCases) Pay(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.PayExpenseRequest) (*appinvoicing.ExpenseResponse, error) {
	return m.result(m.Called(ctx, scope, id, actor, req))
}

func setupExpenseRouter() (http.Handler, *MockExpenseUseCases) {
	uc := new(MockExpenseUseCases)
	h := NewExpenseHandler(uc)

	r := newTestRouter()
	r.POST("/expenses", h.Create)
	r.GET("/expenses", h.List)
	r.GET("/expenses/:id", h.Get)
	r.PATCH("/expenses/:id", h.Update)
	r.POST("/expenses/:id/submit", h.Submit)
	r.POST("/expenses/:id/approve", h.Approve)
	r.POST("/expenses/:id/reject", h.Reject)
	r.POST("/expenses/:id/pay", h.Pay)
	return r, uc
}

func TestExpenseHandler_Create_RequiresAmount(t *testing.T) {
	r, uc := setupExpenseRouter()

	w := perform(t, r, testRequest{method: http.MethodPost, path: "/expenses", body: map[string]any{
		"vendor":      "Office Supplies Ltd",
		"category":    "OFFICE",
		"incurred_at": "2026-01-10T00:00:00Z",
	}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	uc.AssertNotCalled(t, "Create")
}

func TestExpenseHandler_Workflow(t *testing.T) {
	tests := []struct {
		name     string
		action   string
		body     any
		setup    func(uc *MockExpenseUseCases, id uuid.UUID)
		wantCode int
		wantErr  string
	}{
		{
			name:   "submit",
			action: "submit",
			setup: func(uc *MockExpenseUseCases, id uuid.UUID) {
				uc.On("Submit", mock.Anything, testTenant, id, testActor).
					Return(&appinvoicing.ExpenseResponse{ID: id, Status: "PENDING_APPROVAL"}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name:   "creator cannot approve",
			action: "approve",
			setup: func(uc *MockExpenseUseCases, id uuid.UUID) {
				uc.On("Approve", mock.Anything, testTenant, id, testActor).
					Return(nil, shared.NewDomainError(shared.CodeAccessDenied, "Approver must differ from creator"))
			},
			wantCode: http.StatusForbidden,
			wantErr:  shared.CodeAccessDenied,
		},
		{
			name:   "reject with reason",
			action: "reject",
			body:   appinvoicing.RejectExpenseRequest{Reason: "duplicate receipt"},
			setup: func(uc *MockExpenseUseCases, id uuid.UUID) {
				uc.On("Reject", mock.Anything, testTenant, id, testActor, appinvoicing.RejectExpenseRequest{Reason: "duplicate receipt"}).
					Return(&appinvoicing.ExpenseResponse{ID: id, Status: "REJECTED"}, nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name:     "reject without reason",
			action:   "reject",
			body:     map[string]any{},
			setup:    func(*MockExpenseUseCases, uuid.UUID) {},
			wantCode: http.StatusBadRequest,
		},
		{
			name:   "pay before approval",
			action: "pay",
			body:   map[string]any{"method": "BANK_TRANSFER"},
			setup: func(uc *MockExpenseUseCases, id uuid.UUID) {
				uc.On("Pay", mock.Anything, testTenant, id, testActor, mock.Anything).
					Return(nil, shared.NewDomainError(shared.CodeApprovalRequired, "Expense must be approved first"))
			},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  shared.CodeApprovalRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc := setupExpenseRouter()
			id := uuid.New()
			tt.setup(uc, id)

			w := perform(t, r, testRequest{method: http.MethodPost, path: "/expenses/" + id.String() + "/" + tt.action, body: tt.body})

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
			}
			uc.AssertExpectations(t)
		})
	}
}

func TestExpenseHandler_List(t *testing.T) {
	r, uc := setupExpenseRouter()
	page := shared.NewPaginated([]appinvoicing.ExpenseResponse{}, 0, 1, 20)
	uc.On("List", mock.Anything, testTenant, appinvoicing.ListFilter{Search: "office"}).Return(&page, nil)

	w := perform(t, r, testRequest{method: http.MethodGet, path: "/expenses?search=office", noActor: true})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w, nil)
	if assert.NotNil(t, resp.Meta) {
		assert.Equal(t, int64(0), resp.Meta.Total)
	}
}
