package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

type MockPaymentUseCases struct {
	mock.Mock
}

func (m *MockPaymentUseCases) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreatePaymentRequest) (*appinvoicing.PaymentResponse, error) {
	args := m.Called(ctx, scope, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.PaymentResponse), args.Error(1)
}

func (m *MockPaymentUseCases) Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.PaymentResponse, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.PaymentResponse), args.Error(1)
}

func (m *MockPaymentUseCases) List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.PaymentResponse], error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appinvoicing.PaymentResponse]), args.Error(1)
}

func (m *MockPaymentUseCases) ApplyAction(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.PaymentActionRequest) (*appinvoicing.PaymentActionResponse, error) {
	args := m.Called(ctx, scope, id, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.PaymentActionResponse), args.Error(1)
}

func setupPaymentRouter() (http.Handler, *MockPaymentUseCases) {
	uc := new(MockPaymentUseCases)
	h := NewPaymentHandler(uc)

	r := newTestRouter()
	r.POST("/payments", h.Create)
	r.GET("/payments", h.List)
	r.GET("/payments/:id", h.Get)
	r.POST("/payments/:id/actions", h.ApplyAction)
	return r, uc
}

func TestPaymentHandler_Create(t *testing.T) {
	t.Run("decimal amount is bound", func(t *testing.T) {
		r, uc := setupPaymentRouter()
		uc.On("Create", mock.Anything, testTenant, testActor, mock.MatchedBy(func(req appinvoicing.CreatePaymentRequest) bool {
			return req.Amount.Equal(decimal.RequireFromString("119.00")) && req.Direction == "INCOMING"
		})).Return(&appinvoicing.PaymentResponse{ID: uuid.New(), Status: "PENDING"}, nil)

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/payments", body: `{"direction":"INCOMING","amount":"119.00","method":"BANK_TRANSFER"}`})

		assert.Equal(t, http.StatusCreated, w.Code)
		uc.AssertExpectations(t)
	})

	t.Run("unknown direction", func(t *testing.T) {
		r, uc := setupPaymentRouter()

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/payments", body: `{"direction":"SIDEWAYS","amount":"1","method":"CASH"}`})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		uc.AssertNotCalled(t, "Create")
	})
}

func TestPaymentHandler_Refund(t *testing.T) {
	r, uc := setupPaymentRouter()
	id := uuid.New()
	refundID := uuid.New()
	uc.On("ApplyAction", mock.Anything, testTenant, id, testActor, appinvoicing.PaymentActionRequest{Action: "REFUND"}).
		Return(&appinvoicing.PaymentActionResponse{
			Payment: appinvoicing.PaymentResponse{ID: id, Status: "REFUNDED"},
			Refund:  &appinvoicing.PaymentResponse{ID: refundID, Status: "COMPLETED"},
		}, nil)

	w := perform(t, r, testRequest{method: http.MethodPost, path: "/payments/" + id.String() + "/actions", body: appinvoicing.PaymentActionRequest{Action: "REFUND"}})

	assert.Equal(t, http.StatusOK, w.Code)
	var got appinvoicing.PaymentActionResponse
	decode(t, w, &got)
	assert.Equal(t, "REFUNDED", got.Payment.Status)
	if assert.NotNil(t, got.Refund) {
		assert.Equal(t, refundID, got.Refund.ID)
	}
}

func TestPaymentHandler_ActionOnTerminalPayment(t *testing.T) {
	r, uc := setupPaymentRouter()
	id := uuid.New()
	uc.On("ApplyAction", mock.Anything, testTenant, id, testActor, mock.Anything).
		Return(nil, shared.NewInvalidTransitionError("CANCELLED", "COMPLETED"))

	w := perform(t, r, testRequest{method: http.MethodPost, path: "/payments/" + id.String() + "/actions", body: appinvoicing.PaymentActionRequest{Action: "COMPLETE"}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, shared.CodeInvalidTransition, errorCode(t, w))
}
