package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/interfaces/http/dto"
)

type MockInvoiceUseCases struct {
	mock.Mock
}

func (m *MockInvoiceUseCases) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreateInvoiceRequest) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, scope, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceUseCases) Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceUseCases) List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.InvoiceResponse], error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appinvoicing.InvoiceResponse]), args.Error(1)
}

func (m *MockInvoiceUseCases) Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.UpdateInvoiceRequest) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, scope, id, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func (m *MockInvoiceUseCases) Transition(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.TransitionInvoiceRequest) (*appinvoicing.InvoiceResponse, error) {
	args := m.Called(ctx, scope, id, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.InvoiceResponse), args.Error(1)
}

func setupInvoiceRouter() (http.Handler, *MockInvoiceUseCases) {
	uc := new(MockInvoiceUseCases)
	h := NewInvoiceHandler(uc)

	r := newTestRouter()
	r.POST("/invoices", h.Create)
	r.GET("/invoices", h.List)
	r.GET("/invoices/:id", h.Get)
	r.PATCH("/invoices/:id", h.Update)
	r.POST("/invoices/:id/transition", h.Transition)
	return r, uc
}

func sampleInvoice(id uuid.UUID, status string) *appinvoicing.InvoiceResponse {
	return &appinvoicing.InvoiceResponse{
		ID:            id,
		TenantID:      testTenant,
		InvoiceNumber: "INV-202601-00001",
		CustomerName:  "ACME GmbH",
		Currency:      "EUR",
		Status:        status,
		NetAmount:     decimal.RequireFromString("100.00"),
		TaxAmount:     decimal.RequireFromString("19.00"),
		GrossAmount:   decimal.RequireFromString("119.00"),
	}
}

func TestInvoiceHandler_Create(t *testing.T) {
	t.Run("creates a draft", func(t *testing.T) {
		r, uc := setupInvoiceRouter()
		id := uuid.New()
		uc.On("Create", mock.Anything, testTenant, testActor, mock.MatchedBy(func(req appinvoicing.CreateInvoiceRequest) bool {
			return req.CustomerName == "ACME GmbH"
		})).Return(sampleInvoice(id, "DRAFT"), nil)

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/invoices", body: map[string]any{
			"customer_name": "ACME GmbH",
			"issue_date":    time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		}})

		assert.Equal(t, http.StatusCreated, w.Code)
		var got appinvoicing.InvoiceResponse
		resp := decode(t, w, &got)
		assert.True(t, resp.Success)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "INV-202601-00001", got.InvoiceNumber)
		assert.True(t, got.GrossAmount.Equal(decimal.RequireFromString("119")))
		uc.AssertExpectations(t)
	})

	t.Run("missing customer is a validation error", func(t *testing.T) {
		r, uc := setupInvoiceRouter()

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/invoices", body: map[string]any{
			"issue_date": time.Now(),
		}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, errorCode(t, w))
		uc.AssertNotCalled(t, "Create")
	})

	t.Run("malformed body", func(t *testing.T) {
		r, _ := setupInvoiceRouter()

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/invoices", body: "{not json"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("writes need an actor", func(t *testing.T) {
		r, uc := setupInvoiceRouter()

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/invoices", noActor: true, body: map[string]any{
			"customer_name": "ACME GmbH",
		}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeMissingActor, errorCode(t, w))
		uc.AssertNotCalled(t, "Create")
	})

	t.Run("invalid amount from the calculator", func(t *testing.T) {
		r, uc := setupInvoiceRouter()
		uc.On("Create", mock.Anything, testTenant, testActor, mock.Anything).
			Return(nil, shared.NewInvalidAmountError("quantity must be positive"))

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/invoices", body: map[string]any{
			"customer_name": "ACME GmbH",
			"issue_date":    time.Now(),
		}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeInvalidAmount, errorCode(t, w))
	})
}

func TestInvoiceHandler_Get(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		setup    func(uc *MockInvoiceUseCases, id uuid.UUID)
		wantCode int
		wantErr  string
	}{
		{
			name: "found",
			setup: func(uc *MockInvoiceUseCases, id uuid.UUID) {
				uc.On("Get", mock.Anything, testTenant, id).Return(sampleInvoice(id, "SENT"), nil)
			},
			wantCode: http.StatusOK,
		},
		{
			name: "not found",
			setup: func(uc *MockInvoiceUseCases, id uuid.UUID) {
				uc.On("Get", mock.Anything, testTenant, id).Return(nil, shared.NewDomainError(shared.CodeNotFound, "Invoice not found"))
			},
			wantCode: http.StatusNotFound,
			wantErr:  shared.CodeNotFound,
		},
		{
			name:     "bad id",
			path:     "/invoices/not-a-uuid",
			setup:    func(*MockInvoiceUseCases, uuid.UUID) {},
			wantCode: http.StatusBadRequest,
			wantErr:  shared.CodeInvalidInput,
		},
		{
			name: "unexpected error",
			setup: func(uc *MockInvoiceUseCases, id uuid.UUID) {
				uc.On("Get", mock.Anything, testTenant, id).Return(nil, errors.New("connection reset"))
			},
			wantCode: http.StatusInternalServerError,
			wantErr:  dto.ErrCodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc := setupInvoiceRouter()
			id := uuid.New()
			tt.setup(uc, id)
			path := tt.path
			if path == "" {
				path = "/invoices/" + id.String()
			}

			w := perform(t, r, testRequest{method: http.MethodGet, path: path, noActor: true})

			assert.Equal(t, tt.wantCode, w.Code)
			if tt.wantErr != "" {
				assert.Equal(t, tt.wantErr, errorCode(t, w))
			}
			uc.AssertExpectations(t)
		})
	}
}

func TestInvoiceHandler_List(t *testing.T) {
	r, uc := setupInvoiceRouter()
	items := []appinvoicing.InvoiceResponse{*sampleInvoice(uuid.New(), "SENT"), *sampleInvoice(uuid.New(), "SENT")}
	page := shared.NewPaginated(items, 42, 2, 20)
	uc.On("List", mock.Anything, testTenant, appinvoicing.ListFilter{Status: "SENT", Page: 2, PageSize: 20}).Return(&page, nil)

	w := perform(t, r, testRequest{method: http.MethodGet, path: "/invoices?status=SENT&page=2&page_size=20", noActor: true})

	assert.Equal(t, http.StatusOK, w.Code)
	var got []appinvoicing.InvoiceResponse
	resp := decode(t, w, &got)
	assert.Len(t, got, 2)
	if assert.NotNil(t, resp.Meta) {
		assert.Equal(t, int64(42), resp.Meta.Total)
		assert.Equal(t, 3, resp.Meta.TotalPages)
	}
	uc.AssertExpectations(t)
}

func TestInvoiceHandler_Update(t *testing.T) {
	r, uc := setupInvoiceRouter()
	id := uuid.New()
	uc.On("Update", mock.Anything, testTenant, id, testActor, mock.Anything).
		Return(nil, shared.NewDomainError(shared.CodeImmutableDocument, "Invoice is no longer editable"))

	w := perform(t, r, testRequest{method: http.MethodPatch, path: "/invoices/" + id.String(), body: map[string]any{
		"notes": "late change",
	}})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, shared.CodeImmutableDocument, errorCode(t, w))
}

func TestInvoiceHandler_Transition(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		err      error
		wantCode int
	}{
		{name: "draft to pending", status: "PENDING", wantCode: http.StatusOK},
		{name: "illegal edge", status: "PAID", err: shared.NewInvalidTransitionError("DRAFT", "PAID"), wantCode: http.StatusUnprocessableEntity},
		{name: "stale version", status: "SENT", err: shared.NewDomainError(shared.CodeVersionConflict, "Invoice was modified"), wantCode: http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc := setupInvoiceRouter()
			id := uuid.New()
			req := appinvoicing.TransitionInvoiceRequest{Status: tt.status}
			if tt.err != nil {
				uc.On("Transition", mock.Anything, testTenant, id, testActor, req).Return(nil, tt.err)
			} else {
				uc.On("Transition", mock.Anything, testTenant, id, testActor, req).Return(sampleInvoice(id, tt.status), nil)
			}

			w := perform(t, r, testRequest{method: http.MethodPost, path: "/invoices/" + id.String() + "/transition", body: req})

			assert.Equal(t, tt.wantCode, w.Code)
			uc.AssertExpectations(t)
		})
	}
}
