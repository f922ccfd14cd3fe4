package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

type MockRecurringUseCases struct {
	mock.Mock
}

func (m *MockRecurringUseCases) template(args mock.Arguments) (*appinvoicing.RecurringTemplateResponse, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.RecurringTemplateResponse), args.Error(1)
}

func (m *MockRecurringUseCases) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req appinvoicing.CreateRecurringTemplateRequest) (*appinvoicing.RecurringTemplateResponse, error) {
	return m.template(m.Called(ctx, scope, actor, req))
}

func (m *MockRecurringUseCases) Get(ctx context.Context, scope, id uuid.UUID) (*appinvoicing.RecurringTemplateResponse, error) {
	return m.template(m.Called(ctx, scope, id))
}

func (m *MockRecurringUseCases) List(ctx context.Context, scope uuid.UUID, filter appinvoicing.ListFilter) (*shared.Paginated[appinvoicing.RecurringTemplateResponse], error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[appinvoicing.RecurringTemplateResponse]), args.Error(1)
}

func (m *MockRecurringUseCases) Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req appinvoicing.UpdateRecurringTemplateRequest) (*appinvoicing.RecurringTemplateResponse, error) {
	return m.template(m.Called(ctx, scope, id, actor, req))
}

func (m *MockRecurringUseCases) Execute(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*appinvoicing.RunResult, error) {
	args := m.Called(ctx, scope, id, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*appinvoicing.RunResult), args.Error(1)
}

func setupRecurringRouter() (http.Handler, *MockRecurringUseCases) {
	uc := new(MockRecurringUseCases)
	h := NewRecurringHandler(uc)

	r := newTestRouter()
	r.POST("/recurring-templates", h.Create)
	r.GET("/recurring-templates", h.List)
	r.GET("/recurring-templates/:id", h.Get)
	r.PATCH("/recurring-templates/:id", h.Update)
	r.POST("/recurring-templates/:id/execute", h.Execute)
	return r, uc
}

func TestRecurringHandler_Create(t *testing.T) {
	validBody := map[string]any{
		"name":          "Monthly hosting",
		"customer_name": "ACME GmbH",
		"frequency":     "MONTHLY",
		"start_date":    "2026-01-31T00:00:00Z",
		"items": []map[string]any{
			{"description": "Hosting", "quantity": "1", "unit_price": "49.00", "tax_rate": "19"},
		},
	}

	t.Run("unsupported frequency", func(t *testing.T) {
		r, uc := setupRecurringRouter()
		uc.On("Create", mock.Anything, testTenant, testActor, mock.Anything).
			Return(nil, shared.NewDomainError(shared.CodeUnsupportedFrequency, "Unsupported frequency: HOURLY"))

		body := map[string]any{}
		for k, v := range validBody {
			body[k] = v
		}
		body["frequency"] = "HOURLY"
		w := perform(t, r, testRequest{method: http.MethodPost, path: "/recurring-templates", body: body})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeUnsupportedFrequency, errorCode(t, w))
	})

	t.Run("template without items", func(t *testing.T) {
		r, uc := setupRecurringRouter()

		w := perform(t, r, testRequest{method: http.MethodPost, path: "/recurring-templates", body: map[string]any{
			"name":          "Empty",
			"customer_name": "ACME GmbH",
			"frequency":     "MONTHLY",
			"start_date":    "2026-01-31T00:00:00Z",
		}})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		uc.AssertNotCalled(t, "Create")
	})
}

func TestRecurringHandler_Execute(t *testing.T) {
	tests := []struct {
		name    string
		outcome appinvoicing.RunOutcome
	}{
		{name: "generates the due occurrence", outcome: appinvoicing.RunOutcomeExecuted},
		{name: "nothing due yet", outcome: appinvoicing.RunOutcomeNotDue},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc := setupRecurringRouter()
			id := uuid.New()
			res := &appinvoicing.RunResult{
				TemplateID:    id,
				TenantID:      testTenant,
				ScheduledDate: time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC),
				Outcome:       tt.outcome,
			}
			uc.On("Execute", mock.Anything, testTenant, id, testActor).Return(res, nil)

			w := perform(t, r, testRequest{method: http.MethodPost, path: "/recurring-templates/" + id.String() + "/execute"})

			assert.Equal(t, http.StatusOK, w.Code)
			var got appinvoicing.RunResult
			decode(t, w, &got)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, 28, got.ScheduledDate.Day())
			uc.AssertExpectations(t)
		})
	}
}

func TestRecurringHandler_Update_PauseOnly(t *testing.T) {
	r, uc := setupRecurringRouter()

	w := perform(t, r, testRequest{method: http.MethodPatch, path: "/recurring-templates/" + uuid.NewString(), body: map[string]any{
		"status": "COMPLETED",
	}})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	uc.AssertNotCalled(t, "Update")
}
