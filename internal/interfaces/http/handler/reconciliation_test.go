package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/application/reconciliation"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/bankstatement"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
)

type MockReconciliationUseCases struct {
	mock.Mock
}

func (m *MockReconciliationUseCases) Candidates(ctx context.Context, scope uuid.UUID, req reconciliation.CandidatesRequest) (*reconciliation.CandidatesResponse, error) {
	args := m.Called(ctx, scope, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.CandidatesResponse), args.Error(1)
}

func (m *MockReconciliationUseCases) Link(ctx context.Context, scope uuid.UUID, actor shared.Actor, req reconciliation.LinkRequest) (*reconciliation.LinkResponse, error) {
	args := m.Called(ctx, scope, actor, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.LinkResponse), args.Error(1)
}

func (m *MockReconciliationUseCases) ImportStatement(ctx context.Context, scope uuid.UUID, parser reconciliation.StatementParser, r io.Reader) (*reconciliation.ImportResult, error) {
	args := m.Called(ctx, scope, parser, r)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.ImportResult), args.Error(1)
}

func (m *MockReconciliationUseCases) ListTransactions(ctx context.Context, scope uuid.UUID, f reconciliation.TransactionListFilter) (*shared.Paginated[reconciliation.TransactionResponse], error) {
	args := m.Called(ctx, scope, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shared.Paginated[reconciliation.TransactionResponse]), args.Error(1)
}

func (m *MockReconciliationUseCases) CreateRule(ctx context.Context, scope uuid.UUID, req reconciliation.CreateRuleRequest) (*reconciliation.RuleResponse, error) {
	args := m.Called(ctx, scope, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.RuleResponse), args.Error(1)
}

func (m *MockReconciliationUseCases) ListRules(ctx context.Context, scope uuid.UUID) ([]reconciliation.RuleResponse, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]reconciliation.RuleResponse), args.Error(1)
}

func setupReconciliationRouter() (http.Handler, *MockReconciliationUseCases) {
	uc := new(MockReconciliationUseCases)
	h := NewReconciliationHandler(uc, 1<<20)

	r := newTestRouter()
	r.GET("/reconciliation/candidates", h.Candidates)
	r.POST("/reconciliation/links", h.Link)
	r.POST("/reconciliation/import", h.Import)
	r.GET("/reconciliation/transactions", h.Transactions)
	r.GET("/reconciliation/rules", h.ListRules)
	r.POST("/reconciliation/rules", h.CreateRule)
	return r, uc
}

func multipartStatement(t *testing.T, content string, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if content != "" {
		fw, err := mw.CreateFormFile("file", "statement.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestReconciliationHandler_Candidates(t *testing.T) {
	t.Run("ranked suggestions", func(t *testing.T) {
		r, uc := setupReconciliationRouter()
		docID := uuid.New()
		uc.On("Candidates", mock.Anything, testTenant, reconciliation.CandidatesRequest{DocumentType: "INVOICE", DocumentID: docID.String()}).
			Return(&reconciliation.CandidatesResponse{
				DocumentType:   "INVOICE",
				DocumentID:     docID,
				DocumentAmount: decimal.RequireFromString("119.00"),
				Candidates: []reconciliation.CandidateResponse{
					{MatchClass: "EXACT", Difference: decimal.Zero},
					{MatchClass: "WITHIN_TOLERANCE", Difference: decimal.RequireFromString("0.40")},
				},
			}, nil)

		w := perform(t, r, testRequest{
			method:  http.MethodGet,
			path:    "/reconciliation/candidates?document_type=INVOICE&document_id=" + docID.String(),
			noActor: true,
		})

		assert.Equal(t, http.StatusOK, w.Code)
		var got reconciliation.CandidatesResponse
		decode(t, w, &got)
		if assert.Len(t, got.Candidates, 2) {
			assert.Equal(t, "EXACT", got.Candidates[0].MatchClass)
		}
		uc.AssertExpectations(t)
	})

	t.Run("unknown document type", func(t *testing.T) {
		r, uc := setupReconciliationRouter()

		w := perform(t, r, testRequest{
			method:  http.MethodGet,
			path:    "/reconciliation/candidates?document_type=ORDER&document_id=" + uuid.NewString(),
			noActor: true,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		uc.AssertNotCalled(t, "Candidates")
	})
}

func TestReconciliationHandler_Link(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
	}{
		{name: "linked", wantCode: http.StatusCreated},
		{name: "transaction already linked", err: shared.NewDomainError(shared.CodeAlreadyLinked, "Transaction is already linked"), wantCode: http.StatusConflict},
		{name: "difference above tolerance", err: shared.NewDomainError(shared.CodeToleranceExceeded, "Difference exceeds tolerance"), wantCode: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, uc := setupReconciliationRouter()
			req := reconciliation.LinkRequest{TransactionID: uuid.New(), DocumentType: "EXPENSE", DocumentID: uuid.New()}
			if tt.err != nil {
				uc.On("Link", mock.Anything, testTenant, testActor, req).Return(nil, tt.err)
			} else {
				uc.On("Link", mock.Anything, testTenant, testActor, req).Return(&reconciliation.LinkResponse{ID: uuid.New(), MatchClass: "EXACT"}, nil)
			}

			w := perform(t, r, testRequest{method: http.MethodPost, path: "/reconciliation/links", body: req})

			assert.Equal(t, tt.wantCode, w.Code)
			uc.AssertExpectations(t)
		})
	}
}

func TestReconciliationHandler_Import(t *testing.T) {
	const csv = "Buchungstag;Betrag;Empfaenger;Verwendungszweck\n15.01.2026;119,00;ACME GmbH;INV-202601-00001\n"

	send := func(t *testing.T, r http.Handler, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/reconciliation/import", body)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set(middleware.TenantHeader, testTenant.String())
		req.Header.Set(middleware.UserHeader, testUser.String())
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	t.Run("imports the uploaded file", func(t *testing.T) {
		r, uc := setupReconciliationRouter()
		uc.On("ImportStatement", mock.Anything, testTenant, mock.AnythingOfType("*bankstatement.CSVParser"), mock.MatchedBy(func(rd io.Reader) bool {
			return rd != nil
		})).Return(&reconciliation.ImportResult{Parsed: 1, Imported: 1}, nil)

		body, ct := multipartStatement(t, csv, nil)
		w := send(t, r, body, ct)

		assert.Equal(t, http.StatusOK, w.Code)
		var got reconciliation.ImportResult
		decode(t, w, &got)
		assert.Equal(t, 1, got.Imported)
		uc.AssertExpectations(t)
	})

	t.Run("file is required", func(t *testing.T) {
		r, uc := setupReconciliationRouter()

		body, ct := multipartStatement(t, "", map[string]string{"delimiter": ";"})
		w := send(t, r, body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeMissingRequiredField, errorCode(t, w))
		uc.AssertNotCalled(t, "ImportStatement")
	})

	t.Run("delimiter must be one character", func(t *testing.T) {
		r, uc := setupReconciliationRouter()

		body, ct := multipartStatement(t, csv, map[string]string{"delimiter": ";;"})
		w := send(t, r, body, ct)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeInvalidInput, errorCode(t, w))
		uc.AssertNotCalled(t, "ImportStatement")
	})
}

func TestNewReconciliationHandler_DefaultUploadSize(t *testing.T) {
	h := NewReconciliationHandler(new(MockReconciliationUseCases), 0)
	assert.Equal(t, int64(bankstatement.DefaultMaxSize), h.maxUploadSize)
}

func TestReconciliationHandler_Rules(t *testing.T) {
	r, uc := setupReconciliationRouter()
	req := reconciliation.CreateRuleRequest{Priority: 10, Match: "ACME*", DocumentType: "INVOICE"}
	uc.On("CreateRule", mock.Anything, testTenant, req).Return(&reconciliation.RuleResponse{ID: uuid.New(), Priority: 10, Match: "ACME*", DocumentType: "INVOICE"}, nil)
	uc.On("ListRules", mock.Anything, testTenant).Return([]reconciliation.RuleResponse{{Match: "ACME*"}}, nil)

	w := perform(t, r, testRequest{method: http.MethodPost, path: "/reconciliation/rules", body: req})
	assert.Equal(t, http.StatusCreated, w.Code)

	w = perform(t, r, testRequest{method: http.MethodGet, path: "/reconciliation/rules", noActor: true})
	assert.Equal(t, http.StatusOK, w.Code)
	var rules []reconciliation.RuleResponse
	decode(t, w, &rules)
	assert.Len(t, rules, 1)
	uc.AssertExpectations(t)
}
