package handler

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tilver/backend/internal/application/reconciliation"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/bankstatement"
)

// ReconciliationUseCases matches bank transactions with documents
type ReconciliationUseCases interface {
	Candidates(ctx context.Context, scope uuid.UUID, req reconciliation.CandidatesRequest) (*reconciliation.CandidatesResponse, error)
	Link(ctx context.Context, scope uuid.UUID, actor shared.Actor, req reconciliation.LinkRequest) (*reconciliation.LinkResponse, error)
	ImportStatement(ctx context.Context, scope uuid.UUID, parser reconciliation.StatementParser, r io.Reader) (*reconciliation.ImportResult, error)
	ListTransactions(ctx context.Context, scope uuid.UUID, f reconciliation.TransactionListFilter) (*shared.Paginated[reconciliation.TransactionResponse], error)
	CreateRule(ctx context.Context, scope uuid.UUID, req reconciliation.CreateRuleRequest) (*reconciliation.RuleResponse, error)
	ListRules(ctx context.Context, scope uuid.UUID) ([]reconciliation.RuleResponse, error)
}

// ReconciliationHandler handles matching, linking and statement import
type ReconciliationHandler struct {
	BaseHandler
	service       ReconciliationUseCases
	maxUploadSize int64
}

// NewReconciliationHandler creates a new ReconciliationHandler. Statement
// files above maxUploadSize bytes are refused by the parser.
func NewReconciliationHandler(service ReconciliationUseCases, maxUploadSize int64) *ReconciliationHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = bankstatement.DefaultMaxSize
	}
	return &ReconciliationHandler{service: service, maxUploadSize: maxUploadSize}
}

// Candidates godoc
// @ID           reconciliationCandidates
// @Summary      Suggest bank transactions for a document
// @Description  Ranks unlinked transactions as EXACT, WITHIN_TOLERANCE or PARTIAL
// @Tags         reconciliation
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        document_type query string true "INVOICE or EXPENSE"
// @Param        document_id query string true "Document ID" format(uuid)
// @Success      200 {object} APIResponse[reconciliation.CandidatesResponse]
// @Failure      404 {object} ErrorResponse
// @Router       /reconciliation/candidates [get]
func (h *ReconciliationHandler) Candidates(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var req reconciliation.CandidatesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}
	resp, err := h.service.Candidates(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, resp)
}

// Link godoc
// @ID           createReconciliationLink
// @Summary      Link a transaction to a document
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        request body reconciliation.LinkRequest true "Link"
// @Success      201 {object} APIResponse[reconciliation.LinkResponse]
// @Failure      409 {object} ErrorResponse
// @Failure      422 {object} ErrorResponse
// @Router       /reconciliation/links [post]
func (h *ReconciliationHandler) Link(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	var req reconciliation.LinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	link, err := h.service.Link(c.Request.Context(), scope, actor, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, link)
}

// Import godoc
// @ID           importBankStatement
// @Summary      Import a bank statement CSV
// @Description  Rows already imported are counted as duplicates. Unreadable rows are reported per line.
// @Tags         reconciliation
// @Accept       multipart/form-data
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        file formData file true "CSV export"
// @Param        delimiter formData string false "Field delimiter, detected when empty"
// @Success      200 {object} APIResponse[reconciliation.ImportResult]
// @Failure      400 {object} ErrorResponse
// @Failure      413 {object} ErrorResponse
// @Router       /reconciliation/import [post]
func (h *ReconciliationHandler) Import(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	if _, ok := h.actor(c); !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		h.Error(c, shared.CodeMissingRequiredField, "file is required")
		return
	}
	opts := []bankstatement.ParserOption{bankstatement.WithMaxSize(h.maxUploadSize)}
	if d := c.PostForm("delimiter"); d != "" {
		r, size := utf8.DecodeRuneInString(d)
		if size != len(d) {
			h.Error(c, shared.CodeInvalidInput, "delimiter must be a single character")
			return
		}
		opts = append(opts, bankstatement.WithDelimiter(r))
	}

	f, err := fh.Open()
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	defer f.Close()

	res, err := h.service.ImportStatement(c.Request.Context(), scope, bankstatement.NewCSVParser(opts...), f)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, res)
}

// Transactions godoc
// @ID           listBankTransactions
// @Summary      List imported bank transactions
// @Tags         reconciliation
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        search query string false "Matches counterpart and purpose"
// @Param        from query string false "Booked on or after" format(date)
// @Param        to query string false "Booked on or before" format(date)
// @Param        unlinked_only query bool false "Only transactions without a link"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} APIResponse[[]reconciliation.TransactionResponse]
// @Router       /reconciliation/transactions [get]
func (h *ReconciliationHandler) Transactions(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var filter reconciliation.TransactionListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	page, err := h.service.ListTransactions(c.Request.Context(), scope, filter)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	SuccessPage(c, page)
}

// CreateRule godoc
// @ID           createCounterpartyRule
// @Summary      Add a counterparty rule
// @Description  Match is a glob over the counterpart name, e.g. "ACME*"
// @Tags         reconciliation
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        X-User-ID header string true "Acting user ID"
// @Param        request body reconciliation.CreateRuleRequest true "Rule"
// @Success      201 {object} APIResponse[reconciliation.RuleResponse]
// @Failure      400 {object} ErrorResponse
// @Router       /reconciliation/rules [post]
func (h *ReconciliationHandler) CreateRule(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	var req reconciliation.CreateRuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	rule, err := h.service.CreateRule(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Created(c, rule)
}

// ListRules godoc
// @ID           listCounterpartyRules
// @Summary      List counterparty rules by priority
// @Tags         reconciliation
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} APIResponse[[]reconciliation.RuleResponse]
// @Router       /reconciliation/rules [get]
func (h *ReconciliationHandler) ListRules(c *gin.Context) {
	scope, ok := h.scope(c)
	if !ok {
		return
	}
	rules, err := h.service.ListRules(c.Request.Context(), scope)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}
	h.Success(c, rules)
}
