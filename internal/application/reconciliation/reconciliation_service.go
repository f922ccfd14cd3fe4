// Package reconciliation matches imported bank transactions to invoices and
// expenses and records confirmed links.
package reconciliation

import (
	"context"
	"io"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/reconciliation"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultCandidateLimit caps unlinked transactions loaded per suggestion
const DefaultCandidateLimit = 200

// StatementParser reads a bank statement export. Rows it cannot read are
// returned as line errors; a malformed file is an error.
type StatementParser interface {
	Parse(r io.Reader) ([]reconciliation.StatementLine, []reconciliation.LineError, error)
}

// Service provides candidate search, linking and statement import
type Service struct {
	txRepo         reconciliation.TransactionRepository
	linkRepo       reconciliation.LinkRepository
	ruleRepo       reconciliation.RuleRepository
	invoiceRepo    invoicing.InvoiceRepository
	expenseRepo    invoicing.ExpenseRepository
	paymentRepo    invoicing.PaymentRepository
	tolerance      reconciliation.ToleranceConfig
	candidateLimit int
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// NewService creates a new reconciliation Service
func NewService(
	txRepo reconciliation.TransactionRepository,
	linkRepo reconciliation.LinkRepository,
	ruleRepo reconciliation.RuleRepository,
	invoiceRepo invoicing.InvoiceRepository,
	expenseRepo invoicing.ExpenseRepository,
	paymentRepo invoicing.PaymentRepository,
	tolerance reconciliation.ToleranceConfig,
) *Service {
	return &Service{
		txRepo:         txRepo,
		linkRepo:       linkRepo,
		ruleRepo:       ruleRepo,
		invoiceRepo:    invoiceRepo,
		expenseRepo:    expenseRepo,
		paymentRepo:    paymentRepo,
		tolerance:      tolerance,
		candidateLimit: DefaultCandidateLimit,
		logger:         zap.NewNop(),
	}
}

// SetLedgerMetrics sets the metrics recorder
func (s *Service) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the logger
func (s *Service) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetCandidateLimit overrides DefaultCandidateLimit
func (s *Service) SetCandidateLimit(limit int) {
	if limit > 0 {
		s.candidateLimit = limit
	}
}

// document resolves a document regardless of tenant; one owned by another
// tenant is ACCESS_DENIED, not NOT_FOUND.
func (s *Service) document(ctx context.Context, scope uuid.UUID, docType reconciliation.DocumentType, id uuid.UUID) (reconciliation.Document, error) {
	var doc reconciliation.Document
	switch docType {
	case reconciliation.DocumentTypeInvoice:
		inv, err := s.invoiceRepo.FindByID(ctx, id)
		if err != nil {
			return doc, err
		}
		doc = reconciliation.Document{ID: inv.ID, TenantID: inv.TenantID, Type: docType, Amount: inv.GrossAmount}
	case reconciliation.DocumentTypeExpense:
		exp, err := s.expenseRepo.FindByID(ctx, id)
		if err != nil {
			return doc, err
		}
		doc = reconciliation.Document{ID: exp.ID, TenantID: exp.TenantID, Type: docType, Amount: exp.GrossAmount}
	default:
		return doc, shared.NewDomainError(shared.CodeInvalidInput, "Document type is not valid: "+string(docType))
	}
	if doc.TenantID != scope {
		return doc, shared.ErrAccessDenied
	}
	return doc, nil
}

func (s *Service) rules(ctx context.Context, scope uuid.UUID) reconciliation.RuleSet {
	if s.ruleRepo == nil {
		return nil
	}
	rules, err := s.ruleRepo.FindByTenant(ctx, scope)
	if err != nil {
		s.logger.Warn("failed to load counterparty rules, ranking without them",
			zap.String("tenant_id", scope.String()),
			zap.Error(err),
		)
		return nil
	}
	return reconciliation.NewRuleSet(rules)
}

// Candidates returns unlinked transactions that may settle the document,
// best match first. REJECTED matches are left out.
func (s *Service) Candidates(ctx context.Context, scope uuid.UUID, req CandidatesRequest) (*CandidatesResponse, error) {
	docID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Invalid document ID")
	}
	docType := reconciliation.DocumentType(req.DocumentType)
	doc, err := s.document(ctx, scope, docType, docID)
	if err != nil {
		return nil, err
	}

	txs, err := s.txRepo.FindUnlinked(ctx, scope, docType, s.candidateLimit)
	if err != nil {
		return nil, err
	}

	ranked := reconciliation.Suggest(txs, docType, doc.Amount, s.tolerance, s.rules(ctx, scope))
	resp := &CandidatesResponse{
		DocumentType:   string(docType),
		DocumentID:     doc.ID,
		DocumentAmount: doc.Amount,
		Candidates:     make([]CandidateResponse, len(ranked)),
	}
	for i := range ranked {
		resp.Candidates[i] = CandidateResponse{
			Transaction: ToTransactionResponse(&ranked[i].Transaction),
			MatchClass:  string(ranked[i].MatchClass),
			Difference:  ranked[i].Difference,
			RuleMatched: ranked[i].RuleMatched,
		}
	}
	return resp, nil
}

// Link confirms a transaction as settling a document. Completed payments of
// the document are marked reconciled with the link's difference.
func (s *Service) Link(ctx context.Context, scope uuid.UUID, actor shared.Actor, req LinkRequest) (_ *LinkResponse, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "link", scope.String(),
		telemetry.SpanAttrTransactionID.String(req.TransactionID.String()),
		telemetry.SpanAttrDocumentType.String(req.DocumentType),
		telemetry.SpanAttrDocumentID.String(req.DocumentID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	tx, err := s.txRepo.FindByID(ctx, scope, req.TransactionID)
	if err != nil {
		return nil, err
	}
	doc, err := s.document(ctx, scope, reconciliation.DocumentType(req.DocumentType), req.DocumentID)
	if err != nil {
		return nil, err
	}

	link, err := reconciliation.NewLink(tx, doc, s.tolerance, actor)
	if err != nil {
		return nil, err
	}
	if err := s.linkRepo.Create(ctx, link); err != nil {
		return nil, err
	}

	reconciled := s.reconcilePayments(ctx, scope, link, actor)
	if s.metrics != nil {
		s.metrics.RecordLink(ctx, scope, string(link.DocumentType), string(link.MatchClass), link.Difference)
	}
	s.logger.Info("transaction linked",
		zap.String("transaction_id", link.TransactionID.String()),
		zap.String("document_id", link.DocumentID.String()),
		zap.String("match_class", string(link.MatchClass)),
		zap.String("difference", link.Difference.StringFixed(2)),
	)

	resp := toLinkResponse(link)
	resp.ReconciledPayments = reconciled
	return &resp, nil
}

func (s *Service) reconcilePayments(ctx context.Context, scope uuid.UUID, link *reconciliation.TransactionLink, actor shared.Actor) int {
	if s.paymentRepo == nil {
		return 0
	}
	payments, err := s.paymentRepo.FindByDocument(ctx, scope, link.DocumentID)
	if err != nil {
		s.logger.Warn("failed to load payments for reconciliation",
			zap.String("document_id", link.DocumentID.String()),
			zap.Error(err),
		)
		return 0
	}

	count := 0
	for i := range payments {
		p := &payments[i]
		if p.Status != invoicing.PaymentStatusCompleted || p.Reconciliation.Reconciled || p.OriginalPaymentID != nil {
			continue
		}
		p.MarkReconciled(link.Difference, link.CreatedAt, actor)
		if err := s.paymentRepo.Save(ctx, p); err != nil {
			s.logger.Warn("failed to mark payment reconciled",
				zap.String("payment_id", p.ID.String()),
				zap.Error(err),
			)
			continue
		}
		count++
	}
	return count
}

// ImportStatement parses a statement and stores its transactions for scope.
// Rows already imported are counted as duplicates.
func (s *Service) ImportStatement(ctx context.Context, scope uuid.UUID, parser StatementParser, r io.Reader) (_ *ImportResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "reconciliation", "import_statement", scope.String())
	defer func() { telemetry.EndSpan(span, err) }()

	lines, lineErrs, err := parser.Parse(r)
	if err != nil {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Statement could not be read: "+err.Error())
	}

	result := &ImportResult{Parsed: len(lines)}
	for _, le := range lineErrs {
		result.Errors = append(result.Errors, RowError{Row: le.Row, Message: le.Message})
	}

	txs := make([]reconciliation.BankTransaction, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		tx, err := line.ToTransaction(scope)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: line.Row, Message: err.Error()})
			continue
		}
		if _, dup := seen[tx.ImportHash]; dup {
			result.Duplicates++
			continue
		}
		seen[tx.ImportHash] = struct{}{}
		txs = append(txs, *tx)
	}

	if len(txs) > 0 {
		inserted, err := s.txRepo.ImportBatch(ctx, txs)
		if err != nil {
			return nil, err
		}
		result.Imported = inserted
		result.Duplicates += len(txs) - inserted
	}

	if s.metrics != nil {
		s.metrics.RecordImported(ctx, scope, result.Imported)
	}
	s.logger.Info("bank statement imported",
		zap.String("tenant_id", scope.String()),
		zap.Int("parsed", result.Parsed),
		zap.Int("imported", result.Imported),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("errors", len(result.Errors)),
	)
	return result, nil
}

// ListTransactions returns a page of bank transactions of scope
func (s *Service) ListTransactions(ctx context.Context, scope uuid.UUID, f TransactionListFilter) (*shared.Paginated[TransactionResponse], error) {
	filter := reconciliation.TransactionFilter{
		Filter:       shared.DefaultFilter(),
		From:         f.From,
		To:           f.To,
		UnlinkedOnly: f.UnlinkedOnly,
	}
	filter.Search = f.Search
	filter.OrderBy = "booking_date"
	if f.Page > 0 {
		filter.Page = f.Page
	}
	if f.PageSize > 0 {
		filter.PageSize = f.PageSize
	}
	filter.Filter = filter.Filter.Normalize()

	page, err := s.txRepo.List(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	items := make([]TransactionResponse, len(page.Items))
	for i := range page.Items {
		items[i] = ToTransactionResponse(&page.Items[i])
	}
	out := shared.NewPaginated(items, page.Total, page.Page, page.PageSize)
	return &out, nil
}

// CreateRule adds a counterparty rule
func (s *Service) CreateRule(ctx context.Context, scope uuid.UUID, req CreateRuleRequest) (*RuleResponse, error) {
	rule, err := reconciliation.NewCounterpartyRule(scope, req.Priority, req.Match,
		reconciliation.DocumentType(req.DocumentType), req.CustomerHint)
	if err != nil {
		return nil, err
	}
	if err := s.ruleRepo.Create(ctx, rule); err != nil {
		return nil, err
	}
	resp := toRuleResponse(rule)
	return &resp, nil
}

// ListRules returns the rules of scope in evaluation order
func (s *Service) ListRules(ctx context.Context, scope uuid.UUID) ([]RuleResponse, error) {
	rules, err := s.ruleRepo.FindByTenant(ctx, scope)
	if err != nil {
		return nil, err
	}
	set := reconciliation.NewRuleSet(rules)
	out := make([]RuleResponse, len(set))
	for i := range set {
		out[i] = toRuleResponse(&set[i])
	}
	return out, nil
}
