package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/reconciliation"
)

// CandidatesRequest selects the document to find transactions for
type CandidatesRequest struct {
	DocumentType string `form:"document_type" binding:"required,oneof=INVOICE EXPENSE"`
	DocumentID   string `form:"document_id" binding:"required,uuid"`
}

// LinkRequest confirms a match
type LinkRequest struct {
	TransactionID uuid.UUID `json:"transaction_id" binding:"required"`
	DocumentType  string    `json:"document_type" binding:"required,oneof=INVOICE EXPENSE"`
	DocumentID    uuid.UUID `json:"document_id" binding:"required"`
}

// CreateRuleRequest represents a request to add a counterparty rule
type CreateRuleRequest struct {
	Priority     int    `json:"priority" binding:"min=0"`
	Match        string `json:"match" binding:"required,max=200"`
	DocumentType string `json:"document_type" binding:"required,oneof=INVOICE EXPENSE"`
	CustomerHint string `json:"customer_hint" binding:"max=200"`
}

// TransactionListFilter is the list query for bank transactions
type TransactionListFilter struct {
	Search       string     `form:"search"`
	From         *time.Time `form:"from" time_format:"2006-01-02" time_utc:"1"`
	To           *time.Time `form:"to" time_format:"2006-01-02" time_utc:"1"`
	UnlinkedOnly bool       `form:"unlinked_only"`
	Page         int        `form:"page" binding:"omitempty,min=1"`
	PageSize     int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// TransactionResponse represents a bank transaction in API responses
type TransactionResponse struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	Amount          decimal.Decimal `json:"amount"`
	BookingDate     time.Time       `json:"booking_date"`
	CounterpartName string          `json:"counterpart_name"`
	Purpose         string          `json:"purpose"`
	IBAN            string          `json:"iban,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// ToTransactionResponse converts a domain transaction
func ToTransactionResponse(tx *reconciliation.BankTransaction) TransactionResponse {
	return TransactionResponse{
		ID:              tx.ID,
		TenantID:        tx.TenantID,
		Amount:          tx.Amount,
		BookingDate:     tx.BookingDate,
		CounterpartName: tx.CounterpartName,
		Purpose:         tx.Purpose,
		IBAN:            tx.IBAN,
		CreatedAt:       tx.CreatedAt,
	}
}

// CandidateResponse is one ranked suggestion
type CandidateResponse struct {
	Transaction TransactionResponse `json:"transaction"`
	MatchClass  string              `json:"match_class"`
	Difference  decimal.Decimal     `json:"difference"`
	RuleMatched bool                `json:"rule_matched"`
}

// CandidatesResponse lists suggestions for one document
type CandidatesResponse struct {
	DocumentType   string              `json:"document_type"`
	DocumentID     uuid.UUID           `json:"document_id"`
	DocumentAmount decimal.Decimal     `json:"document_amount"`
	Candidates     []CandidateResponse `json:"candidates"`
}

// LinkResponse represents a created link
type LinkResponse struct {
	ID                 uuid.UUID       `json:"id"`
	TransactionID      uuid.UUID       `json:"transaction_id"`
	DocumentID         uuid.UUID       `json:"document_id"`
	DocumentType       string          `json:"document_type"`
	MatchClass         string          `json:"match_class"`
	Difference         decimal.Decimal `json:"difference"`
	ReconciledPayments int             `json:"reconciled_payments"`
	CreatedAt          time.Time       `json:"created_at"`
	CreatedBy          *uuid.UUID      `json:"created_by,omitempty"`
}

func toLinkResponse(l *reconciliation.TransactionLink) LinkResponse {
	return LinkResponse{
		ID:            l.ID,
		TransactionID: l.TransactionID,
		DocumentID:    l.DocumentID,
		DocumentType:  string(l.DocumentType),
		MatchClass:    string(l.MatchClass),
		Difference:    l.Difference,
		CreatedAt:     l.CreatedAt,
		CreatedBy:     l.CreatedBy,
	}
}

// RuleResponse represents a counterparty rule
type RuleResponse struct {
	ID           uuid.UUID `json:"id"`
	Priority     int       `json:"priority"`
	Match        string    `json:"match"`
	DocumentType string    `json:"document_type"`
	CustomerHint string    `json:"customer_hint,omitempty"`
}

func toRuleResponse(r *reconciliation.CounterpartyRule) RuleResponse {
	return RuleResponse{
		ID:           r.ID,
		Priority:     r.Priority,
		Match:        r.Match,
		DocumentType: string(r.DocumentType),
		CustomerHint: r.CustomerHint,
	}
}

// RowError reports a statement row that could not be imported
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult summarizes a statement import
type ImportResult struct {
	Parsed     int        `json:"parsed"`
	Imported   int        `json:"imported"`
	Duplicates int        `json:"duplicates"`
	Errors     []RowError `json:"errors,omitempty"`
}
