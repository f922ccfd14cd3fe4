package reconciliation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
)

// Document is the slice of an invoice or expense the matcher needs
type Document struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	Type     DocumentType
	Amount   decimal.Decimal // gross, unsigned
}

// TransactionLink is a confirmed match between a transaction and a document.
// A transaction has at most one link.
type TransactionLink struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	TransactionID uuid.UUID
	DocumentID    uuid.UUID
	DocumentType  DocumentType
	MatchClass    MatchClass
	Difference    decimal.Decimal
	CreatedAt     time.Time
	CreatedBy     *uuid.UUID
}

// NewLink checks tenant, direction and tolerance and builds the link. It does
// not check for an existing link; the repository insert does.
func NewLink(tx *BankTransaction, doc Document, cfg ToleranceConfig, actor shared.Actor) (*TransactionLink, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if !doc.Type.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Document type is not valid")
	}
	if tx.TenantID != doc.TenantID {
		return nil, shared.ErrAccessDenied
	}
	if !doc.Type.Accepts(tx) {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Transaction direction does not fit a "+string(doc.Type))
	}
	class := ClassifyMatch(tx.Amount, doc.Amount, cfg)
	if !class.IsLinkable() {
		return nil, shared.ErrToleranceExceeded
	}
	return &TransactionLink{
		ID:            uuid.New(),
		TenantID:      tx.TenantID,
		TransactionID: tx.ID,
		DocumentID:    doc.ID,
		DocumentType:  doc.Type,
		MatchClass:    class,
		Difference:    Difference(tx.Amount, doc.Amount),
		CreatedAt:     time.Now(),
		CreatedBy:     actor.RecordID(),
	}, nil
}
