package reconciliation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/shared"
)

// TransactionFilter narrows a transaction listing
type TransactionFilter struct {
	shared.Filter
	From         *time.Time
	To           *time.Time
	UnlinkedOnly bool
}

// TransactionRepository reads and imports bank transactions
type TransactionRepository interface {
	FindByID(ctx context.Context, scope, id uuid.UUID) (*BankTransaction, error)
	// FindUnlinked returns transactions of scope with no link, using the
	// direction of docType as a pre-filter
	FindUnlinked(ctx context.Context, scope uuid.UUID, docType DocumentType, limit int) ([]BankTransaction, error)
	List(ctx context.Context, scope uuid.UUID, filter TransactionFilter) (shared.Paginated[BankTransaction], error)
	// ImportBatch inserts transactions, skipping import hashes already stored.
	// It returns the number inserted.
	ImportBatch(ctx context.Context, txs []BankTransaction) (int, error)
}

// LinkRepository persists links
type LinkRepository interface {
	// Create inserts the link or returns shared.ErrAlreadyLinked when the
	// transaction already has one
	Create(ctx context.Context, link *TransactionLink) error
	FindByTransaction(ctx context.Context, scope, transactionID uuid.UUID) (*TransactionLink, error)
	FindByDocument(ctx context.Context, scope, documentID uuid.UUID) ([]TransactionLink, error)
}

// RuleRepository loads counterparty rules
type RuleRepository interface {
	FindByTenant(ctx context.Context, scope uuid.UUID) ([]CounterpartyRule, error)
	Create(ctx context.Context, rule *CounterpartyRule) error
}
