package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/reconciliation"
)

// BankTransactionModel is the persistence model for an imported bank transaction.
// Rows are insert-only; import_hash is globally unique because it already
// folds in the tenant.
type BankTransactionModel struct {
	BaseModel
	TenantID        uuid.UUID       `gorm:"type:uuid;not null;index:idx_bank_transactions_tenant_date,priority:1"`
	Amount          decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	BookingDate     time.Time       `gorm:"type:date;not null;index:idx_bank_transactions_tenant_date,priority:2"`
	CounterpartName string          `gorm:"type:varchar(200)"`
	Purpose         string          `gorm:"type:text"`
	IBAN            string          `gorm:"column:iban;type:varchar(34)"`
	ImportHash      string          `gorm:"type:varchar(64);not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (BankTransactionModel) TableName() string {
	return "bank_transactions"
}

// ToDomain converts the persistence model to a domain BankTransaction
func (m *BankTransactionModel) ToDomain() *reconciliation.BankTransaction {
	return &reconciliation.BankTransaction{
		BaseEntity:      m.BaseModel.ToDomain(),
		TenantID:        m.TenantID,
		Amount:          m.Amount,
		BookingDate:     m.BookingDate,
		CounterpartName: m.CounterpartName,
		Purpose:         m.Purpose,
		IBAN:            m.IBAN,
		ImportHash:      m.ImportHash,
	}
}

// BankTransactionModelFromDomain creates a new persistence model from a domain BankTransaction
func BankTransactionModelFromDomain(t *reconciliation.BankTransaction) *BankTransactionModel {
	m := &BankTransactionModel{
		TenantID:        t.TenantID,
		Amount:          t.Amount,
		BookingDate:     t.BookingDate,
		CounterpartName: t.CounterpartName,
		Purpose:         t.Purpose,
		IBAN:            t.IBAN,
		ImportHash:      t.ImportHash,
	}
	m.FromDomainBaseEntity(t.BaseEntity)
	return m
}

// TransactionLinkModel is the persistence model for a confirmed match.
// The unique index on transaction_id allows one link per transaction.
type TransactionLinkModel struct {
	ID            uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID                   `gorm:"type:uuid;not null;index"`
	TransactionID uuid.UUID                   `gorm:"type:uuid;not null;uniqueIndex"`
	DocumentID    uuid.UUID                   `gorm:"type:uuid;not null;index"`
	DocumentType  reconciliation.DocumentType `gorm:"type:varchar(10);not null"`
	MatchClass    reconciliation.MatchClass   `gorm:"type:varchar(20);not null"`
	Difference    decimal.Decimal             `gorm:"type:decimal(18,4);not null"`
	CreatedAt     time.Time                   `gorm:"not null"`
	CreatedBy     *uuid.UUID                  `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (TransactionLinkModel) TableName() string {
	return "transaction_links"
}

// ToDomain converts the persistence model to a domain TransactionLink
func (m *TransactionLinkModel) ToDomain() *reconciliation.TransactionLink {
	return &reconciliation.TransactionLink{
		ID:            m.ID,
		TenantID:      m.TenantID,
		TransactionID: m.TransactionID,
		DocumentID:    m.DocumentID,
		DocumentType:  m.DocumentType,
		MatchClass:    m.MatchClass,
		Difference:    m.Difference,
		CreatedAt:     m.CreatedAt,
		CreatedBy:     m.CreatedBy,
	}
}

// TransactionLinkModelFromDomain creates a new persistence model from a domain TransactionLink
func TransactionLinkModelFromDomain(l *reconciliation.TransactionLink) *TransactionLinkModel {
	return &TransactionLinkModel{
		ID:            l.ID,
		TenantID:      l.TenantID,
		TransactionID: l.TransactionID,
		DocumentID:    l.DocumentID,
		DocumentType:  l.DocumentType,
		MatchClass:    l.MatchClass,
		Difference:    l.Difference,
		CreatedAt:     l.CreatedAt,
		CreatedBy:     l.CreatedBy,
	}
}

// CounterpartyRuleModel is the persistence model for a counterparty glob rule
type CounterpartyRuleModel struct {
	BaseModel
	TenantID     uuid.UUID                   `gorm:"type:uuid;not null;index"`
	Priority     int                         `gorm:"not null;default:0"`
	Match        string                      `gorm:"column:match_pattern;type:varchar(200);not null"`
	DocumentType reconciliation.DocumentType `gorm:"type:varchar(10);not null"`
	CustomerHint string                      `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (CounterpartyRuleModel) TableName() string {
	return "counterparty_rules"
}

// ToDomain converts the persistence model to a domain CounterpartyRule
func (m *CounterpartyRuleModel) ToDomain() reconciliation.CounterpartyRule {
	return reconciliation.CounterpartyRule{
		ID:           m.ID,
		TenantID:     m.TenantID,
		Priority:     m.Priority,
		Match:        m.Match,
		DocumentType: m.DocumentType,
		CustomerHint: m.CustomerHint,
	}
}

// CounterpartyRuleModelFromDomain creates a new persistence model from a domain CounterpartyRule
func CounterpartyRuleModelFromDomain(r *reconciliation.CounterpartyRule) *CounterpartyRuleModel {
	now := time.Now()
	return &CounterpartyRuleModel{
		BaseModel:    BaseModel{ID: r.ID, CreatedAt: now, UpdatedAt: now},
		TenantID:     r.TenantID,
		Priority:     r.Priority,
		Match:        r.Match,
		DocumentType: r.DocumentType,
		CustomerHint: r.CustomerHint,
	}
}

// LedgerModels lists every ledger table for AutoMigrate in tests and dev setups
func LedgerModels() []any {
	return []any{
		&InvoiceModel{},
		&ExpenseModel{},
		&PaymentModel{},
		&RecurringTemplateModel{},
		&RecurringExecutionModel{},
		&BankTransactionModel{},
		&TransactionLinkModel{},
		&CounterpartyRuleModel{},
	}
}
