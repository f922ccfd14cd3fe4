package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/reconciliation"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const unlinkedCondition = "NOT EXISTS (SELECT 1 FROM transaction_links l WHERE l.transaction_id = bank_transactions.id)"

// importBatchSize bounds the rows of one INSERT statement
const importBatchSize = 200

// GormBankTransactionRepository implements TransactionRepository using GORM
type GormBankTransactionRepository struct {
	db *gorm.DB
}

// NewGormBankTransactionRepository creates a new GormBankTransactionRepository
func NewGormBankTransactionRepository(db *gorm.DB) *GormBankTransactionRepository {
	return &GormBankTransactionRepository{db: db}
}

var _ reconciliation.TransactionRepository = (*GormBankTransactionRepository)(nil)

// FindByID finds a transaction of scope
func (r *GormBankTransactionRepository) FindByID(ctx context.Context, scope, id uuid.UUID) (*reconciliation.BankTransaction, error) {
	model, err := findScoped[models.BankTransactionModel](ctx, r.db, scope, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindUnlinked returns unlinked transactions of scope whose sign fits docType,
// newest booking first
func (r *GormBankTransactionRepository) FindUnlinked(ctx context.Context, scope uuid.UUID, docType reconciliation.DocumentType, limit int) ([]reconciliation.BankTransaction, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ?", scope).
		Where(unlinkedCondition)
	switch docType {
	case reconciliation.DocumentTypeInvoice:
		query = query.Where("amount > 0")
	case reconciliation.DocumentTypeExpense:
		query = query.Where("amount < 0")
	default:
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Document type is not valid")
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.BankTransactionModel
	if err := query.Order("booking_date DESC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find unlinked transactions: %w", err)
	}
	return bankTransactionsToDomain(rows), nil
}

// List returns a page of transactions of scope
func (r *GormBankTransactionRepository) List(ctx context.Context, scope uuid.UUID, filter reconciliation.TransactionFilter) (shared.Paginated[reconciliation.BankTransaction], error) {
	page := filter.Filter.Normalize()
	base := func() *gorm.DB {
		query := r.db.WithContext(ctx).Model(&models.BankTransactionModel{}).Where("tenant_id = ?", scope)
		if filter.From != nil {
			query = query.Where("booking_date >= ?", *filter.From)
		}
		if filter.To != nil {
			query = query.Where("booking_date <= ?", *filter.To)
		}
		if filter.UnlinkedOnly {
			query = query.Where(unlinkedCondition)
		}
		if page.Search != "" {
			pattern := "%" + page.Search + "%"
			query = query.Where("LOWER(counterpart_name) LIKE LOWER(?) OR LOWER(purpose) LIKE LOWER(?)", pattern, pattern)
		}
		return query
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return shared.Paginated[reconciliation.BankTransaction]{}, fmt.Errorf("count transactions: %w", err)
	}

	sortField := ValidateSortField(page.OrderBy, BankTransactionSortFields, "booking_date")
	sortOrder := ValidateSortOrder(page.OrderDir)
	var rows []models.BankTransactionModel
	if err := base().
		Order(sortField + " " + sortOrder).
		Offset(page.Offset()).
		Limit(page.PageSize).
		Find(&rows).Error; err != nil {
		return shared.Paginated[reconciliation.BankTransaction]{}, fmt.Errorf("list transactions: %w", err)
	}
	return shared.NewPaginated(bankTransactionsToDomain(rows), total, page.Page, page.PageSize), nil
}

// ImportBatch inserts txs and skips rows whose import hash is already stored
func (r *GormBankTransactionRepository) ImportBatch(ctx context.Context, txs []reconciliation.BankTransaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	rows := make([]*models.BankTransactionModel, len(txs))
	for i := range txs {
		rows[i] = models.BankTransactionModelFromDomain(&txs[i])
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "import_hash"}}, DoNothing: true}).
		CreateInBatches(rows, importBatchSize)
	if result.Error != nil {
		return 0, fmt.Errorf("import transactions: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func bankTransactionsToDomain(rows []models.BankTransactionModel) []reconciliation.BankTransaction {
	out := make([]reconciliation.BankTransaction, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
