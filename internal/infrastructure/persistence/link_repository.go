package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/reconciliation"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormTransactionLinkRepository implements LinkRepository using GORM
type GormTransactionLinkRepository struct {
	db *gorm.DB
}

// NewGormTransactionLinkRepository creates a new GormTransactionLinkRepository
func NewGormTransactionLinkRepository(db *gorm.DB) *GormTransactionLinkRepository {
	return &GormTransactionLinkRepository{db: db}
}

var _ reconciliation.LinkRepository = (*GormTransactionLinkRepository)(nil)

// Create inserts link unless the transaction already has one. The unique
// index on transaction_id decides between concurrent callers.
func (r *GormTransactionLinkRepository) Create(ctx context.Context, link *reconciliation.TransactionLink) error {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}}, DoNothing: true}).
		Create(models.TransactionLinkModelFromDomain(link))
	if result.Error != nil {
		return fmt.Errorf("create transaction link: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrAlreadyLinked
	}
	return nil
}

// FindByTransaction returns the link of a transaction of scope
func (r *GormTransactionLinkRepository) FindByTransaction(ctx context.Context, scope, transactionID uuid.UUID) (*reconciliation.TransactionLink, error) {
	var model models.TransactionLinkModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND transaction_id = ?", scope, transactionID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("find link by transaction: %w", err)
	}
	return model.ToDomain(), nil
}

// FindByDocument returns the links of a document of scope
func (r *GormTransactionLinkRepository) FindByDocument(ctx context.Context, scope, documentID uuid.UUID) ([]reconciliation.TransactionLink, error) {
	var rows []models.TransactionLinkModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND document_id = ?", scope, documentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find links by document: %w", err)
	}
	out := make([]reconciliation.TransactionLink, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}
