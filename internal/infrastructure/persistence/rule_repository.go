package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/reconciliation"
	"github.com/tilver/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormCounterpartyRuleRepository implements RuleRepository using GORM
type GormCounterpartyRuleRepository struct {
	db *gorm.DB
}

// NewGormCounterpartyRuleRepository creates a new GormCounterpartyRuleRepository
func NewGormCounterpartyRuleRepository(db *gorm.DB) *GormCounterpartyRuleRepository {
	return &GormCounterpartyRuleRepository{db: db}
}

var _ reconciliation.RuleRepository = (*GormCounterpartyRuleRepository)(nil)

// FindByTenant returns the rules of scope in ascending priority
func (r *GormCounterpartyRuleRepository) FindByTenant(ctx context.Context, scope uuid.UUID) ([]reconciliation.CounterpartyRule, error) {
	var rows []models.CounterpartyRuleModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", scope).
		Order("priority ASC, created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find counterparty rules: %w", err)
	}
	out := make([]reconciliation.CounterpartyRule, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}

// Create inserts a rule
func (r *GormCounterpartyRuleRepository) Create(ctx context.Context, rule *reconciliation.CounterpartyRule) error {
	if err := r.db.WithContext(ctx).Create(models.CounterpartyRuleModelFromDomain(rule)).Error; err != nil {
		return fmt.Errorf("create counterparty rule: %w", err)
	}
	return nil
}
