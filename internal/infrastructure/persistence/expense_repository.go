package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var expenseListSpec = listSpec{
	sortFields:   ExpenseSortFields,
	searchFields: []string{"expense_number", "vendor", "description"},
	filterColumns: map[string]string{
		"status":        "status",
		"category":      "category",
		"is_deductible": "is_deductible",
	},
}

// GormExpenseRepository implements ExpenseRepository using GORM
type GormExpenseRepository struct {
	db *gorm.DB
}

// NewGormExpenseRepository creates a new GormExpenseRepository
func NewGormExpenseRepository(db *gorm.DB) *GormExpenseRepository {
	return &GormExpenseRepository{db: db}
}

var _ invoicing.ExpenseRepository = (*GormExpenseRepository)(nil)

// GetByID finds an expense of scope
func (r *GormExpenseRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.Expense, error) {
	model, err := findScoped[models.ExpenseModel](ctx, r.db, scope, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an expense of any tenant
func (r *GormExpenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Expense, error) {
	model, err := findUnscoped[models.ExpenseModel](ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new expense
func (r *GormExpenseRepository) Create(ctx context.Context, e *invoicing.Expense, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	stampCreate(&e.TenantAggregateRoot, actor)
	if err := r.db.WithContext(ctx).Create(models.ExpenseModelFromDomain(e)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Expense number already exists: "+e.ExpenseNumber)
		}
		return fmt.Errorf("create expense: %w", err)
	}
	return nil
}

// Update applies patch to a draft expense of scope
func (r *GormExpenseRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.ExpensePatch, actor shared.Actor) (*invoicing.Expense, error) {
	e, err := r.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := e.ApplyPatch(patch, actor); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// List returns a page of expenses of scope
func (r *GormExpenseRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.Expense], error) {
	return listScoped(ctx, r.db, scope, filter, expenseListSpec, (*models.ExpenseModel).ToDomain)
}

// Save writes a modified expense with an optimistic version check
func (r *GormExpenseRepository) Save(ctx context.Context, e *invoicing.Expense) error {
	return saveVersioned(ctx, r.db, models.ExpenseModelFromDomain(e), e.ID, e.Version)
}

// GenerateExpenseNumber returns the next EXP-YYYYMM-NNNNN number of scope for the month of at
func (r *GormExpenseRepository) GenerateExpenseNumber(ctx context.Context, scope uuid.UUID, at time.Time) (string, error) {
	prefix := fmt.Sprintf("EXP-%s-", at.Format("200601"))
	return nextDocumentNumber(ctx, r.db, &models.ExpenseModel{}, "expense_number", scope, prefix)
}

// FindDeductibleBetween returns approved or paid deductible expenses incurred in [from, to]
func (r *GormExpenseRepository) FindDeductibleBetween(ctx context.Context, scope uuid.UUID, from, to time.Time) ([]invoicing.Expense, error) {
	var rows []models.ExpenseModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_deductible = ? AND status IN ? AND incurred_at >= ? AND incurred_at <= ?",
			scope, true,
			[]invoicing.ExpenseStatus{invoicing.ExpenseStatusApproved, invoicing.ExpenseStatusPaid},
			invoicing.DateOnly(from), invoicing.DateOnly(to)).
		Order("incurred_at ASC, expense_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find deductible expenses: %w", err)
	}
	out := make([]invoicing.Expense, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}
