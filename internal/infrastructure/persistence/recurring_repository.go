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
	"gorm.io/gorm/clause"
)

var recurringTemplateListSpec = listSpec{
	sortFields:   RecurringTemplateSortFields,
	searchFields: []string{"name", "customer_name"},
	filterColumns: map[string]string{
		"status":    "status",
		"frequency": "frequency",
	},
}

// GormRecurringTemplateRepository implements RecurringTemplateRepository and
// RecurringRunStore using GORM
type GormRecurringTemplateRepository struct {
	db *gorm.DB
}

// NewGormRecurringTemplateRepository creates a new GormRecurringTemplateRepository
func NewGormRecurringTemplateRepository(db *gorm.DB) *GormRecurringTemplateRepository {
	return &GormRecurringTemplateRepository{db: db}
}

var (
	_ invoicing.RecurringTemplateRepository = (*GormRecurringTemplateRepository)(nil)
	_ invoicing.RecurringRunStore           = (*GormRecurringTemplateRepository)(nil)
)

// GetByID finds a template of scope
func (r *GormRecurringTemplateRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.RecurringTemplate, error) {
	model, err := findScoped[models.RecurringTemplateModel](ctx, r.db, scope, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new template
func (r *GormRecurringTemplateRepository) Create(ctx context.Context, t *invoicing.RecurringTemplate, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	stampCreate(&t.TenantAggregateRoot, actor)
	if err := r.db.WithContext(ctx).Create(models.RecurringTemplateModelFromDomain(t)).Error; err != nil {
		return fmt.Errorf("create recurring template: %w", err)
	}
	return nil
}

// Update applies patch to a template of scope
func (r *GormRecurringTemplateRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.RecurringTemplatePatch, actor shared.Actor) (*invoicing.RecurringTemplate, error) {
	t, err := r.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := t.ApplyPatch(patch, actor); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns a page of templates of scope
func (r *GormRecurringTemplateRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.RecurringTemplate], error) {
	return listScoped(ctx, r.db, scope, filter, recurringTemplateListSpec, (*models.RecurringTemplateModel).ToDomain)
}

// Save writes a modified template with an optimistic version check
func (r *GormRecurringTemplateRepository) Save(ctx context.Context, t *invoicing.RecurringTemplate) error {
	return saveVersioned(ctx, r.db, models.RecurringTemplateModelFromDomain(t), t.ID, t.Version)
}

// FindDue returns active templates of every tenant due at or before asOf,
// oldest due date first
func (r *GormRecurringTemplateRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]invoicing.RecurringTemplate, error) {
	query := r.db.WithContext(ctx).
		Where("status = ? AND next_execution_date <= ?", invoicing.RecurringStatusActive, invoicing.DateOnly(asOf)).
		Order("next_execution_date ASC, id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.RecurringTemplateModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find due templates: %w", err)
	}
	out := make([]invoicing.RecurringTemplate, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// CommitRun writes the execution record, the generated invoice and the
// advanced template in one transaction. The execution insert goes first so a
// concurrent run of the same date loses before it writes an invoice.
func (r *GormRecurringTemplateRepository) CommitRun(
	ctx context.Context,
	exec invoicing.RecurringExecution,
	inv *invoicing.Invoice,
	t *invoicing.RecurringTemplate,
) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exec.ScheduledDate = invoicing.DateOnly(exec.ScheduledDate)
		if exec.CreatedAt.IsZero() {
			exec.CreatedAt = time.Now()
		}
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(models.RecurringExecutionModelFromDomain(exec))
		if result.Error != nil {
			return fmt.Errorf("insert recurring execution: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return invoicing.ErrAlreadyExecuted
		}

		if err := tx.Create(models.InvoiceModelFromDomain(inv)).Error; err != nil {
			if isUniqueViolation(err) {
				return shared.NewDomainError(shared.CodeAlreadyExists, "Invoice number already exists: "+inv.InvoiceNumber)
			}
			return fmt.Errorf("insert recurring invoice: %w", err)
		}
		return saveVersioned(ctx, tx, models.RecurringTemplateModelFromDomain(t), t.ID, t.Version)
	})
}

// HasRun reports whether the template already ran for scheduledDate
func (r *GormRecurringTemplateRepository) HasRun(ctx context.Context, templateID uuid.UUID, scheduledDate time.Time) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.RecurringExecutionModel{}).
		Where("template_id = ? AND scheduled_date = ?", templateID, invoicing.DateOnly(scheduledDate)).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check recurring execution: %w", err)
	}
	return count > 0, nil
}

// Executions lists the recorded runs of a template, oldest first
func (r *GormRecurringTemplateRepository) Executions(ctx context.Context, scope, templateID uuid.UUID) ([]invoicing.RecurringExecution, error) {
	var rows []models.RecurringExecutionModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND template_id = ?", scope, templateID).
		Order("scheduled_date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list recurring executions: %w", err)
	}
	out := make([]invoicing.RecurringExecution, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out, nil
}
