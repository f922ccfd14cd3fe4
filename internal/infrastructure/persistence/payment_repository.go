package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

var paymentListSpec = listSpec{
	sortFields:   PaymentSortFields,
	searchFields: []string{"reference"},
	filterColumns: map[string]string{
		"status":     "status",
		"direction":  "direction",
		"method":     "method",
		"invoice_id": "invoice_id",
		"expense_id": "expense_id",
		"reconciled": "reconciled",
	},
}

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

var _ invoicing.PaymentRepository = (*GormPaymentRepository)(nil)

// GetByID finds a payment of scope
func (r *GormPaymentRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.Payment, error) {
	model, err := findScoped[models.PaymentModel](ctx, r.db, scope, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new payment
func (r *GormPaymentRepository) Create(ctx context.Context, p *invoicing.Payment, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	stampCreate(&p.TenantAggregateRoot, actor)
	if err := r.db.WithContext(ctx).Create(models.PaymentModelFromDomain(p)).Error; err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// Update changes the reference of a payment; amounts never change after recording
func (r *GormPaymentRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.PaymentPatch, actor shared.Actor) (*invoicing.Payment, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Patch contains no changes")
	}
	p, err := r.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	p.Reference = strings.TrimSpace(*patch.Reference)
	p.Touch(actor)
	if err := r.Save(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns a page of payments of scope
func (r *GormPaymentRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.Payment], error) {
	return listScoped(ctx, r.db, scope, filter, paymentListSpec, (*models.PaymentModel).ToDomain)
}

// Save writes a modified payment with an optimistic version check
func (r *GormPaymentRepository) Save(ctx context.Context, p *invoicing.Payment) error {
	return saveVersioned(ctx, r.db, models.PaymentModelFromDomain(p), p.ID, p.Version)
}

// SaveWithRefund writes a refunded payment and inserts its reversing payment
// in one transaction, so neither is stored without the other.
func (r *GormPaymentRepository) SaveWithRefund(ctx context.Context, original, refund *invoicing.Payment, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	stampCreate(&refund.TenantAggregateRoot, actor)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := saveVersioned(ctx, tx, models.PaymentModelFromDomain(original), original.ID, original.Version); err != nil {
			return err
		}
		if err := tx.Create(models.PaymentModelFromDomain(refund)).Error; err != nil {
			return fmt.Errorf("create refund payment: %w", err)
		}
		return nil
	})
}

// FindByDocument returns the payments of scope recorded for an invoice or expense
func (r *GormPaymentRepository) FindByDocument(ctx context.Context, scope, documentID uuid.UUID) ([]invoicing.Payment, error) {
	var rows []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND (invoice_id = ? OR expense_id = ?)", scope, documentID, documentID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find payments by document: %w", err)
	}
	out := make([]invoicing.Payment, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}
