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

var invoiceListSpec = listSpec{
	sortFields:   InvoiceSortFields,
	searchFields: []string{"invoice_number", "customer_name", "customer_email"},
	filterColumns: map[string]string{
		"status":                "status",
		"recurring_template_id": "recurring_template_id",
	},
}

// outputTaxStatuses are the invoice statuses that owe output tax
var outputTaxStatuses = []invoicing.InvoiceStatus{
	invoicing.InvoiceStatusSent,
	invoicing.InvoiceStatusViewed,
	invoicing.InvoiceStatusPaid,
	invoicing.InvoiceStatusOverdue,
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

var _ invoicing.InvoiceRepository = (*GormInvoiceRepository)(nil)

// GetByID finds an invoice of scope
func (r *GormInvoiceRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.Invoice, error) {
	model, err := findScoped[models.InvoiceModel](ctx, r.db, scope, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByID finds an invoice of any tenant
func (r *GormInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	model, err := findUnscoped[models.InvoiceModel](ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return model.ToDomain(), nil
}

// Create inserts a new invoice
func (r *GormInvoiceRepository) Create(ctx context.Context, inv *invoicing.Invoice, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	stampCreate(&inv.TenantAggregateRoot, actor)
	if err := r.db.WithContext(ctx).Create(models.InvoiceModelFromDomain(inv)).Error; err != nil {
		if isUniqueViolation(err) {
			return shared.NewDomainError(shared.CodeAlreadyExists, "Invoice number already exists: "+inv.InvoiceNumber)
		}
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// Update applies patch to an invoice of scope
func (r *GormInvoiceRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.InvoicePatch, actor shared.Actor) (*invoicing.Invoice, error) {
	inv, err := r.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if err := inv.ApplyPatch(patch, actor); err != nil {
		return nil, err
	}
	if err := r.Save(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// List returns a page of invoices of scope
func (r *GormInvoiceRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.Invoice], error) {
	return listScoped(ctx, r.db, scope, filter, invoiceListSpec, (*models.InvoiceModel).ToDomain)
}

// Save writes a modified invoice with an optimistic version check
func (r *GormInvoiceRepository) Save(ctx context.Context, inv *invoicing.Invoice) error {
	return saveVersioned(ctx, r.db, models.InvoiceModelFromDomain(inv), inv.ID, inv.Version)
}

// GenerateInvoiceNumber returns the next INV-YYYYMM-NNNNN number of scope for the month of at
func (r *GormInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, scope uuid.UUID, at time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s-", at.Format("200601"))
	return nextDocumentNumber(ctx, r.db, &models.InvoiceModel{}, "invoice_number", scope, prefix)
}

// FindOverdueCandidates returns SENT and VIEWED invoices due before asOf
func (r *GormInvoiceRepository) FindOverdueCandidates(ctx context.Context, scope uuid.UUID, asOf time.Time) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND due_date < ?", scope,
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusSent, invoicing.InvoiceStatusViewed},
			invoicing.DateOnly(asOf)).
		Order("due_date ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find overdue candidates: %w", err)
	}
	return invoicesToDomain(rows), nil
}

// TenantsWithOpenInvoices returns tenants holding SENT or VIEWED invoices due before asOf
func (r *GormInvoiceRepository) TenantsWithOpenInvoices(ctx context.Context, asOf time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Distinct("tenant_id").
		Where("status IN ? AND due_date < ?",
			[]invoicing.InvoiceStatus{invoicing.InvoiceStatusSent, invoicing.InvoiceStatusViewed},
			invoicing.DateOnly(asOf)).
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list tenants with open invoices: %w", err)
	}
	return ids, nil
}

// FindIssuedBetween returns invoices owing output tax issued in [from, to]
func (r *GormInvoiceRepository) FindIssuedBetween(ctx context.Context, scope uuid.UUID, from, to time.Time) ([]invoicing.Invoice, error) {
	var rows []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status IN ? AND issue_date >= ? AND issue_date <= ?", scope,
			outputTaxStatuses, invoicing.DateOnly(from), invoicing.DateOnly(to)).
		Order("issue_date ASC, invoice_number ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find issued invoices: %w", err)
	}
	return invoicesToDomain(rows), nil
}

func invoicesToDomain(rows []models.InvoiceModel) []invoicing.Invoice {
	out := make([]invoicing.Invoice, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}
