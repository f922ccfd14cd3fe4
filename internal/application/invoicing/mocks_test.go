package invoicing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

// =============================================================================
// Mock Invoice Repository
// =============================================================================

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, entity *invoicing.Invoice, actor shared.Actor) error {
	args := m.Called(ctx, entity, actor)
	return args.Error(0)
}

func (m *MockInvoiceRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.InvoicePatch, actor shared.Actor) (*invoicing.Invoice, error) {
	args := m.Called(ctx, scope, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.Invoice], error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).(shared.Paginated[invoicing.Invoice]), args.Error(1)
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Invoice, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) Save(ctx context.Context, invoice *invoicing.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) GenerateInvoiceNumber(ctx context.Context, scope uuid.UUID, at time.Time) (string, error) {
	args := m.Called(ctx, scope, at)
	return args.String(0), args.Error(1)
}

func (m *MockInvoiceRepository) FindOverdueCandidates(ctx context.Context, scope uuid.UUID, asOf time.Time) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, scope, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindIssuedBetween(ctx context.Context, scope uuid.UUID, from, to time.Time) ([]invoicing.Invoice, error) {
	args := m.Called(ctx, scope, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Invoice), args.Error(1)
}

// =============================================================================
// Mock Expense Repository
// =============================================================================

type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.Expense, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Expense), args.Error(1)
}

func (m *MockExpenseRepository) Create(ctx context.Context, entity *invoicing.Expense, actor shared.Actor) error {
	args := m.Called(ctx, entity, actor)
	return args.Error(0)
}

func (m *MockExpenseRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.ExpensePatch, actor shared.Actor) (*invoicing.Expense, error) {
	args := m.Called(ctx, scope, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Expense), args.Error(1)
}

func (m *MockExpenseRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.Expense], error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).(shared.Paginated[invoicing.Expense]), args.Error(1)
}

func (m *MockExpenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*invoicing.Expense, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Expense), args.Error(1)
}

func (m *MockExpenseRepository) Save(ctx context.Context, expense *invoicing.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) GenerateExpenseNumber(ctx context.Context, scope uuid.UUID, at time.Time) (string, error) {
	args := m.Called(ctx, scope, at)
	return args.String(0), args.Error(1)
}

func (m *MockExpenseRepository) FindDeductibleBetween(ctx context.Context, scope uuid.UUID, from, to time.Time) ([]invoicing.Expense, error) {
	args := m.Called(ctx, scope, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Expense), args.Error(1)
}

// =============================================================================
// Mock Payment Repository
// =============================================================================

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.Payment, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, entity *invoicing.Payment, actor shared.Actor) error {
	args := m.Called(ctx, entity, actor)
	return args.Error(0)
}

func (m *MockPaymentRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.PaymentPatch, actor shared.Actor) (*invoicing.Payment, error) {
	args := m.Called(ctx, scope, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.Payment), args.Error(1)
}

func (m *MockPaymentRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.Payment], error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).(shared.Paginated[invoicing.Payment]), args.Error(1)
}

func (m *MockPaymentRepository) Save(ctx context.Context, payment *invoicing.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithRefund(ctx context.Context, original, refund *invoicing.Payment, actor shared.Actor) error {
	args := m.Called(ctx, original, refund, actor)
	return args.Error(0)
}

func (m *MockPaymentRepository) FindByDocument(ctx context.Context, scope, documentID uuid.UUID) ([]invoicing.Payment, error) {
	args := m.Called(ctx, scope, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.Payment), args.Error(1)
}

// =============================================================================
// Mock Recurring Template Repository
// =============================================================================

type MockRecurringTemplateRepository struct {
	mock.Mock
}

func (m *MockRecurringTemplateRepository) GetByID(ctx context.Context, scope, id uuid.UUID) (*invoicing.RecurringTemplate, error) {
	args := m.Called(ctx, scope, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.RecurringTemplate), args.Error(1)
}

func (m *MockRecurringTemplateRepository) Create(ctx context.Context, entity *invoicing.RecurringTemplate, actor shared.Actor) error {
	args := m.Called(ctx, entity, actor)
	return args.Error(0)
}

func (m *MockRecurringTemplateRepository) Update(ctx context.Context, scope, id uuid.UUID, patch invoicing.RecurringTemplatePatch, actor shared.Actor) (*invoicing.RecurringTemplate, error) {
	args := m.Called(ctx, scope, id, patch, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*invoicing.RecurringTemplate), args.Error(1)
}

func (m *MockRecurringTemplateRepository) List(ctx context.Context, scope uuid.UUID, filter shared.Filter) (shared.Paginated[invoicing.RecurringTemplate], error) {
	args := m.Called(ctx, scope, filter)
	return args.Get(0).(shared.Paginated[invoicing.RecurringTemplate]), args.Error(1)
}

func (m *MockRecurringTemplateRepository) Save(ctx context.Context, template *invoicing.RecurringTemplate) error {
	args := m.Called(ctx, template)
	return args.Error(0)
}

func (m *MockRecurringTemplateRepository) FindDue(ctx context.Context, asOf time.Time, limit int) ([]invoicing.RecurringTemplate, error) {
	args := m.Called(ctx, asOf, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]invoicing.RecurringTemplate), args.Error(1)
}

// =============================================================================
// Mock Event Publisher and Locker
// =============================================================================

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

type MockLocker struct {
	mock.Mock
}

func (m *MockLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (shared.Lock, error) {
	args := m.Called(ctx, key, ttl)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(shared.Lock), args.Error(1)
}

type MockLock struct {
	mock.Mock
}

func (m *MockLock) Release(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// =============================================================================
// Fakes with state
// =============================================================================

// fakeIdempotencyStore is a map-backed IdempotencyStore
type fakeIdempotencyStore struct {
	mu   sync.Mutex
	keys map[string]bool
}

func newFakeIdempotencyStore() *fakeIdempotencyStore {
	return &fakeIdempotencyStore{keys: make(map[string]bool)}
}

func (f *fakeIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func (f *fakeIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.keys[key], nil
}

func (f *fakeIdempotencyStore) Release(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keys, key)
	return nil
}

func (f *fakeIdempotencyStore) Close() error { return nil }

// fakeRunStore behaves like the unique (template_id, scheduled_date) index.
// It keeps the last committed template so tests can read persisted totals.
type fakeRunStore struct {
	mu         sync.Mutex
	runs       map[string]invoicing.RecurringExecution
	invoices   []*invoicing.Invoice
	committed  map[uuid.UUID]invoicing.RecurringTemplate
	hideHasRun bool
	commitErr  error
}

func newFakeRunStore() *fakeRunStore {
	return &fakeRunStore{
		runs:      make(map[string]invoicing.RecurringExecution),
		committed: make(map[uuid.UUID]invoicing.RecurringTemplate),
	}
}

func runKey(templateID uuid.UUID, d time.Time) string {
	return templateID.String() + "/" + d.Format("2006-01-02")
}

func (f *fakeRunStore) CommitRun(_ context.Context, exec invoicing.RecurringExecution, inv *invoicing.Invoice, t *invoicing.RecurringTemplate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.commitErr != nil {
		return f.commitErr
	}
	k := runKey(exec.TemplateID, exec.ScheduledDate)
	if _, ok := f.runs[k]; ok {
		return invoicing.ErrAlreadyExecuted
	}
	f.runs[k] = exec
	f.invoices = append(f.invoices, inv)
	f.committed[t.ID] = *t
	return nil
}

func (f *fakeRunStore) HasRun(_ context.Context, templateID uuid.UUID, scheduledDate time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hideHasRun {
		return false, nil
	}
	_, ok := f.runs[runKey(templateID, scheduledDate)]
	return ok, nil
}

func (f *fakeRunStore) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}
