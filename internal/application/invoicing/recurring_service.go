package invoicing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// RecurringConfig tunes recurring runs
type RecurringConfig struct {
	// LockTTL bounds how long one instance may hold a template
	LockTTL time.Duration
	// IdempotencyTTL is how long a (template, date) key is remembered
	IdempotencyTTL time.Duration
	// BatchSize caps templates loaded per ExecuteDue call
	BatchSize int
	// MaxCatchUp caps due dates executed per template in one run
	MaxCatchUp int
}

// DefaultRecurringConfig returns the defaults used when config leaves values unset
func DefaultRecurringConfig() RecurringConfig {
	return RecurringConfig{
		LockTTL:        2 * time.Minute,
		IdempotencyTTL: 72 * time.Hour,
		BatchSize:      500,
		MaxCatchUp:     24,
	}
}

// RecurringIdempotencyKey names one (template, due date) run
func RecurringIdempotencyKey(templateID uuid.UUID, scheduled time.Time) string {
	return fmt.Sprintf("recurring:%s:%s", templateID, scheduled.Format("2006-01-02"))
}

// RecurringLockKey names the per-template distributed lock
func RecurringLockKey(templateID uuid.UUID) string {
	return "recurring:lock:" + templateID.String()
}

// RecurringService manages recurring templates and generates their invoices.
//
// A (template, due date) pair produces at most one invoice. Three layers keep
// it that way: a per-template lock, an idempotency key, and the unique
// execution record written in the same transaction as the invoice.
type RecurringService struct {
	templateRepo   invoicing.RecurringTemplateRepository
	invoiceRepo    invoicing.InvoiceRepository
	runStore       invoicing.RecurringRunStore
	idempotency    shared.IdempotencyStore
	locker         shared.Locker
	cfg            RecurringConfig
	eventPublisher shared.EventPublisher
	metrics        *telemetry.LedgerMetrics
	logger         *zap.Logger
}

// NewRecurringService creates a new RecurringService
func NewRecurringService(
	templateRepo invoicing.RecurringTemplateRepository,
	invoiceRepo invoicing.InvoiceRepository,
	runStore invoicing.RecurringRunStore,
	cfg RecurringConfig,
) *RecurringService {
	def := DefaultRecurringConfig()
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.MaxCatchUp <= 0 {
		cfg.MaxCatchUp = def.MaxCatchUp
	}
	return &RecurringService{
		templateRepo: templateRepo,
		invoiceRepo:  invoiceRepo,
		runStore:     runStore,
		cfg:          cfg,
		logger:       zap.NewNop(),
	}
}

// SetIdempotencyStore enables the idempotency fast path
func (s *RecurringService) SetIdempotencyStore(store shared.IdempotencyStore) {
	s.idempotency = store
}

// SetLocker enables per-template locking
func (s *RecurringService) SetLocker(locker shared.Locker) {
	s.locker = locker
}

// SetEventPublisher sets the event publisher
func (s *RecurringService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetLedgerMetrics sets the metrics recorder
func (s *RecurringService) SetLedgerMetrics(m *telemetry.LedgerMetrics) {
	s.metrics = m
}

// SetLogger sets the logger
func (s *RecurringService) SetLogger(logger *zap.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Create creates an ACTIVE template
func (s *RecurringService) Create(ctx context.Context, scope uuid.UUID, actor shared.Actor, req CreateRecurringTemplateRequest) (*RecurringTemplateResponse, error) {
	items, err := toLineItems(req.Items)
	if err != nil {
		return nil, err
	}
	interval := req.Interval
	if interval == 0 {
		interval = 1
	}

	t, err := invoicing.NewRecurringTemplate(scope, req.Name, req.CustomerName, invoicing.Frequency(req.Frequency),
		interval, req.StartDate, items, req.PaymentTerms.toDomain(), actor)
	if err != nil {
		return nil, err
	}
	t.CustomerEmail = req.CustomerEmail
	if req.EndDate != nil {
		end := invoicing.DateOnly(*req.EndDate)
		t.EndDate = &end
	}
	if req.MaxOccurrences != nil {
		if *req.MaxOccurrences < 1 {
			return nil, shared.NewInvalidAmountError("Max occurrences must be at least 1")
		}
		t.MaxOccurrences = req.MaxOccurrences
	}

	if err := s.templateRepo.Create(ctx, t, actor); err != nil {
		return nil, err
	}
	resp := ToRecurringTemplateResponse(t)
	return &resp, nil
}

// Get returns a template of scope
func (s *RecurringService) Get(ctx context.Context, scope, id uuid.UUID) (*RecurringTemplateResponse, error) {
	t, err := s.templateRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	resp := ToRecurringTemplateResponse(t)
	return &resp, nil
}

// List returns a page of templates of scope
func (s *RecurringService) List(ctx context.Context, scope uuid.UUID, filter ListFilter) (*shared.Paginated[RecurringTemplateResponse], error) {
	page, err := s.templateRepo.List(ctx, scope, filter.toFilter())
	if err != nil {
		return nil, err
	}
	out := mapPage(page, ToRecurringTemplateResponse)
	return &out, nil
}

// Update applies a partial update; pausing and resuming go through here too
func (s *RecurringService) Update(ctx context.Context, scope, id uuid.UUID, actor shared.Actor, req UpdateRecurringTemplateRequest) (*RecurringTemplateResponse, error) {
	patch, err := req.toPatch()
	if err != nil {
		return nil, err
	}
	t, err := s.templateRepo.Update(ctx, scope, id, patch, actor)
	if err != nil {
		return nil, err
	}
	resp := ToRecurringTemplateResponse(t)
	return &resp, nil
}

// DueTemplates lists active templates of every tenant due at asOf
func (s *RecurringService) DueTemplates(ctx context.Context, asOf time.Time, limit int) ([]invoicing.RecurringTemplate, error) {
	if limit <= 0 {
		limit = s.cfg.BatchSize
	}
	return s.templateRepo.FindDue(ctx, invoicing.DateOnly(asOf), limit)
}

// ExecuteDue runs every due template one after another. The scheduler uses
// DueTemplates and RunTemplate through its worker pool instead.
func (s *RecurringService) ExecuteDue(ctx context.Context, asOf time.Time) (*RunSummary, error) {
	due, err := s.DueTemplates(ctx, asOf, s.cfg.BatchSize)
	if err != nil {
		return nil, err
	}

	summary := &RunSummary{Results: []RunResult{}}
	for _, t := range due {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.RunTemplate(ctx, t.TenantID, t.ID, asOf)
		if err != nil {
			summary.Failed++
			s.logger.Error("recurring template run failed",
				zap.String("template_id", t.ID.String()),
				zap.String("tenant_id", t.TenantID.String()),
				zap.Error(err),
			)
			continue
		}
		summary.add(*result)
	}

	s.logger.Info("recurring run finished",
		zap.Time("as_of", asOf),
		zap.Int("due", len(due)),
		zap.Int("executed", summary.Executed),
		zap.Int("skipped", summary.Skipped),
		zap.Int("completed", summary.Completed),
		zap.Int("failed", summary.Failed),
	)
	return summary, nil
}

// RunTemplate executes every due date of one template up to asOf, catching
// up missed dates. A template held by another instance is skipped.
func (s *RecurringService) RunTemplate(ctx context.Context, tenantID, templateID uuid.UUID, asOf time.Time) (_ *RunResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "recurring", "run_template", tenantID.String(),
		telemetry.SpanAttrTemplateID.String(templateID.String()),
	)
	defer func() { telemetry.EndSpan(span, err) }()

	asOf = invoicing.DateOnly(asOf)
	result := &RunResult{TemplateID: templateID, TenantID: tenantID, Outcome: RunOutcomeNotDue}

	release, err := s.lock(ctx, templateID)
	if errors.Is(err, shared.ErrLockNotObtained) {
		result.Outcome = RunOutcomeSkipped
		s.recordRun(ctx, tenantID, telemetry.RecurringOutcomeSkipped)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := s.templateRepo.GetByID(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}

	for i := 0; i < s.cfg.MaxCatchUp && t.IsDue(asOf); i++ {
		if result.ScheduledDate.IsZero() {
			result.ScheduledDate = t.NextExecutionDate
		}
		outcome, invoiceID, err := s.runOccurrence(ctx, t)
		if err != nil {
			s.recordRun(ctx, tenantID, telemetry.RecurringOutcomeFailed)
			return nil, err
		}
		if outcome == RunOutcomeExecuted {
			result.InvoiceIDs = append(result.InvoiceIDs, invoiceID)
			result.Outcome = RunOutcomeExecuted
			continue
		}
		if outcome == RunOutcomeSkipped && len(result.InvoiceIDs) > 0 {
			break
		}
		result.Outcome = outcome
		break
	}
	if t.Status == invoicing.RecurringStatusCompleted {
		result.Outcome = RunOutcomeCompleted
	}
	return result, nil
}

// Execute runs a template's current due date on demand, whether or not it
// has arrived. The same guards as scheduled runs apply.
func (s *RecurringService) Execute(ctx context.Context, scope, id uuid.UUID, actor shared.Actor) (*RunResult, error) {
	if err := actor.Validate(); err != nil {
		return nil, err
	}

	release, err := s.lock(ctx, id)
	if errors.Is(err, shared.ErrLockNotObtained) {
		return &RunResult{TemplateID: id, TenantID: scope, Outcome: RunOutcomeSkipped}, nil
	}
	if err != nil {
		return nil, err
	}
	defer release()

	t, err := s.templateRepo.GetByID(ctx, scope, id)
	if err != nil {
		return nil, err
	}
	if t.Status != invoicing.RecurringStatusActive {
		return nil, shared.NewInvalidTransitionError(string(t.Status), "EXECUTED")
	}

	result := &RunResult{TemplateID: id, TenantID: scope, ScheduledDate: t.NextExecutionDate}
	outcome, invoiceID, err := s.runOccurrence(ctx, t)
	if err != nil {
		s.recordRun(ctx, scope, telemetry.RecurringOutcomeFailed)
		return nil, err
	}
	result.Outcome = outcome
	if outcome == RunOutcomeExecuted {
		result.InvoiceIDs = []uuid.UUID{invoiceID}
	}

	s.logger.Info("recurring template executed manually",
		zap.String("template_id", id.String()),
		zap.String("actor", actor.String()),
		zap.String("outcome", string(outcome)),
	)
	return result, nil
}

func (s *RecurringService) lock(ctx context.Context, templateID uuid.UUID) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	l, err := s.locker.Obtain(ctx, RecurringLockKey(templateID), s.cfg.LockTTL)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := l.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("failed to release recurring lock",
				zap.String("template_id", templateID.String()),
				zap.Error(err),
			)
		}
	}, nil
}

// runOccurrence runs the template's current due date once
func (s *RecurringService) runOccurrence(ctx context.Context, t *invoicing.RecurringTemplate) (RunOutcome, uuid.UUID, error) {
	if t.ShouldTerminate() {
		if err := t.Advance(); err != nil {
			return "", uuid.Nil, err
		}
		t.Touch(shared.SystemActor)
		if err := s.templateRepo.Save(ctx, t); err != nil {
			return "", uuid.Nil, err
		}
		publishEvents(ctx, s.eventPublisher, s.logger, t)
		s.recordRun(ctx, t.TenantID, telemetry.RecurringOutcomeCompleted)
		return RunOutcomeCompleted, uuid.Nil, nil
	}

	scheduled := t.NextExecutionDate
	key := RecurringIdempotencyKey(t.ID, scheduled)
	marked := false
	if s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, key, s.cfg.IdempotencyTTL)
		switch {
		case err != nil:
			s.logger.Warn("idempotency store unavailable, relying on execution record",
				zap.String("key", key),
				zap.Error(err),
			)
		case !fresh:
			return s.skipped(ctx, t, scheduled, "idempotency key present")
		default:
			marked = true
		}
	}
	fail := func(err error) (RunOutcome, uuid.UUID, error) {
		if marked {
			if rerr := s.idempotency.Release(context.WithoutCancel(ctx), key); rerr != nil {
				s.logger.Warn("failed to release idempotency key", zap.String("key", key), zap.Error(rerr))
			}
		}
		return "", uuid.Nil, err
	}

	ran, err := s.runStore.HasRun(ctx, t.ID, scheduled)
	if err != nil {
		return fail(err)
	}
	if ran {
		return s.skipped(ctx, t, scheduled, "execution record present")
	}

	number, err := s.invoiceRepo.GenerateInvoiceNumber(ctx, t.TenantID, scheduled)
	if err != nil {
		return fail(err)
	}
	inv, err := t.Execute(number)
	if err != nil {
		return fail(err)
	}

	exec := invoicing.RecurringExecution{
		ID:            uuid.New(),
		TenantID:      t.TenantID,
		TemplateID:    t.ID,
		ScheduledDate: scheduled,
		InvoiceID:     inv.ID,
		CreatedAt:     time.Now(),
	}
	if err := s.runStore.CommitRun(ctx, exec, inv, t); err != nil {
		if errors.Is(err, invoicing.ErrAlreadyExecuted) {
			return s.skipped(ctx, t, scheduled, "execution record conflict")
		}
		return fail(err)
	}

	publishEvents(ctx, s.eventPublisher, s.logger, inv, t)
	s.recordRun(ctx, t.TenantID, telemetry.RecurringOutcomeExecuted)
	if s.metrics != nil {
		s.metrics.RecordInvoiceCreated(ctx, t.TenantID, inv.GrossAmount)
	}
	s.logger.Info("recurring invoice generated",
		zap.String("template_id", t.ID.String()),
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.Time("scheduled_date", scheduled),
		zap.Int("total_generated", t.TotalGenerated),
	)
	return RunOutcomeExecuted, inv.ID, nil
}

func (s *RecurringService) skipped(ctx context.Context, t *invoicing.RecurringTemplate, scheduled time.Time, reason string) (RunOutcome, uuid.UUID, error) {
	s.recordRun(ctx, t.TenantID, telemetry.RecurringOutcomeSkipped)
	s.logger.Info("recurring run skipped",
		zap.String("template_id", t.ID.String()),
		zap.Time("scheduled_date", scheduled),
		zap.String("reason", reason),
	)
	return RunOutcomeSkipped, uuid.Nil, nil
}

func (s *RecurringService) recordRun(ctx context.Context, tenantID uuid.UUID, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordRecurringRun(ctx, tenantID, outcome)
	}
}
