package invoicing

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// Frequency is the calendar unit of a recurring schedule
type Frequency string

const (
	FrequencyWeekly       Frequency = "WEEKLY"
	FrequencyBiweekly     Frequency = "BIWEEKLY"
	FrequencyMonthly      Frequency = "MONTHLY"
	FrequencyQuarterly    Frequency = "QUARTERLY"
	FrequencySemiannually Frequency = "SEMIANNUALLY"
	FrequencyAnnually     Frequency = "ANNUALLY"
)

// IsValid checks the frequency is supported
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyWeekly, FrequencyBiweekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencySemiannually, FrequencyAnnually:
		return true
	}
	return false
}

// monthsPerStep is zero for day-based frequencies
func (f Frequency) monthsPerStep() int {
	switch f {
	case FrequencyMonthly:
		return 1
	case FrequencyQuarterly:
		return 3
	case FrequencySemiannually:
		return 6
	case FrequencyAnnually:
		return 12
	}
	return 0
}

// Occurrence is the result of NextOccurrence
type Occurrence struct {
	NextDate       time.Time
	DaysDifference int
}

// NextOccurrence computes the next due date after from. WEEKLY and BIWEEKLY add
// 7 or 14 days per interval; calendar frequencies add months and clamp to the
// last day of the target month (2024-01-31 + 1 month = 2024-02-29).
func NextOccurrence(from time.Time, freq Frequency, interval int) (Occurrence, error) {
	if !freq.IsValid() {
		return Occurrence{}, shared.NewDomainError(shared.CodeUnsupportedFrequency, "Unsupported frequency: "+string(freq))
	}
	if interval < 1 {
		return Occurrence{}, shared.NewInvalidAmountError("Interval must be at least 1")
	}

	var next time.Time
	switch freq {
	case FrequencyWeekly:
		next = from.AddDate(0, 0, 7*interval)
	case FrequencyBiweekly:
		next = from.AddDate(0, 0, 14*interval)
	default:
		next = addMonthsClamped(from, freq.monthsPerStep()*interval, from.Day())
	}
	return Occurrence{NextDate: next, DaysDifference: daysBetween(from, next)}, nil
}

// addMonthsClamped moves t by months and lands on day, or on the month's last day if shorter.
func addMonthsClamped(t time.Time, months, day int) time.Time {
	y, m, _ := t.Date()
	first := time.Date(y, m+time.Month(months), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func daysBetween(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// DateOnly truncates t to midnight UTC of its calendar day
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// RecurringStatus is the lifecycle of a template
type RecurringStatus string

const (
	RecurringStatusActive    RecurringStatus = "ACTIVE"
	RecurringStatusPaused    RecurringStatus = "PAUSED"
	RecurringStatusCompleted RecurringStatus = "COMPLETED"
)

// IsValid checks the status
func (s RecurringStatus) IsValid() bool {
	return s == RecurringStatusActive || s == RecurringStatusPaused || s == RecurringStatusCompleted
}

// RecurringTemplate spawns one invoice per due date
type RecurringTemplate struct {
	shared.TenantAggregateRoot
	Name              string
	CustomerName      string
	CustomerEmail     string
	Currency          valueobject.Currency
	Frequency         Frequency
	Interval          int
	StartDate         time.Time
	NextExecutionDate time.Time
	// AnchorDay is the day of month calendar steps return to after a short
	// month. It follows the start date and is reset when the cadence changes.
	AnchorDay         int
	EndDate           *time.Time
	MaxOccurrences    *int
	TotalGenerated    int
	TotalAmount       decimal.Decimal
	LastExecutionDate *time.Time
	Status            RecurringStatus
	Items             []LineItem
	PaymentTerms      PaymentTerms
}

// NewRecurringTemplate creates an ACTIVE template whose first run is startDate
func NewRecurringTemplate(
	tenantID uuid.UUID,
	name, customerName string,
	freq Frequency,
	interval int,
	startDate time.Time,
	items []LineItem,
	terms PaymentTerms,
	actor shared.Actor,
) (*RecurringTemplate, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewMissingFieldError("tenant id")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewMissingFieldError("name")
	}
	if strings.TrimSpace(customerName) == "" {
		return nil, shared.NewMissingFieldError("customer name")
	}
	if !freq.IsValid() {
		return nil, shared.NewDomainError(shared.CodeUnsupportedFrequency, "Unsupported frequency: "+string(freq))
	}
	if interval < 1 {
		return nil, shared.NewInvalidAmountError("Interval must be at least 1")
	}
	if startDate.IsZero() {
		return nil, shared.NewMissingFieldError("start date")
	}
	if len(items) == 0 {
		return nil, shared.NewMissingFieldError("line items")
	}
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if err := actor.Validate(); err != nil {
		return nil, err
	}
	computed, err := recomputeItems(items)
	if err != nil {
		return nil, err
	}

	start := DateOnly(startDate)
	return &RecurringTemplate{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID, actor),
		Name:                name,
		CustomerName:        customerName,
		Currency:            valueobject.DefaultCurrency,
		Frequency:           freq,
		Interval:            interval,
		StartDate:           start,
		NextExecutionDate:   start,
		AnchorDay:           start.Day(),
		TotalAmount:         decimal.Zero,
		Status:              RecurringStatusActive,
		Items:               computed,
		PaymentTerms:        terms,
	}, nil
}

func recomputeItems(items []LineItem) ([]LineItem, error) {
	out := make([]LineItem, len(items))
	for i, item := range items {
		if err := item.Recompute(); err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

// ShouldTerminate is true when the next run lies past EndDate or MaxOccurrences is reached
func (t *RecurringTemplate) ShouldTerminate() bool {
	if t.EndDate != nil && t.NextExecutionDate.After(*t.EndDate) {
		return true
	}
	if t.MaxOccurrences != nil && t.TotalGenerated >= *t.MaxOccurrences {
		return true
	}
	return false
}

// IsDue reports whether an active template has a run at or before asOf
func (t *RecurringTemplate) IsDue(asOf time.Time) bool {
	return t.Status == RecurringStatusActive && !t.NextExecutionDate.After(asOf)
}

// anchorDay falls back to the current due date for rows stored without one
func (t *RecurringTemplate) anchorDay() int {
	if t.AnchorDay > 0 {
		return t.AnchorDay
	}
	return t.NextExecutionDate.Day()
}

// Advance completes the template if it should terminate, leaving the date alone;
// otherwise it moves NextExecutionDate to NextOccurrence of the current due date.
// Calendar steps then return to AnchorDay where the month allows, so a schedule
// anchored on the 31st goes Jan 31, Feb 29, Mar 31 instead of drifting to the 29th.
func (t *RecurringTemplate) Advance() error {
	if t.ShouldTerminate() {
		if t.Status != RecurringStatusCompleted {
			t.Status = RecurringStatusCompleted
			t.AddDomainEvent(NewRecurringTemplateCompletedEvent(t))
		}
		return nil
	}
	occ, err := NextOccurrence(t.NextExecutionDate, t.Frequency, t.Interval)
	if err != nil {
		return err
	}
	next := occ.NextDate
	if anchor := t.anchorDay(); t.Frequency.monthsPerStep() > 0 && anchor > next.Day() {
		next = addMonthsClamped(next, 0, anchor)
	}
	t.NextExecutionDate = next
	return nil
}

// Execute materializes the invoice for the current due date, updates the
// running totals and advances the schedule. Callers guarantee at most one
// call per (template, due date).
func (t *RecurringTemplate) Execute(invoiceNumber string) (*Invoice, error) {
	if t.Status != RecurringStatusActive {
		return nil, shared.NewInvalidTransitionError(string(t.Status), "EXECUTED")
	}
	if t.ShouldTerminate() {
		return nil, shared.NewDomainError(shared.CodeInvalidTransition, "Recurring template has reached its end condition")
	}

	scheduled := t.NextExecutionDate
	items := make([]LineItem, len(t.Items))
	copy(items, t.Items)
	terms := t.PaymentTerms
	terms.DueDate = time.Time{}

	inv, err := NewInvoice(t.TenantID, invoiceNumber, t.CustomerName, scheduled, items, terms, shared.SystemActor)
	if err != nil {
		return nil, err
	}
	inv.CustomerEmail = t.CustomerEmail
	inv.Currency = t.Currency
	templateID := t.ID
	inv.RecurringTemplateID = &templateID

	t.TotalGenerated++
	t.TotalAmount = t.TotalAmount.Add(inv.GrossAmount)
	t.LastExecutionDate = &scheduled
	t.AddDomainEvent(NewRecurringTemplateExecutedEvent(t, inv, scheduled))
	if err := t.Advance(); err != nil {
		return nil, err
	}
	t.Touch(shared.SystemActor)
	return inv, nil
}

// Pause stops an active template from running
func (t *RecurringTemplate) Pause(actor shared.Actor) error {
	if t.Status != RecurringStatusActive {
		return shared.NewInvalidTransitionError(string(t.Status), string(RecurringStatusPaused))
	}
	t.Status = RecurringStatusPaused
	t.Touch(actor)
	return nil
}

// Resume re-activates a paused template
func (t *RecurringTemplate) Resume(actor shared.Actor) error {
	if t.Status != RecurringStatusPaused {
		return shared.NewInvalidTransitionError(string(t.Status), string(RecurringStatusActive))
	}
	t.Status = RecurringStatusActive
	t.Touch(actor)
	return nil
}

// ApplyPatch updates schedule and content of a template that has not completed.
// The whole patch is validated before any field changes. Changing frequency or
// interval re-anchors calendar steps on the current due date.
func (t *RecurringTemplate) ApplyPatch(p RecurringTemplatePatch, actor shared.Actor) error {
	if err := actor.Validate(); err != nil {
		return err
	}
	if p.IsEmpty() {
		return shared.NewDomainError(shared.CodeInvalidInput, "Patch contains no changes")
	}
	if t.Status == RecurringStatusCompleted {
		return shared.ErrImmutableDocument
	}
	if p.Frequency != nil && !p.Frequency.IsValid() {
		return shared.NewDomainError(shared.CodeUnsupportedFrequency, "Unsupported frequency: "+string(*p.Frequency))
	}
	if p.Interval != nil && *p.Interval < 1 {
		return shared.NewInvalidAmountError("Interval must be at least 1")
	}
	if p.MaxOccurrences != nil && *p.MaxOccurrences < 1 {
		return shared.NewInvalidAmountError("Max occurrences must be at least 1")
	}
	if p.PaymentTerms != nil {
		if err := p.PaymentTerms.Validate(); err != nil {
			return err
		}
	}
	status := t.Status
	if p.Status != nil {
		switch *p.Status {
		case RecurringStatusPaused, RecurringStatusActive:
			if t.Status == RecurringStatusActive || t.Status == RecurringStatusPaused {
				status = *p.Status
			}
		default:
			return shared.NewInvalidTransitionError(string(t.Status), string(*p.Status))
		}
	}
	var items []LineItem
	if p.Items != nil {
		if len(*p.Items) == 0 {
			return shared.NewMissingFieldError("line items")
		}
		computed, err := recomputeItems(*p.Items)
		if err != nil {
			return err
		}
		items = computed
	}

	if items != nil {
		t.Items = items
	}
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.CustomerName != nil {
		t.CustomerName = *p.CustomerName
	}
	if p.Frequency != nil || p.Interval != nil {
		if p.Frequency != nil {
			t.Frequency = *p.Frequency
		}
		if p.Interval != nil {
			t.Interval = *p.Interval
		}
		t.AnchorDay = t.NextExecutionDate.Day()
	}
	if p.EndDate != nil {
		end := DateOnly(*p.EndDate)
		t.EndDate = &end
	}
	if p.MaxOccurrences != nil {
		t.MaxOccurrences = p.MaxOccurrences
	}
	if p.PaymentTerms != nil {
		t.PaymentTerms = *p.PaymentTerms
	}
	t.Status = status
	t.Touch(actor)
	return nil
}

// TemplateTotals returns the computed totals of one generated invoice
func (t *RecurringTemplate) TemplateTotals() Totals {
	return AggregateTotals(t.Items)
}
