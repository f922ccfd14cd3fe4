package invoicing_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

func date(y int, m time.Month, day int) time.Time {
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name     string
		from     time.Time
		freq     invoicing.Frequency
		interval int
		want     time.Time
		wantDays int
	}{
		{"month end into leap february", date(2024, 1, 31), invoicing.FrequencyMonthly, 1, date(2024, 2, 29), 29},
		{"month end into common february", date(2023, 1, 31), invoicing.FrequencyMonthly, 1, date(2023, 2, 28), 28},
		{"mid month", date(2024, 3, 15), invoicing.FrequencyMonthly, 1, date(2024, 4, 15), 31},
		{"every two months", date(2024, 12, 31), invoicing.FrequencyMonthly, 2, date(2025, 2, 28), 59},
		{"31st into 30 day month", date(2024, 3, 31), invoicing.FrequencyMonthly, 1, date(2024, 4, 30), 30},
		{"quarterly clamps", date(2023, 11, 30), invoicing.FrequencyQuarterly, 1, date(2024, 2, 29), 91},
		{"semiannually", date(2024, 8, 31), invoicing.FrequencySemiannually, 1, date(2025, 2, 28), 181},
		{"annually from leap day", date(2024, 2, 29), invoicing.FrequencyAnnually, 1, date(2025, 2, 28), 365},
		{"weekly", date(2024, 1, 1), invoicing.FrequencyWeekly, 1, date(2024, 1, 8), 7},
		{"weekly interval two", date(2024, 1, 1), invoicing.FrequencyWeekly, 2, date(2024, 1, 15), 14},
		{"biweekly", date(2024, 2, 20), invoicing.FrequencyBiweekly, 1, date(2024, 3, 5), 14},
		{"biweekly interval two", date(2024, 1, 1), invoicing.FrequencyBiweekly, 2, date(2024, 1, 29), 28},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := invoicing.NextOccurrence(tt.from, tt.freq, tt.interval)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.NextDate)
			assert.Equal(t, tt.wantDays, got.DaysDifference)
		})
	}
}

func TestNextOccurrence_Errors(t *testing.T) {
	_, err := invoicing.NextOccurrence(date(2024, 1, 1), invoicing.Frequency("DAILY"), 1)
	assert.True(t, errors.Is(err, shared.ErrUnsupportedFrequency))

	_, err = invoicing.NextOccurrence(date(2024, 1, 1), invoicing.FrequencyMonthly, 0)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeInvalidAmount, de.Code)
}

func newTemplate(t *testing.T, freq invoicing.Frequency, start time.Time) *invoicing.RecurringTemplate {
	t.Helper()
	item, err := invoicing.NewLineItem("Hosting", d("2"), d("50.00"), d("19"))
	require.NoError(t, err)
	tpl, err := invoicing.NewRecurringTemplate(
		uuid.New(), "Monthly hosting", "ACME GmbH", freq, 1, start,
		[]invoicing.LineItem{item}, invoicing.PaymentTerms{DueDays: 14},
		shared.NewUserActor(uuid.New()),
	)
	require.NoError(t, err)
	return tpl
}

func TestNewRecurringTemplate_Validation(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())
	item, err := invoicing.NewLineItem("x", d("1"), d("1"), d("19"))
	require.NoError(t, err)
	items := []invoicing.LineItem{item}

	_, err = invoicing.NewRecurringTemplate(uuid.New(), "n", "c", "HOURLY", 1, date(2024, 1, 1), items, invoicing.PaymentTerms{}, actor)
	assert.True(t, errors.Is(err, shared.ErrUnsupportedFrequency))

	_, err = invoicing.NewRecurringTemplate(uuid.New(), "n", "c", invoicing.FrequencyMonthly, 1, date(2024, 1, 1), nil, invoicing.PaymentTerms{}, actor)
	var de *shared.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, shared.CodeMissingRequiredField, de.Code)
}

func TestRecurringTemplate_Execute(t *testing.T) {
	tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 31))

	inv, err := tpl.Execute("INV-202401-00001")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 31), inv.IssueDate)
	assert.Equal(t, date(2024, 2, 14), inv.PaymentTerms.DueDate)
	assert.Equal(t, invoicing.InvoiceStatusDraft, inv.Status)
	assert.Nil(t, inv.CreatedBy, "generated by the system actor")
	require.NotNil(t, inv.RecurringTemplateID)
	assert.Equal(t, tpl.ID, *inv.RecurringTemplateID)
	assertDecimal(t, "119.00", inv.GrossAmount)

	assert.Equal(t, 1, tpl.TotalGenerated)
	assertDecimal(t, "119.00", tpl.TotalAmount)
	assert.Equal(t, date(2024, 1, 31), *tpl.LastExecutionDate)
	assert.Equal(t, date(2024, 2, 29), tpl.NextExecutionDate)

	_, err = tpl.Execute("INV-202402-00001")
	require.NoError(t, err)
	assert.Equal(t, 2, tpl.TotalGenerated)
	assertDecimal(t, "238.00", tpl.TotalAmount)
	assert.Equal(t, date(2024, 3, 31), tpl.NextExecutionDate, "re-anchors to the start day")
}

func TestRecurringTemplate_NoMonthEndDrift(t *testing.T) {
	tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 31))
	want := []time.Time{
		date(2024, 2, 29), date(2024, 3, 31), date(2024, 4, 30), date(2024, 5, 31),
		date(2024, 6, 30), date(2024, 7, 31), date(2024, 8, 31), date(2024, 9, 30),
	}
	for _, w := range want {
		require.NoError(t, tpl.Advance())
		assert.Equal(t, w, tpl.NextExecutionDate)
	}
}

func TestRecurringTemplate_MaxOccurrences(t *testing.T) {
	tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 31))
	limit := 2
	tpl.MaxOccurrences = &limit

	_, err := tpl.Execute("INV-1")
	require.NoError(t, err)
	_, err = tpl.Execute("INV-2")
	require.NoError(t, err)

	assert.Equal(t, invoicing.RecurringStatusCompleted, tpl.Status)
	assert.Equal(t, date(2024, 2, 29), tpl.NextExecutionDate, "completion leaves the date unchanged")
	assert.Equal(t, 2, tpl.TotalGenerated)

	_, err = tpl.Execute("INV-3")
	assert.Error(t, err)
	assert.Equal(t, 2, tpl.TotalGenerated)
}

func TestRecurringTemplate_EndDate(t *testing.T) {
	tpl := newTemplate(t, invoicing.FrequencyWeekly, date(2024, 1, 1))
	end := date(2024, 1, 10)
	tpl.EndDate = &end

	assert.False(t, tpl.ShouldTerminate())
	_, err := tpl.Execute("INV-1")
	require.NoError(t, err)
	_, err = tpl.Execute("INV-2")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 15), tpl.NextExecutionDate)
	assert.True(t, tpl.ShouldTerminate())

	_, err = tpl.Execute("INV-3")
	assert.Error(t, err)

	require.NoError(t, tpl.Advance())
	assert.Equal(t, invoicing.RecurringStatusCompleted, tpl.Status)
	assert.Equal(t, date(2024, 1, 15), tpl.NextExecutionDate)

	events := 0
	require.NoError(t, tpl.Advance())
	for _, e := range tpl.GetDomainEvents() {
		if e.EventType() == invoicing.EventTypeRecurringCompleted {
			events++
		}
	}
	assert.Equal(t, 1, events, "completion is announced once")
}

func TestRecurringTemplate_PauseResume(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())
	tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 1))

	require.NoError(t, tpl.Pause(actor))
	assert.False(t, tpl.IsDue(date(2024, 6, 1)))
	_, err := tpl.Execute("INV-1")
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))

	assert.Error(t, tpl.Pause(actor))
	require.NoError(t, tpl.Resume(actor))
	assert.True(t, tpl.IsDue(date(2024, 1, 1)))
	assert.False(t, tpl.IsDue(date(2023, 12, 31)))
}

func TestRecurringTemplate_ApplyPatch(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())
	tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 1))

	freq := invoicing.FrequencyQuarterly
	require.NoError(t, tpl.ApplyPatch(invoicing.RecurringTemplatePatch{Frequency: &freq}, actor))
	assert.Equal(t, invoicing.FrequencyQuarterly, tpl.Frequency)

	bad := invoicing.Frequency("DAILY")
	err := tpl.ApplyPatch(invoicing.RecurringTemplatePatch{Frequency: &bad}, actor)
	assert.True(t, errors.Is(err, shared.ErrUnsupportedFrequency))

	completed := invoicing.RecurringStatusCompleted
	err = tpl.ApplyPatch(invoicing.RecurringTemplatePatch{Status: &completed}, actor)
	assert.True(t, errors.Is(err, shared.ErrInvalidTransition))
}

func TestRecurringTemplate_CadencePatchReanchors(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())
	monthly := invoicing.FrequencyMonthly
	two := 2

	tests := []struct {
		name     string
		freq     invoicing.Frequency
		start    time.Time
		runs     int
		patch    invoicing.RecurringTemplatePatch
		wantDue  time.Time
		wantNext time.Time
	}{
		{
			name:     "weekly to monthly keeps the current weekday date",
			freq:     invoicing.FrequencyWeekly,
			start:    date(2024, 1, 30),
			runs:     2,
			patch:    invoicing.RecurringTemplatePatch{Frequency: &monthly},
			wantDue:  date(2024, 2, 13),
			wantNext: date(2024, 3, 13),
		},
		{
			name:     "interval change anchors on the clamped date",
			freq:     invoicing.FrequencyMonthly,
			start:    date(2024, 1, 31),
			runs:     1,
			patch:    invoicing.RecurringTemplatePatch{Interval: &two},
			wantDue:  date(2024, 2, 29),
			wantNext: date(2024, 4, 29),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := newTemplate(t, tt.freq, tt.start)
			for i := 0; i < tt.runs; i++ {
				_, err := tpl.Execute("INV-1")
				require.NoError(t, err)
			}
			require.Equal(t, tt.wantDue, tpl.NextExecutionDate)

			require.NoError(t, tpl.ApplyPatch(tt.patch, actor))
			inv, err := tpl.Execute("INV-2")
			require.NoError(t, err)
			assert.Equal(t, tt.wantDue, inv.IssueDate)
			assert.Equal(t, tt.wantNext, tpl.NextExecutionDate)
		})
	}
}

func TestRecurringTemplate_ContentPatchKeepsAnchor(t *testing.T) {
	tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 31))
	_, err := tpl.Execute("INV-1")
	require.NoError(t, err)

	name := "Managed hosting"
	require.NoError(t, tpl.ApplyPatch(invoicing.RecurringTemplatePatch{Name: &name}, shared.NewUserActor(uuid.New())))
	assert.Equal(t, 31, tpl.AnchorDay)

	require.NoError(t, tpl.Advance())
	assert.Equal(t, date(2024, 3, 31), tpl.NextExecutionDate)
}

func TestRecurringTemplate_RejectedPatchChangesNothing(t *testing.T) {
	actor := shared.NewUserActor(uuid.New())
	name := "Renamed"
	weekly := invoicing.FrequencyWeekly
	zero := 0
	completed := invoicing.RecurringStatusCompleted
	empty := []invoicing.LineItem{}

	tests := []struct {
		name  string
		patch invoicing.RecurringTemplatePatch
	}{
		{"bad status", invoicing.RecurringTemplatePatch{Name: &name, Frequency: &weekly, Status: &completed}},
		{"bad interval", invoicing.RecurringTemplatePatch{Name: &name, Frequency: &weekly, Interval: &zero}},
		{"empty items", invoicing.RecurringTemplatePatch{Name: &name, Frequency: &weekly, Items: &empty}},
		{"bad terms", invoicing.RecurringTemplatePatch{Name: &name, PaymentTerms: &invoicing.PaymentTerms{DueDays: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := newTemplate(t, invoicing.FrequencyMonthly, date(2024, 1, 31))
			before := *tpl

			require.Error(t, tpl.ApplyPatch(tt.patch, actor))
			assert.Equal(t, before.Name, tpl.Name)
			assert.Equal(t, before.Frequency, tpl.Frequency)
			assert.Equal(t, before.Interval, tpl.Interval)
			assert.Equal(t, before.AnchorDay, tpl.AnchorDay)
			assert.Equal(t, before.PaymentTerms, tpl.PaymentTerms)
			assert.Len(t, tpl.Items, 1)
			assert.Equal(t, before.Version, tpl.Version)
		})
	}
}
