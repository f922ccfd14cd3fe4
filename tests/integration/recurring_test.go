package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
)

// Two ledgers share the database but not their locks, so only the execution
// record keeps a scheduled date from producing two invoices.
func TestRecurring_ConcurrentRunsGenerateOnce(t *testing.T) {
	tdb := NewSharedTestDB(t)
	_, first := newLedgerAPI(t, tdb)
	_, second := newLedgerAPI(t, tdb)

	ctx := context.Background()
	tenant := uuid.New()
	tmpl, err := first.Recurring.Create(ctx, tenant, shared.NewUserActor(uuid.New()), appinvoicing.CreateRecurringTemplateRequest{
		Name:         "Hosting",
		CustomerName: "Acme GmbH",
		Frequency:    "MONTHLY",
		StartDate:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Items: []appinvoicing.LineItemInput{{
			Description: "Managed hosting",
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   decimal.RequireFromString("49.00"),
			TaxRate:     decimal.NewFromInt(19),
		}},
	})
	require.NoError(t, err)

	asOf := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, svc := range []*appinvoicing.RecurringService{first.Recurring, second.Recurring} {
		wg.Add(1)
		go func(i int, svc *appinvoicing.RecurringService) {
			defer wg.Done()
			_, errs[i] = svc.RunTemplate(ctx, tenant, tmpl.ID, asOf)
		}(i, svc)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, shared.ErrVersionConflict) || errors.Is(err, shared.ErrAlreadyExists),
				"unexpected error: %v", err)
		}
	}

	// A run that lost a conflict resumes where the winner stopped
	_, err = first.Recurring.RunTemplate(ctx, tenant, tmpl.ID, asOf)
	require.NoError(t, err)

	assert.Equal(t, int64(3), tdb.CountRows("invoices", tenant))
	assert.Equal(t, int64(3), tdb.CountRows("recurring_executions", tenant))

	got, err := first.Recurring.Get(ctx, tenant, tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalGenerated)

	result, err := second.Recurring.RunTemplate(ctx, tenant, tmpl.ID, asOf)
	require.NoError(t, err)
	assert.Empty(t, result.InvoiceIDs)
	assert.Equal(t, int64(3), tdb.CountRows("invoices", tenant))
}
