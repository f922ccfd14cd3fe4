package integration

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	appinvoicing "github.com/tilver/backend/internal/application/invoicing"
	"github.com/tilver/backend/internal/application/reconciliation"
	"github.com/tilver/backend/internal/application/report"
	"github.com/tilver/backend/internal/bootstrap"
	"github.com/tilver/backend/internal/domain/invoicing"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/infrastructure/config"
	"github.com/tilver/backend/internal/interfaces/http/handler"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
	"github.com/tilver/backend/internal/interfaces/http/router"
	"github.com/tilver/backend/tests/testutil"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	code := m.Run()
	CleanupSharedContainer()
	os.Exit(code)
}

// newLedgerAPI wires the full ledger against tdb the way the server does
func newLedgerAPI(t *testing.T, tdb *TestDB) (*gin.Engine, *bootstrap.Ledger) {
	t.Helper()

	cfg, err := config.LoadFile("")
	require.NoError(t, err)
	cfg.Database = tdb.Config
	cfg.Telemetry.Metrics.Enabled = false
	cfg.Telemetry.Tracing.Enabled = false
	cfg.Recurring.IdempotencyBackend = "memory"
	cfg.Storage.Bucket = ""

	ledger, err := bootstrap.New(context.Background(), cfg, otel.Meter("integration"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = ledger.Close(context.Background())
	})

	engine := gin.New()
	engine.Use(middleware.Tenant(middleware.DefaultTenantConfig()))
	router.NewRouter(engine).Register(router.LedgerGroups(router.LedgerHandlers{
		Invoice:        handler.NewInvoiceHandler(ledger.Invoices),
		Expense:        handler.NewExpenseHandler(ledger.Expenses),
		Payment:        handler.NewPaymentHandler(ledger.Payments),
		Recurring:      handler.NewRecurringHandler(ledger.Recurring),
		Reconciliation: handler.NewReconciliationHandler(ledger.Reconciliation, 1<<20),
		Report:         handler.NewReportHandler(ledger.TaxReports),
		Health:         handler.NewHealthHandler("ledger", "test", map[string]handler.Pinger{"database": ledger.DB}),
	}, router.LedgerLimits{MaxBodySize: 1 << 20, MaxUploadSize: 1 << 20})...).Setup()
	return engine, ledger
}

func invoiceBody(customer string, issue time.Time) map[string]any {
	return map[string]any{
		"customer_name": customer,
		"issue_date":    issue.Format(time.RFC3339),
		"items": []map[string]any{
			{"description": "Consulting", "quantity": "1", "unit_price": "100.00", "tax_rate": "19"},
		},
		"payment_terms": map[string]any{"due_days": 14},
	}
}

func transition(t *testing.T, c *testutil.APIClient, id uuid.UUID, status string) appinvoicing.InvoiceResponse {
	t.Helper()
	w := c.Do(t, http.MethodPost, "/invoices/"+id.String()+"/transition", map[string]string{"status": status})
	return testutil.RequireData[appinvoicing.InvoiceResponse](t, w, http.StatusOK)
}

func uploadStatement(t *testing.T, c *testutil.APIClient, csv string) reconciliation.ImportResult {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "statement.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(csv))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	w := c.DoWithContentType(t, http.MethodPost, "/reconciliation/import", &buf, mw.FormDataContentType())
	return testutil.RequireData[reconciliation.ImportResult](t, w, http.StatusOK)
}

func TestLedgerAPI_InvoiceLifecycle(t *testing.T) {
	tdb := NewSharedTestDB(t)
	engine, ledger := newLedgerAPI(t, tdb)
	client := testutil.NewAPIClient(engine)

	events := testutil.NewEventRecorder(invoicing.EventTypeInvoiceStatusChanged)
	ledger.Bus.Subscribe(events)

	issue := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	w := client.Do(t, http.MethodPost, "/invoices", invoiceBody("ACME GmbH", issue))
	inv := testutil.RequireData[appinvoicing.InvoiceResponse](t, w, http.StatusCreated)

	assert.Equal(t, "DRAFT", inv.Status)
	assert.True(t, strings.HasPrefix(inv.InvoiceNumber, "INV-202601-"), inv.InvoiceNumber)
	assert.True(t, inv.GrossAmount.Equal(decimal.RequireFromString("119.00")))
	assert.True(t, inv.TaxAmount.Equal(decimal.RequireFromString("19.00")))
	require.NotNil(t, inv.CreatedBy)
	assert.Equal(t, client.UserID, *inv.CreatedBy)

	t.Run("draft may be edited", func(t *testing.T) {
		w := client.Do(t, http.MethodPatch, "/invoices/"+inv.ID.String(), map[string]any{"notes": "Q1 retainer"})
		got := testutil.RequireData[appinvoicing.InvoiceResponse](t, w, http.StatusOK)
		assert.Equal(t, "Q1 retainer", got.Notes)
	})

	transition(t, client, inv.ID, "PENDING")
	sent := transition(t, client, inv.ID, "SENT")
	assert.True(t, sent.Immutable)
	require.NotNil(t, sent.SentAt)

	t.Run("sent invoice is immutable", func(t *testing.T) {
		w := client.Do(t, http.MethodPatch, "/invoices/"+inv.ID.String(), map[string]any{"notes": "changed"})
		testutil.RequireErrorCode(t, w, http.StatusUnprocessableEntity, shared.CodeImmutableDocument)
	})

	t.Run("illegal transition", func(t *testing.T) {
		w := client.Do(t, http.MethodPost, "/invoices/"+inv.ID.String()+"/transition", map[string]string{"status": "DRAFT"})
		testutil.RequireErrorCode(t, w, http.StatusUnprocessableEntity, shared.CodeInvalidTransition)
	})

	t.Run("other tenants cannot see it", func(t *testing.T) {
		w := client.AsTenant(uuid.New()).Do(t, http.MethodGet, "/invoices/"+inv.ID.String(), nil)
		testutil.RequireErrorCode(t, w, http.StatusNotFound, shared.CodeNotFound)
	})

	events.RequireEventCount(t, invoicing.EventTypeInvoiceStatusChanged, 2, 5*time.Second)
}

func TestLedgerAPI_PaymentAndReconciliation(t *testing.T) {
	tdb := NewSharedTestDB(t)
	engine, _ := newLedgerAPI(t, tdb)
	client := testutil.NewAPIClient(engine)

	issue := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	inv := testutil.RequireData[appinvoicing.InvoiceResponse](t,
		client.Do(t, http.MethodPost, "/invoices", invoiceBody("Globex AG", issue)), http.StatusCreated)
	transition(t, client, inv.ID, "PENDING")
	transition(t, client, inv.ID, "SENT")

	// incoming payment: approve, then process settles the invoice
	payment := testutil.RequireData[appinvoicing.PaymentResponse](t, client.Do(t, http.MethodPost, "/payments", map[string]any{
		"direction":  "INCOMING",
		"amount":     "119.00",
		"method":     "BANK_TRANSFER",
		"reference":  inv.InvoiceNumber,
		"invoice_id": inv.ID,
	}), http.StatusCreated)
	assert.Equal(t, "PENDING", payment.Status)

	for _, action := range []string{"APPROVE", "PROCESS"} {
		w := client.Do(t, http.MethodPost, "/payments/"+payment.ID.String()+"/actions", map[string]string{"action": action})
		testutil.RequireData[appinvoicing.PaymentActionResponse](t, w, http.StatusOK)
	}
	paid := testutil.RequireData[appinvoicing.InvoiceResponse](t,
		client.Do(t, http.MethodGet, "/invoices/"+inv.ID.String(), nil), http.StatusOK)
	assert.Equal(t, "PAID", paid.Status)

	csv := "Buchungstag;Betrag;Empfaenger;Verwendungszweck\n" +
		"05.02.2026;119,00;Globex AG;" + inv.InvoiceNumber + "\n" +
		"06.02.2026;-42,50;Stadtwerke;Strom Februar\n"
	imported := uploadStatement(t, client, csv)
	assert.Equal(t, 2, imported.Parsed)
	assert.Equal(t, 2, imported.Imported)

	t.Run("reimport is deduplicated", func(t *testing.T) {
		again := uploadStatement(t, client, csv)
		assert.Equal(t, 0, again.Imported)
		assert.Equal(t, 2, again.Duplicates)
		assert.Equal(t, int64(2), tdb.CountRows("bank_transactions", client.TenantID))
	})

	candidates := testutil.RequireData[reconciliation.CandidatesResponse](t, client.Do(t, http.MethodGet,
		"/reconciliation/candidates?document_type=INVOICE&document_id="+inv.ID.String(), nil), http.StatusOK)
	require.NotEmpty(t, candidates.Candidates)
	best := candidates.Candidates[0]
	assert.Equal(t, "EXACT", best.MatchClass)
	assert.True(t, best.Transaction.Amount.Equal(decimal.RequireFromString("119.00")))

	link := testutil.RequireData[reconciliation.LinkResponse](t, client.Do(t, http.MethodPost, "/reconciliation/links", map[string]any{
		"transaction_id": best.Transaction.ID,
		"document_type":  "INVOICE",
		"document_id":    inv.ID,
	}), http.StatusCreated)
	assert.Equal(t, 1, link.ReconciledPayments)

	t.Run("a transaction links once", func(t *testing.T) {
		w := client.Do(t, http.MethodPost, "/reconciliation/links", map[string]any{
			"transaction_id": best.Transaction.ID,
			"document_type":  "INVOICE",
			"document_id":    inv.ID,
		})
		testutil.RequireErrorCode(t, w, http.StatusConflict, shared.CodeAlreadyLinked)
	})

	reconciled := testutil.RequireData[appinvoicing.PaymentResponse](t,
		client.Do(t, http.MethodGet, "/payments/"+payment.ID.String(), nil), http.StatusOK)
	assert.True(t, reconciled.Reconciliation.Reconciled)
}

func TestLedgerAPI_ExpenseApprovalAndTaxReport(t *testing.T) {
	tdb := NewSharedTestDB(t)
	engine, _ := newLedgerAPI(t, tdb)
	submitter := testutil.NewAPIClient(engine)
	approver := *submitter
	approver.UserID = uuid.New()

	expense := testutil.RequireData[appinvoicing.ExpenseResponse](t, submitter.Do(t, http.MethodPost, "/expenses", map[string]any{
		"vendor":        "Adobe",
		"category":      "SOFTWARE",
		"gross_amount":  "1190.00",
		"tax_rate":      "19",
		"is_deductible": true,
		"incurred_at":   time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC).Format(time.RFC3339),
	}), http.StatusCreated)
	assert.True(t, expense.TaxBreakdown.TaxAmount.Equal(decimal.RequireFromString("190.00")))
	assert.True(t, strings.HasPrefix(expense.ExpenseNumber, "EXP-202603-"), expense.ExpenseNumber)

	path := "/expenses/" + expense.ID.String()
	testutil.RequireData[appinvoicing.ExpenseResponse](t, submitter.Do(t, http.MethodPost, path+"/submit", nil), http.StatusOK)

	// above the threshold the submitter may not approve
	testutil.RequireErrorCode(t, submitter.Do(t, http.MethodPost, path+"/approve", nil), http.StatusForbidden, shared.CodeAccessDenied)

	approved := testutil.RequireData[appinvoicing.ExpenseResponse](t, approver.Do(t, http.MethodPost, path+"/approve", nil), http.StatusOK)
	assert.Equal(t, "APPROVED", approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, approver.UserID, *approved.ApprovedBy)

	inv := testutil.RequireData[appinvoicing.InvoiceResponse](t,
		submitter.Do(t, http.MethodPost, "/invoices", invoiceBody("Initech", time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC))), http.StatusCreated)
	transition(t, submitter, inv.ID, "PENDING")
	transition(t, submitter, inv.ID, "SENT")

	tax := testutil.RequireData[report.TaxReport](t,
		submitter.Do(t, http.MethodGet, "/reports/tax?from=2026-03-01&to=2026-03-31", nil), http.StatusOK)
	assert.Equal(t, 1, tax.InvoiceCount)
	assert.Equal(t, 1, tax.ExpenseCount)
	assert.True(t, tax.TotalOutput.Equal(decimal.NewFromInt(19)), tax.TotalOutput.String())
	assert.True(t, tax.TotalInput.Equal(decimal.NewFromInt(190)), tax.TotalInput.String())
	assert.True(t, tax.Payable.Equal(decimal.NewFromInt(-171)), tax.Payable.String())

	w := submitter.Do(t, http.MethodGet, "/reports/tax.xlsx?from=2026-03-01&to=2026-03-31", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PK", w.Body.String()[:2])
}

func TestLedgerAPI_Health(t *testing.T) {
	tdb := NewSharedTestDB(t)
	engine, _ := newLedgerAPI(t, tdb)

	w := testutil.NewAPIClient(engine).Do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"database":"ok"`)
}
