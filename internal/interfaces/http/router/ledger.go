package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tilver/backend/internal/interfaces/http/handler"
	"github.com/tilver/backend/internal/interfaces/http/middleware"
)

// LedgerHandlers are the handlers behind the ledger API
type LedgerHandlers struct {
	Invoice        *handler.InvoiceHandler
	Expense        *handler.ExpenseHandler
	Payment        *handler.PaymentHandler
	Recurring      *handler.RecurringHandler
	Reconciliation *handler.ReconciliationHandler
	Report         *handler.ReportHandler
	Health         *handler.HealthHandler
}

// LedgerLimits bounds request sizes and the rate of expensive requests
type LedgerLimits struct {
	// MaxBodySize applies to JSON endpoints
	MaxBodySize int64
	// MaxUploadSize applies to statement imports
	MaxUploadSize int64
	// Heavy throttles imports and spreadsheet exports per tenant; nil disables it
	Heavy *middleware.RateLimiter
}

// LedgerGroups builds the route groups of the ledger API
func LedgerGroups(h LedgerHandlers, limits LedgerLimits) []RouteRegistrar {
	jsonLimit := middleware.BodyLimit(limits.MaxBodySize)
	var heavy gin.HandlerFunc
	if limits.Heavy != nil {
		heavy = middleware.RateLimitByTenant(limits.Heavy)
	}

	invoices := NewDomainGroup("invoices", "/invoices").Use(jsonLimit)
	invoices.POST("", h.Invoice.Create).
		GET("", h.Invoice.List).
		GET("/:id", h.Invoice.Get).
		PATCH("/:id", h.Invoice.Update).
		POST("/:id/transition", h.Invoice.Transition)

	expenses := NewDomainGroup("expenses", "/expenses").Use(jsonLimit)
	expenses.POST("", h.Expense.Create).
		GET("", h.Expense.List).
		GET("/:id", h.Expense.Get).
		PATCH("/:id", h.Expense.Update).
		POST("/:id/submit", h.Expense.Submit).
		POST("/:id/approve", h.Expense.Approve).
		POST("/:id/reject", h.Expense.Reject).
		POST("/:id/pay", h.Expense.Pay)

	payments := NewDomainGroup("payments", "/payments").Use(jsonLimit)
	payments.POST("", h.Payment.Create).
		GET("", h.Payment.List).
		GET("/:id", h.Payment.Get).
		POST("/:id/actions", h.Payment.ApplyAction)

	recurring := NewDomainGroup("recurring", "/recurring-templates").Use(jsonLimit)
	recurring.POST("", h.Recurring.Create).
		GET("", h.Recurring.List).
		GET("/:id", h.Recurring.Get).
		PATCH("/:id", h.Recurring.Update).
		POST("/:id/execute", h.Recurring.Execute)

	// the import route carries its own, larger body limit
	reconciliation := NewDomainGroup("reconciliation", "/reconciliation")
	reconciliation.GET("/candidates", h.Reconciliation.Candidates).
		POST("/links", jsonLimit, h.Reconciliation.Link).
		POST("/import", middleware.BodyLimit(limits.MaxUploadSize), heavy, h.Reconciliation.Import).
		GET("/transactions", h.Reconciliation.Transactions).
		GET("/rules", h.Reconciliation.ListRules).
		POST("/rules", jsonLimit, h.Reconciliation.CreateRule)

	reports := NewDomainGroup("reports", "/reports")
	reports.GET("/tax", h.Report.TaxReport).
		GET("/tax.xlsx", heavy, h.Report.TaxReportXLSX)

	groups := []RouteRegistrar{invoices, expenses, payments, recurring, reconciliation, reports}
	if h.Health != nil {
		groups = append(groups, NewDomainGroup("health", "/health").GET("", h.Health.Health))
	}
	return groups
}
