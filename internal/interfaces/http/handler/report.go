package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tilver/backend/internal/application/report"
	"github.com/tilver/backend/internal/infrastructure/export"
	"github.com/tilver/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// TaxReportUseCases computes the tax position of a tenant
type TaxReportUseCases interface {
	Generate(ctx context.Context, scope uuid.UUID, req report.TaxReportRequest) (*report.TaxReport, error)
}

// ReportHandler handles report endpoints
type ReportHandler struct {
	BaseHandler
	tax TaxReportUseCases
}

// NewReportHandler creates a new ReportHandler
func NewReportHandler(tax TaxReportUseCases) *ReportHandler {
	return &ReportHandler{tax: tax}
}

// TaxReport godoc
// @ID           getTaxReport
// @Summary      Tax report for a period
// @Description  Output tax of issued invoices and deductible input tax of paid expenses, grouped by rate
// @Tags         reports
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        from query string true "First day" format(date)
// @Param        to query string true "Last day" format(date)
// @Success      200 {object} APIResponse[report.TaxReport]
// @Failure      400 {object} ErrorResponse
// @Router       /reports/tax [get]
func (h *ReportHandler) TaxReport(c *gin.Context) {
	r, ok := h.generate(c)
	if !ok {
		return
	}
	h.Success(c, r)
}

// TaxReportXLSX godoc
// @ID           exportTaxReport
// @Summary      Tax report as spreadsheet
// @Tags         reports
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        from query string true "First day" format(date)
// @Param        to query string true "Last day" format(date)
// @Success      200 {file} file
// @Failure      400 {object} ErrorResponse
// @Router       /reports/tax.xlsx [get]
func (h *ReportHandler) TaxReportXLSX(c *gin.Context) {
	r, ok := h.generate(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteTaxReportXLSX(&buf, r); err != nil {
		logger.L(c.Request.Context()).Error("tax report export failed", zap.Error(err))
		h.HandleDomainError(c, err)
		return
	}

	filename := fmt.Sprintf("tax-report_%s_%s.xlsx", r.From.Format("20060102"), r.To.Format("20060102"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.XLSXContentType, buf.Bytes())
}

func (h *ReportHandler) generate(c *gin.Context) (*report.TaxReport, bool) {
	scope, ok := h.scope(c)
	if !ok {
		return nil, false
	}
	var req report.TaxReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return nil, false
	}
	r, err := h.tax.Generate(c.Request.Context(), scope, req)
	if err != nil {
		h.HandleDomainError(c, err)
		return nil, false
	}
	return r, true
}
