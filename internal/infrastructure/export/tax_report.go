// Package export renders reports as XLSX workbooks and plain text.
package export

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/application/report"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
)

// XLSXContentType is the media type of workbooks written by this package
const XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	summarySheet = "Summary"
	outputSheet  = "Output tax"
	inputSheet   = "Input tax"
	dateLayout   = "2006-01-02"
	amountFormat = "#,##0.00"
)

var rateHeader = []any{"Rate %", "Net", "Tax", "Gross", "Documents"}

// TaxReportWorkbook renders a tax report as a workbook with a summary sheet
// and one sheet per tax direction.
func TaxReportWorkbook(r *report.TaxReport) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}

	styles, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	summary := [][]any{
		{"Tax report"},
		{"Tenant", r.TenantID.String()},
		{"Period", r.From.Format(dateLayout) + " - " + r.To.Format(dateLayout)},
		{"Invoices", r.InvoiceCount},
		{"Expenses", r.ExpenseCount},
		{},
		{"Output tax", r.TotalOutput.InexactFloat64()},
		{"Input tax", r.TotalInput.InexactFloat64()},
		{"Payable", r.Payable.InexactFloat64()},
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A1", "A1", styles.title); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "B7", "B9", styles.amount); err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(summarySheet, "A9", "B9", styles.total); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 14); err != nil {
		return nil, err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 40); err != nil {
		return nil, err
	}

	for _, sheet := range []struct {
		name  string
		lines []report.TaxRateLine
	}{
		{outputSheet, r.OutputTax},
		{inputSheet, r.InputTax},
	} {
		if err := writeRateSheet(f, sheet.name, sheet.lines, styles); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// WriteTaxReportXLSX writes the workbook of r to w
func WriteTaxReportXLSX(w io.Writer, r *report.TaxReport) error {
	f, err := TaxReportWorkbook(r)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	title  int
	header int
	amount int
	total  int
}

func newStyles(f *excelize.File) (sheetStyles, error) {
	var s sheetStyles
	var err error
	if s.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return s, err
	}
	if s.header, err = f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	}); err != nil {
		return s, err
	}
	format := amountFormat
	if s.amount, err = f.NewStyle(&excelize.Style{CustomNumFmt: &format}); err != nil {
		return s, err
	}
	if s.total, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}, CustomNumFmt: &format}); err != nil {
		return s, err
	}
	return s, nil
}

func writeRateSheet(f *excelize.File, name string, lines []report.TaxRateLine, styles sheetStyles) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}

	rows := [][]any{rateHeader}
	net, tax, gross := decimal.Zero, decimal.Zero, decimal.Zero
	docs := 0
	for _, l := range lines {
		rows = append(rows, []any{
			l.Rate.InexactFloat64(),
			l.NetAmount.InexactFloat64(),
			l.TaxAmount.InexactFloat64(),
			l.GrossAmount.InexactFloat64(),
			l.Documents,
		})
		net, tax, gross = net.Add(l.NetAmount), tax.Add(l.TaxAmount), gross.Add(l.GrossAmount)
		docs += l.Documents
	}
	rows = append(rows, []any{"Total", net.InexactFloat64(), tax.InexactFloat64(), gross.InexactFloat64(), docs})
	if err := writeRows(f, name, rows); err != nil {
		return err
	}

	last := len(rows)
	if err := f.SetCellStyle(name, "A1", "E1", styles.header); err != nil {
		return err
	}
	if last > 2 {
		if err := f.SetCellStyle(name, "B2", fmt.Sprintf("D%d", last-1), styles.amount); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(name, fmt.Sprintf("A%d", last), fmt.Sprintf("E%d", last), styles.total); err != nil {
		return err
	}
	return f.SetColWidth(name, "A", "E", 14)
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}

// WriteTaxReportText prints r as an aligned table with amounts formatted
// for tag.
func WriteTaxReportText(w io.Writer, r *report.TaxReport, tag language.Tag) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	amount := func(d decimal.Decimal) string { return valueobject.FormatAmount(tag, d) }

	fmt.Fprintf(tw, "Tax report %s - %s\t\n", r.From.Format(dateLayout), r.To.Format(dateLayout))
	for _, section := range []struct {
		title string
		lines []report.TaxRateLine
		total decimal.Decimal
	}{
		{"Output tax", r.OutputTax, r.TotalOutput},
		{"Input tax", r.InputTax, r.TotalInput},
	} {
		fmt.Fprintf(tw, "\t\n%s\t\n", section.title)
		fmt.Fprint(tw, "Rate %\tNet\tTax\tGross\tDocs\t\n")
		for _, l := range section.lines {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t\n",
				l.Rate.String(), amount(l.NetAmount), amount(l.TaxAmount), amount(l.GrossAmount), l.Documents)
		}
		fmt.Fprintf(tw, "Total\t\t%s\t\t\t\n", amount(section.total))
	}
	fmt.Fprintf(tw, "\t\nPayable\t\t%s\t\t\t\n", amount(r.Payable))
	return tw.Flush()
}
