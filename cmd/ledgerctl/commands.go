package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/tilver/backend/internal/application/report"
	"github.com/tilver/backend/internal/bootstrap"
	"github.com/tilver/backend/internal/infrastructure/bankstatement"
	"github.com/tilver/backend/internal/infrastructure/export"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

func newImportStatementCmd(c *cli) *cobra.Command {
	var tenant, delimiter, decimalSep string
	cmd := &cobra.Command{
		Use:   "import-statement <file.csv>",
		Short: "Import a bank statement CSV for one tenant",
		Example: `  ledgerctl import-statement --tenant 7c9e6679-7425-40de-944b-e07fc1f90ae7 statement.csv
  ledgerctl import-statement --tenant 7c9e6679-7425-40de-944b-e07fc1f90ae7 --delimiter ',' export.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scope, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			var opts []bankstatement.ParserOption
			if delimiter != "" {
				r, size := utf8.DecodeRuneInString(delimiter)
				if size != len(delimiter) {
					return fmt.Errorf("--delimiter must be a single character")
				}
				opts = append(opts, bankstatement.WithDelimiter(r))
			}
			switch decimalSep {
			case "":
			case ",":
				opts = append(opts, bankstatement.WithAmountFormat(bankstatement.AmountFormatDecimalComma))
			case ".":
				opts = append(opts, bankstatement.WithAmountFormat(bankstatement.AmountFormatDecimalPoint))
			default:
				return fmt.Errorf("--decimal must be ',' or '.'")
			}

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open statement: %w", err)
			}
			defer f.Close()

			return c.withLedger(cmd.Context(), func(l *bootstrap.Ledger) error {
				result, err := l.Reconciliation.ImportStatement(cmd.Context(), scope, bankstatement.NewCSVParser(opts...), f)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "parsed %d, imported %d, duplicates %d\n", result.Parsed, result.Imported, result.Duplicates)
				for _, re := range result.Errors {
					fmt.Fprintf(out, "  row %d: %s\n", re.Row, re.Message)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant UUID (required)")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field delimiter, detected when empty")
	cmd.Flags().StringVar(&decimalSep, "decimal", "", "decimal separator of amounts; ',' for semicolon files when empty")
	return cmd
}

func newRunRecurringCmd(c *cli) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "run-recurring",
		Short: "Generate invoices for all due recurring templates",
		Long: `run-recurring executes every recurring template whose next date is on or
before --as-of. Runs already recorded for a date are skipped, so the
command is safe to repeat.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := parseDate("as-of", asOf, time.Now())
			if err != nil {
				return err
			}
			return c.withLedger(cmd.Context(), func(l *bootstrap.Ledger) error {
				summary, err := l.Recurring.ExecuteDue(cmd.Context(), at)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TEMPLATE\tTENANT\tDATE\tOUTCOME\tINVOICES")
				for _, r := range summary.Results {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n",
						r.TemplateID, r.TenantID, r.ScheduledDate.Format(dateLayout), r.Outcome, len(r.InvoiceIDs))
				}
				if err := tw.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "executed %d, skipped %d, completed %d, failed %d\n",
					summary.Executed, summary.Skipped, summary.Completed, summary.Failed)
				if summary.Failed > 0 {
					return fmt.Errorf("%d recurring runs failed", summary.Failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "run date YYYY-MM-DD (default today)")
	return cmd
}

func newMarkOverdueCmd(c *cli) *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "mark-overdue",
		Short: "Move past-due invoices of all tenants to OVERDUE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			at, err := parseDate("as-of", asOf, time.Now())
			if err != nil {
				return err
			}
			return c.withLedger(cmd.Context(), func(l *bootstrap.Ledger) error {
				tenants, err := l.InvoiceRepo.TenantsWithOpenInvoices(cmd.Context(), at)
				if err != nil {
					return err
				}
				failed := 0
				for _, tenant := range tenants {
					result, err := l.Invoices.MarkOverdue(cmd.Context(), tenant, at)
					if err != nil {
						failed++
						c.log.Error("overdue sweep failed", zap.Stringer("tenant_id", tenant), zap.Error(err))
						continue
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: checked %d, marked %d, failed %d\n",
						tenant, result.Checked, len(result.MarkedIDs), len(result.FailedIDs))
					failed += len(result.FailedIDs)
				}
				if failed > 0 {
					return fmt.Errorf("overdue sweep finished with %d failures", failed)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date YYYY-MM-DD (default today)")
	return cmd
}

func newTaxReportCmd(c *cli) *cobra.Command {
	var tenant, from, to, xlsxPath, lang string
	cmd := &cobra.Command{
		Use:   "tax-report",
		Short: "Print or export the tax report of a period",
		Example: `  ledgerctl tax-report --tenant 7c9e6679-7425-40de-944b-e07fc1f90ae7 --from 2026-01-01 --to 2026-03-31
  ledgerctl tax-report --tenant 7c9e6679-7425-40de-944b-e07fc1f90ae7 --from 2026-01-01 --to 2026-03-31 --xlsx q1.xlsx`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scope, err := parseTenant(tenant)
			if err != nil {
				return err
			}
			if from == "" || to == "" {
				return fmt.Errorf("--from and --to are required")
			}
			req := report.TaxReportRequest{}
			if req.From, err = parseDate("from", from, time.Time{}); err != nil {
				return err
			}
			if req.To, err = parseDate("to", to, time.Time{}); err != nil {
				return err
			}
			tag, err := language.Parse(lang)
			if err != nil {
				return fmt.Errorf("--lang: %w", err)
			}

			return c.withLedger(cmd.Context(), func(l *bootstrap.Ledger) error {
				r, err := l.TaxReports.Generate(cmd.Context(), scope, req)
				if err != nil {
					return err
				}
				if xlsxPath == "" {
					return export.WriteTaxReportText(cmd.OutOrStdout(), r, tag)
				}
				f, err := os.Create(xlsxPath)
				if err != nil {
					return fmt.Errorf("create %s: %w", xlsxPath, err)
				}
				if err := export.WriteTaxReportXLSX(f, r); err != nil {
					_ = f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", xlsxPath)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant UUID (required)")
	cmd.Flags().StringVar(&from, "from", "", "first day YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&to, "to", "", "last day YYYY-MM-DD (required)")
	cmd.Flags().StringVar(&xlsxPath, "xlsx", "", "write an xlsx file instead of printing")
	cmd.Flags().StringVar(&lang, "lang", "en", "language for amount formatting, e.g. de")
	return cmd
}
