// Package bankstatement reads CSV exports of German and international bank
// accounts into statement lines.
package bankstatement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/reconciliation"
	"golang.org/x/text/encoding/charmap"
)

// DefaultMaxSize limits the statement size read into memory
const DefaultMaxSize = 10 << 20

var dateLayouts = []string{"02.01.2006", "02.01.06", "2006-01-02", "02/01/2006", "2.1.2006"}

// AmountFormat decides how an amount with a single separator is read
type AmountFormat int

const (
	// AmountFormatAuto treats a lone comma or dot as the decimal separator
	AmountFormatAuto AmountFormat = iota
	// AmountFormatDecimalComma reads 1.234 as one thousand two hundred thirty-four
	AmountFormatDecimalComma
	// AmountFormatDecimalPoint reads 1,234 as one thousand two hundred thirty-four
	AmountFormatDecimalPoint
)

// CSVParser parses bank statement CSV files. The delimiter is detected
// from the file unless set explicitly; preamble rows before the header
// are skipped. Semicolon files are German exports and use a decimal comma
// unless an amount format is set.
type CSVParser struct {
	delimiter    rune
	amountFormat *AmountFormat
	maxSize      int64
}

// ParserOption configures a CSVParser
type ParserOption func(*CSVParser)

// WithDelimiter fixes the field delimiter
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithAmountFormat fixes how ambiguous amounts are read
func WithAmountFormat(f AmountFormat) ParserOption {
	return func(p *CSVParser) {
		p.amountFormat = &f
	}
}

// WithMaxSize overrides DefaultMaxSize
func WithMaxSize(n int64) ParserOption {
	return func(p *CSVParser) {
		p.maxSize = n
	}
}

// NewCSVParser creates a parser
func NewCSVParser(opts ...ParserOption) *CSVParser {
	p := &CSVParser{maxSize: DefaultMaxSize}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse reads r. Rows with an unreadable date or amount are reported as
// line errors and skipped; a file without a recognizable header fails.
func (p *CSVParser) Parse(r io.Reader) ([]reconciliation.StatementLine, []reconciliation.LineError, error) {
	data, err := io.ReadAll(io.LimitReader(r, p.maxSize+1))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read statement: %w", err)
	}
	if int64(len(data)) > p.maxSize {
		return nil, nil, ErrFileTooLarge
	}
	data, err = toUTF8(data)
	if err != nil {
		return nil, nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, ErrEmptyFile
	}

	delimiter := p.delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(data)
	}
	format := AmountFormatAuto
	switch {
	case p.amountFormat != nil:
		format = *p.amountFormat
	case delimiter == ';':
		format = AmountFormatDecimalComma
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var (
		cols     columnIndex
		lines    []reconciliation.StatementLine
		lineErrs []reconciliation.LineError
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			if cols != nil {
				lineErrs = append(lineErrs, reconciliation.LineError{Row: parseErr.Line, Message: parseErr.Err.Error()})
			}
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read statement: %w", err)
		}

		if cols == nil {
			if idx, ok := detectColumns(record); ok {
				cols = idx
			}
			continue
		}
		if isBlank(record) {
			continue
		}

		row, _ := reader.FieldPos(0)
		line, err := parseLine(cols, record, format)
		if err != nil {
			lineErrs = append(lineErrs, reconciliation.LineError{Row: row, Message: err.Error()})
			continue
		}
		line.Row = row
		lines = append(lines, line)
	}

	if cols == nil {
		return nil, nil, ErrMissingHeader
	}
	return lines, lineErrs, nil
}

func parseLine(cols columnIndex, record []string, format AmountFormat) (reconciliation.StatementLine, error) {
	var line reconciliation.StatementLine

	date, err := ParseDate(cols.get(record, colDate))
	if err != nil {
		return line, err
	}

	var amount decimal.Decimal
	if _, ok := cols[colAmount]; ok {
		amount, err = ParseAmountFormat(cols.get(record, colAmount), format)
		if err != nil {
			return line, err
		}
	} else {
		amount, err = creditMinusDebit(cols.get(record, colCredit), cols.get(record, colDebit), format)
		if err != nil {
			return line, err
		}
	}

	line.BookingDate = date
	line.Amount = amount
	line.CounterpartName = cols.get(record, colCounterparty)
	line.Purpose = strings.Join(strings.Fields(cols.get(record, colPurpose)), " ")
	line.IBAN = strings.ToUpper(strings.ReplaceAll(cols.get(record, colIBAN), " ", ""))
	return line, nil
}

func creditMinusDebit(credit, debit string, format AmountFormat) (decimal.Decimal, error) {
	total := decimal.Zero
	if credit != "" {
		c, err := ParseAmountFormat(credit, format)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(c.Abs())
	}
	if debit != "" {
		d, err := ParseAmountFormat(debit, format)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Sub(d.Abs())
	}
	return total, nil
}

// ParseDate reads German (02.01.2006, 02.01.06) and ISO dates as UTC dates
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, errors.New("booking date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unreadable booking date %q", s)
}

// ParseAmount reads amounts in German (1.234,56) or English (1,234.56)
// notation. A currency code or sign suffix is accepted.
func ParseAmount(s string) (decimal.Decimal, error) {
	return ParseAmountFormat(s, AmountFormatAuto)
}

// ParseAmountFormat is ParseAmount with a known number format. A single
// separator followed by exactly three digits is a thousands separator when
// format says the other one marks decimals.
func ParseAmountFormat(s string, format AmountFormat) (decimal.Decimal, error) {
	raw := s
	s = strings.NewReplacer("EUR", "", "€", "", "\u00a0", "", " ", "", "'", "").Replace(s)
	negative := false
	switch {
	case strings.HasSuffix(s, "-"):
		negative = true
		s = strings.TrimSuffix(s, "-")
	case strings.HasPrefix(s, "-"):
		negative = true
		s = strings.TrimPrefix(s, "-")
	case strings.HasPrefix(s, "+"):
		s = strings.TrimPrefix(s, "+")
	}
	if s == "" {
		return decimal.Zero, errors.New("amount is empty")
	}
	switch format {
	case AmountFormatDecimalComma:
		s = dropThousandsSeparator(s, ".", ",")
	case AmountFormatDecimalPoint:
		s = dropThousandsSeparator(s, ",", ".")
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s[:comma], ".", "") + "." + s[comma+1:]
	case comma >= 0 && dot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ",") > 1:
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("unreadable amount %q", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// dropThousandsSeparator removes sep when it is the only separator and is
// followed by exactly three digits, as in 1.234 with a decimal comma
func dropThousandsSeparator(s, sep, decimalSep string) string {
	if strings.Contains(s, decimalSep) || strings.Count(s, sep) != 1 {
		return s
	}
	i := strings.Index(s, sep)
	if i == 0 || len(s)-i-1 != 3 {
		return s
	}
	return s[:i] + s[i+1:]
}

// toUTF8 strips a BOM and decodes Windows-1252 exports
func toUTF8(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return data, nil
	}
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, fmt.Errorf("statement encoding: %w", err)
	}
	return decoded, nil
}

// detectDelimiter picks the most frequent of ; , and tab in the first lines.
// Semicolon wins ties since German exports use decimal commas.
func detectDelimiter(data []byte) rune {
	counts := map[rune]int{}
	for i, line := range bytes.SplitN(data, []byte("\n"), 11) {
		if i == 10 {
			break
		}
		for _, d := range []rune{';', ',', '\t'} {
			counts[d] += bytes.Count(line, []byte(string(d)))
		}
	}
	best := ';'
	for _, d := range []rune{',', '\t'} {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

func isBlank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
