package reconciliation

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
	"github.com/tilver/backend/internal/domain/shared/valueobject"
)

// DocumentType is the kind of document a transaction can settle
type DocumentType string

const (
	DocumentTypeInvoice DocumentType = "INVOICE"
	DocumentTypeExpense DocumentType = "EXPENSE"
)

// IsValid checks the document type
func (t DocumentType) IsValid() bool {
	return t == DocumentTypeInvoice || t == DocumentTypeExpense
}

// Accepts reports whether a transaction's sign fits the document type:
// invoices are settled by incoming money, expenses by outgoing money.
func (t DocumentType) Accepts(tx *BankTransaction) bool {
	switch t {
	case DocumentTypeInvoice:
		return tx.IsIncoming()
	case DocumentTypeExpense:
		return tx.IsOutgoing()
	}
	return false
}

// MatchClass grades how close a transaction is to a document amount
type MatchClass string

const (
	MatchClassExact           MatchClass = "EXACT"
	MatchClassWithinTolerance MatchClass = "WITHIN_TOLERANCE"
	MatchClassRejected        MatchClass = "REJECTED"
)

// IsLinkable reports whether a link may be created for the class
func (c MatchClass) IsLinkable() bool {
	return c == MatchClassExact || c == MatchClassWithinTolerance
}

// ToleranceConfig holds the matching thresholds
type ToleranceConfig struct {
	ExactThreshold decimal.Decimal // |Δ| at or below this is EXACT
	Percent        decimal.Decimal // fraction of the document amount, 0.05 = 5%
	MinTolerance   decimal.Decimal // floor of the tolerance band in currency units
}

// DefaultToleranceConfig returns 0.01 exact, 5% or at least 1.00 tolerance
func DefaultToleranceConfig() ToleranceConfig {
	return ToleranceConfig{
		ExactThreshold: decimal.NewFromFloat(0.01),
		Percent:        decimal.NewFromFloat(0.05),
		MinTolerance:   decimal.NewFromInt(1),
	}
}

// Validate checks the thresholds are usable
func (c ToleranceConfig) Validate() error {
	if c.ExactThreshold.IsNegative() || c.Percent.IsNegative() || c.MinTolerance.IsNegative() {
		return shared.NewInvalidAmountError("Tolerance settings cannot be negative")
	}
	if c.MinTolerance.LessThan(c.ExactThreshold) {
		return shared.NewDomainError(shared.CodeInvalidInput, "Minimum tolerance must not be below the exact threshold")
	}
	return nil
}

// Tolerance returns max(documentAmount * Percent, MinTolerance)
func (c ToleranceConfig) Tolerance(documentAmount decimal.Decimal) decimal.Decimal {
	return decimal.Max(documentAmount.Abs().Mul(c.Percent), c.MinTolerance)
}

// Difference returns |tx| - |doc| rounded to cents; negative means underpaid
func Difference(txAmount, documentAmount decimal.Decimal) decimal.Decimal {
	return valueobject.RoundCents(txAmount.Abs().Sub(documentAmount.Abs()))
}

// ClassifyMatch compares absolute amounts; direction is the filter's job.
func ClassifyMatch(txAmount, documentAmount decimal.Decimal, cfg ToleranceConfig) MatchClass {
	delta := Difference(txAmount, documentAmount).Abs()
	switch {
	case delta.LessThanOrEqual(cfg.ExactThreshold):
		return MatchClassExact
	case delta.LessThanOrEqual(cfg.Tolerance(documentAmount)):
		return MatchClassWithinTolerance
	default:
		return MatchClassRejected
	}
}

// FilterByDirection keeps only transactions whose sign fits docType. The
// input slice is not modified.
func FilterByDirection(cands []BankTransaction, docType DocumentType) []BankTransaction {
	out := make([]BankTransaction, 0, len(cands))
	for i := range cands {
		if docType.Accepts(&cands[i]) {
			out = append(out, cands[i])
		}
	}
	return out
}

// Candidate is a ranked suggestion for a document
type Candidate struct {
	Transaction BankTransaction `json:"transaction"`
	MatchClass  MatchClass      `json:"match_class"`
	Difference  decimal.Decimal `json:"difference"`
	RuleMatched bool            `json:"rule_matched"`
}

// Suggest filters by direction, classifies every remaining transaction and
// returns the linkable ones ranked. Rules, when given, lift a counterparty
// match above others with the same delta.
func Suggest(
	cands []BankTransaction,
	docType DocumentType,
	documentAmount decimal.Decimal,
	cfg ToleranceConfig,
	rules RuleSet,
) []Candidate {
	filtered := FilterByDirection(cands, docType)
	out := make([]Candidate, 0, len(filtered))
	for _, tx := range filtered {
		class := ClassifyMatch(tx.Amount, documentAmount, cfg)
		if !class.IsLinkable() {
			continue
		}
		out = append(out, Candidate{
			Transaction: tx,
			MatchClass:  class,
			Difference:  Difference(tx.Amount, documentAmount),
			RuleMatched: rules.Matches(tx.CounterpartName, docType),
		})
	}
	Rank(out)
	return out
}

// Rank orders candidates by |Δ| ascending, rule matches first among equal
// deltas, then newest booking date first.
func Rank(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		di, dj := cands[i].Difference.Abs(), cands[j].Difference.Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}
		if cands[i].RuleMatched != cands[j].RuleMatched {
			return cands[i].RuleMatched
		}
		return cands[i].Transaction.BookingDate.After(cands[j].Transaction.BookingDate)
	})
}
