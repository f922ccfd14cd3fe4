package reconciliation

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ryanuber/go-glob"
	"github.com/tilver/backend/internal/domain/shared"
)

// CounterpartyRule maps a counterparty name pattern to the document type its
// transactions usually settle. Match is a glob where * matches any run of
// characters, e.g. "*Telekom*".
type CounterpartyRule struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Priority     int
	Match        string
	DocumentType DocumentType
	CustomerHint string
}

// NewCounterpartyRule creates a rule
func NewCounterpartyRule(tenantID uuid.UUID, priority int, match string, docType DocumentType, hint string) (*CounterpartyRule, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewMissingFieldError("tenant id")
	}
	if strings.TrimSpace(match) == "" {
		return nil, shared.NewMissingFieldError("match")
	}
	if !docType.IsValid() {
		return nil, shared.NewDomainError(shared.CodeInvalidInput, "Document type is not valid")
	}
	return &CounterpartyRule{
		ID:           uuid.New(),
		TenantID:     tenantID,
		Priority:     priority,
		Match:        match,
		DocumentType: docType,
		CustomerHint: hint,
	}, nil
}

// Matches reports whether name fits the pattern, ignoring case
func (r CounterpartyRule) Matches(name string) bool {
	return glob.Glob(strings.ToLower(r.Match), strings.ToLower(name))
}

// RuleSet is a priority ordered list of rules; the first match wins
type RuleSet []CounterpartyRule

// NewRuleSet sorts rules by ascending priority
func NewRuleSet(rules []CounterpartyRule) RuleSet {
	rs := make(RuleSet, len(rules))
	copy(rs, rules)
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].Priority < rs[j].Priority })
	return rs
}

// First returns the first rule matching name
func (rs RuleSet) First(name string) (CounterpartyRule, bool) {
	for _, r := range rs {
		if r.Matches(name) {
			return r, true
		}
	}
	return CounterpartyRule{}, false
}

// Matches reports whether the first rule for name points at docType
func (rs RuleSet) Matches(name string, docType DocumentType) bool {
	r, ok := rs.First(name)
	return ok && r.DocumentType == docType
}
