package invoicing

import (
	"github.com/shopspring/decimal"
	"github.com/tilver/backend/internal/domain/shared"
)

// ApprovalPolicy decides whether an expense needs a human approver and who may give it
type ApprovalPolicy interface {
	RequiresApproval(e *Expense) bool
	Authorize(e *Expense, approver shared.Actor) error
}

// ThresholdApprovalPolicy requires an approver other than the submitter for
// expenses at or above Threshold. Below it, the system actor may auto-approve.
type ThresholdApprovalPolicy struct {
	Threshold   decimal.Decimal
	AllowSystem bool // system actor may approve above the threshold too
}

// NewThresholdApprovalPolicy creates a ThresholdApprovalPolicy
func NewThresholdApprovalPolicy(threshold decimal.Decimal, allowSystem bool) *ThresholdApprovalPolicy {
	return &ThresholdApprovalPolicy{Threshold: threshold, AllowSystem: allowSystem}
}

// RequiresApproval reports whether gross reaches the threshold
func (p *ThresholdApprovalPolicy) RequiresApproval(e *Expense) bool {
	return e.GrossAmount.GreaterThanOrEqual(p.Threshold)
}

// Authorize returns nil when approver may approve e
func (p *ThresholdApprovalPolicy) Authorize(e *Expense, approver shared.Actor) error {
	if err := approver.Validate(); err != nil {
		return err
	}
	if !p.RequiresApproval(e) {
		return nil
	}
	if approver.IsSystem() {
		if p.AllowSystem {
			return nil
		}
		return shared.NewDomainError(shared.CodeApprovalRequired, "Expense exceeds the approval threshold and needs a human approver")
	}
	if e.CreatedBy != nil && *e.CreatedBy == approver.ID {
		return shared.NewDomainError(shared.CodeAccessDenied, "Expense cannot be approved by its submitter")
	}
	return nil
}
