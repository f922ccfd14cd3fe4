package shared

import "fmt"

// Error codes surfaced by the ledger core. Callers match on Code, never on Message.
const (
	CodeInvalidAmount        = "INVALID_AMOUNT"
	CodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeUnsupportedFrequency = "UNSUPPORTED_FREQUENCY"
	CodeAlreadyLinked        = "ALREADY_LINKED"
	CodeToleranceExceeded    = "TOLERANCE_EXCEEDED"
	CodeNotFound             = "NOT_FOUND"
	CodeAccessDenied         = "ACCESS_DENIED"

	CodeInvalidInput      = "INVALID_INPUT"
	CodeVersionConflict   = "VERSION_CONFLICT"
	CodeImmutableDocument = "IMMUTABLE_DOCUMENT"
	CodeApprovalRequired  = "APPROVAL_REQUIRED"
	CodeAlreadyExists     = "ALREADY_EXISTS"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so
// errors.Is(err, shared.ErrNotFound) matches any NOT_FOUND error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists        = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput         = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrAccessDenied         = NewDomainError(CodeAccessDenied, "Access to this resource is denied")
	ErrVersionConflict      = NewDomainError(CodeVersionConflict, "Resource was modified by another process")
	ErrAlreadyLinked        = NewDomainError(CodeAlreadyLinked, "Transaction is already linked to a document")
	ErrToleranceExceeded    = NewDomainError(CodeToleranceExceeded, "Amount difference exceeds the matching tolerance")
	ErrImmutableDocument    = NewDomainError(CodeImmutableDocument, "Document is finalized and can no longer be edited")
	ErrInvalidTransition    = NewDomainError(CodeInvalidTransition, "Status transition is not allowed")
	ErrUnsupportedFrequency = NewDomainError(CodeUnsupportedFrequency, "Recurring frequency is not supported")
)

// NewInvalidTransitionError reports a status move outside the allow-list.
func NewInvalidTransitionError(current, requested string) *DomainError {
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("Cannot transition from %s to %s", current, requested))
}

// NewMissingFieldError reports an absent required field by name.
func NewMissingFieldError(field string) *DomainError {
	return NewDomainError(CodeMissingRequiredField, fmt.Sprintf("%s is required", field))
}

// NewInvalidAmountError wraps a message under INVALID_AMOUNT.
func NewInvalidAmountError(message string) *DomainError {
	return NewDomainError(CodeInvalidAmount, message)
}
