package dto

import (
	"net/http"

	"github.com/tilver/backend/internal/domain/shared"
)

// Transport error codes. Domain errors keep their own code on the wire.
const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeMissingTenant   = "MISSING_TENANT"
	ErrCodeMissingActor    = "MISSING_ACTOR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeTimeout         = "REQUEST_TIMEOUT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// 400
	shared.CodeInvalidAmount:        http.StatusBadRequest,
	shared.CodeMissingRequiredField: http.StatusBadRequest,
	shared.CodeInvalidInput:         http.StatusBadRequest,
	shared.CodeUnsupportedFrequency: http.StatusBadRequest,
	ErrCodeBadRequest:               http.StatusBadRequest,
	ErrCodeValidation:               http.StatusBadRequest,
	ErrCodeMissingTenant:            http.StatusBadRequest,
	ErrCodeMissingActor:             http.StatusBadRequest,

	shared.CodeAccessDenied: http.StatusForbidden,
	shared.CodeNotFound:     http.StatusNotFound,

	// 409
	shared.CodeAlreadyLinked:   http.StatusConflict,
	shared.CodeVersionConflict: http.StatusConflict,
	shared.CodeAlreadyExists:   http.StatusConflict,

	// 422
	shared.CodeInvalidTransition: http.StatusUnprocessableEntity,
	shared.CodeToleranceExceeded: http.StatusUnprocessableEntity,
	shared.CodeImmutableDocument: http.StatusUnprocessableEntity,
	shared.CodeApprovalRequired:  http.StatusUnprocessableEntity,

	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRateLimited:     http.StatusTooManyRequests,
	ErrCodeTimeout:         http.StatusGatewayTimeout,
	ErrCodeInternal:        http.StatusInternalServerError,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
