package handler

import "github.com/tilver/backend/internal/interfaces/http/dto"

// APIResponse documents the success envelope with a typed data field.
// Handlers write dto.Response; this type only feeds swag.
type APIResponse[T any] struct {
	Success bool      `json:"success" example:"true"`
	Data    T         `json:"data,omitempty"`
	Meta    *dto.Meta `json:"meta,omitempty"`
}

// ErrorResponse documents the failure envelope, e.g.
// {"success":false,"error":{"code":"INVALID_TRANSITION","message":"..."}}
type ErrorResponse struct {
	Success bool           `json:"success" example:"false"`
	Error   *dto.ErrorInfo `json:"error"`
}
