package bankstatement

import "errors"

var (
	// ErrEmptyFile is returned for a statement without content
	ErrEmptyFile = errors.New("statement file is empty")

	// ErrMissingHeader is returned when no row names a date and an amount column
	ErrMissingHeader = errors.New("statement has no recognizable header row")

	// ErrFileTooLarge is returned when the statement exceeds the size limit
	ErrFileTooLarge = errors.New("statement exceeds maximum allowed size")
)
