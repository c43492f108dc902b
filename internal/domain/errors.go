package domain

import (
	"errors"
	"fmt"
)

// Error types for domain-specific errors
type ErrorType string

const (
	ErrorTypeValidation       ErrorType = "validation"
	ErrorTypeInvalidRange     ErrorType = "invalid_range"
	ErrorTypeExtractionFailed ErrorType = "extraction_failed"
	ErrorTypeRasterMissing    ErrorType = "raster_missing"
	ErrorTypeTracingFailed    ErrorType = "tracing_failed"
	ErrorTypeStaleWrite       ErrorType = "stale_write"
	ErrorTypeConfig           ErrorType = "config"
	ErrorTypeIO               ErrorType = "io"
)

// Sentinels for errors.Is matching against a DomainError's type.
var (
	ErrInvalidRange     = &DomainError{Type: ErrorTypeInvalidRange}
	ErrExtractionFailed = &DomainError{Type: ErrorTypeExtractionFailed}
	ErrRasterMissing    = &DomainError{Type: ErrorTypeRasterMissing}
	ErrTracingFailed    = &DomainError{Type: ErrorTypeTracingFailed}
	ErrStaleWrite       = &DomainError{Type: ErrorTypeStaleWrite}
	ErrValidation       = &DomainError{Type: ErrorTypeValidation}
)

// DomainError represents a domain-specific error with context
type DomainError struct {
	Type       ErrorType
	Message    string
	PageNumber int // zero when the error concerns a whole batch
	Err        error
}

func (e *DomainError) Error() string {
	msg := e.Message
	if e.PageNumber > 0 {
		msg = fmt.Sprintf("page %d: %s", e.PageNumber, msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, msg, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, msg)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same type.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Type == e.Type
}

// NewError creates a new domain error
func NewError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Common error constructors
func ValidationError(message string, err error) *DomainError {
	return NewError(ErrorTypeValidation, message, err)
}

func InvalidRangeError(start, end int) *DomainError {
	return NewError(ErrorTypeInvalidRange, fmt.Sprintf("invalid page range %d-%d", start, end), nil)
}

func ExtractionFailedError(message string, err error) *DomainError {
	return NewError(ErrorTypeExtractionFailed, message, err)
}

func RasterMissingError(page int) *DomainError {
	e := NewError(ErrorTypeRasterMissing, "no raster produced", nil)
	e.PageNumber = page
	return e
}

func TracingFailedError(page int, err error) *DomainError {
	e := NewError(ErrorTypeTracingFailed, "tracing failed", err)
	e.PageNumber = page
	return e
}

func StaleWriteError(page int, got, current uint64) *DomainError {
	e := NewError(ErrorTypeStaleWrite, fmt.Sprintf("result for generation %d dropped, current is %d", got, current), nil)
	e.PageNumber = page
	return e
}

func ConfigError(message string, err error) *DomainError {
	return NewError(ErrorTypeConfig, message, err)
}

func IOError(message string, err error) *DomainError {
	return NewError(ErrorTypeIO, message, err)
}
