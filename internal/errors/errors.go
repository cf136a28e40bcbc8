// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Standard sentinel errors
var (
	ErrConfigInvalid = errors.New("invalid configuration")
	ErrInvalidInput  = errors.New("invalid input")
	ErrEmptyData     = errors.New("no historical data")
	ErrDataNotFound  = errors.New("data not found")
	ErrDatabaseError = errors.New("database error")
)

// ConfigError represents a fatal strategy configuration error. It aborts the
// run before any trading day is processed.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ConfigError) Unwrap() error {
	return ErrConfigInvalid
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field string, value interface{}, message string) *ConfigError {
	return &ConfigError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InvalidInputError represents malformed arguments to a pure calculation.
// The engine catches it and downgrades the operation to a diagnostic.
type InvalidInputError struct {
	Op      string
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input [%s]: %s", e.Op, e.Message)
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// NewInvalidInputError creates a new InvalidInputError.
func NewInvalidInputError(op, message string) *InvalidInputError {
	return &InvalidInputError{
		Op:      op,
		Message: message,
	}
}

// DataGapError represents missing market data for a specific lookup.
// It is recoverable: the affected tick or leg is skipped and the run
// continues.
type DataGapError struct {
	Symbol    string
	Strike    int
	Type      string
	Timestamp time.Time
}

func (e *DataGapError) Error() string {
	return fmt.Sprintf("data gap: no quote for %s %d %s at %s",
		e.Symbol, e.Strike, e.Type, e.Timestamp.Format(time.RFC3339))
}

func (e *DataGapError) Unwrap() error {
	return ErrDataNotFound
}

// NewDataGapError creates a new DataGapError.
func NewDataGapError(symbol string, strike int, optType string, ts time.Time) *DataGapError {
	return &DataGapError{
		Symbol:    symbol,
		Strike:    strike,
		Type:      optType,
		Timestamp: ts,
	}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
