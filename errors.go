package courier

import (
	"errors"
	"fmt"
)

// Error represents a courier library error with categorization.
type Error struct {
	// Code is a machine-readable error code
	Code string

	// Message is a human-readable error message
	Message string

	// Err is the underlying error (if any)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Error codes for courier operations.
const (
	// ErrCodeNoData indicates no data was found.
	ErrCodeNoData = "NO_DATA"

	// ErrCodeValidation indicates a message failed structural validation.
	ErrCodeValidation = "VALIDATION_ERROR"

	// ErrCodeCapacity indicates the queue rejected a message at capacity.
	ErrCodeCapacity = "CAPACITY_ERROR"

	// ErrCodeConfiguration indicates invalid configuration.
	ErrCodeConfiguration = "CONFIGURATION_ERROR"

	// ErrCodeDatabase indicates a durable store operation failed.
	// Store failures indicate potential data loss and must surface to callers.
	ErrCodeDatabase = "DATABASE_ERROR"

	// ErrCodeDelivery indicates message delivery failed.
	ErrCodeDelivery = "DELIVERY_ERROR"

	// ErrCodeSync indicates a synchronization operation failed.
	ErrCodeSync = "SYNC_ERROR"
)

// Common errors.
var (
	// ErrNoData is returned when a query returns no results.
	// This is not necessarily an error condition in all cases.
	ErrNoData = &Error{
		Code:    ErrCodeNoData,
		Message: "no data found",
	}

	// ErrReconnectionExhausted is reported once the reconnection manager has
	// used up its maximum attempt budget.
	ErrReconnectionExhausted = &Error{
		Code:    ErrCodeDelivery,
		Message: "maximum reconnection attempts exhausted",
	}
)

// NewError creates a new Error with the given code and message.
func NewError(code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithCause creates a new Error wrapping an underlying error.
func NewErrorWithCause(code, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     cause,
	}
}

// IsNoData checks if an error is ErrNoData.
func IsNoData(err error) bool {
	var courierErr *Error
	if errors.As(err, &courierErr) {
		return courierErr.Code == ErrCodeNoData
	}
	return errors.Is(err, ErrNoData)
}
