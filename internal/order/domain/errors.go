package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeOrderNotFound          Code = "ORDER_NOT_FOUND"
	CodeInvalidTransition      Code = "INVALID_STATUS_TRANSITION"
	CodeStockReservationFailed Code = "STOCK_RESERVATION_FAILED"
	CodeOrderCreationFailed    Code = "ORDER_CREATION_FAILED"
	CodeValidation             Code = "VALIDATION_ERROR"
)

var (
	ErrOrderNotFound          = &OrderError{Code: CodeOrderNotFound}
	ErrInvalidTransition      = &OrderError{Code: CodeInvalidTransition}
	ErrStockReservationFailed = &OrderError{Code: CodeStockReservationFailed}
	ErrOrderCreationFailed    = &OrderError{Code: CodeOrderCreationFailed}
	ErrValidation             = &OrderError{Code: CodeValidation}
)

// ErrStatusChanged is returned by repositories when a conditional status
// update finds the order no longer in the expected status.
var ErrStatusChanged = errors.New("order status changed concurrently")

type OrderError struct {
	Code    Code
	Message string
	OrderID string
	Err     error
}

func (e *OrderError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *OrderError) Unwrap() error { return e.Err }

func (e *OrderError) Is(target error) bool {
	t, ok := target.(*OrderError)
	return ok && t.Code == e.Code
}

func NotFound(id string) *OrderError {
	return &OrderError{Code: CodeOrderNotFound, OrderID: id, Message: fmt.Sprintf("order %s not found", id)}
}

func InvalidTransition(id string, from, to OrderStatus) *OrderError {
	return &OrderError{Code: CodeInvalidTransition, OrderID: id,
		Message: fmt.Sprintf("cannot move order from %s to %s", from, to)}
}

// FieldError names one rejected request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every problem found in a request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s %s", e.Fields[0].Field, e.Fields[0].Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func (e *ValidationError) add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// CodeOf extracts the order code from err, or "".
func CodeOf(err error) Code {
	var oe *OrderError
	if errors.As(err, &oe) {
		return oe.Code
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return CodeValidation
	}
	return ""
}
