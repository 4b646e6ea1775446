package domain

import (
	"errors"
	"fmt"
)

type Code string

const (
	CodeInvalidDate       Code = "INVALID_DATE"
	CodeInvalidSlotFormat Code = "INVALID_SLOT_FORMAT"
	CodeRestaurantClosed  Code = "RESTAURANT_CLOSED"
	CodeCutoffPassed      Code = "CUTOFF_PASSED"
	CodeSlotFull          Code = "SLOT_FULL"
	CodeOutOfStock        Code = "OUT_OF_STOCK"
	CodeTransactionFailed Code = "TRANSACTION_FAILED"
)

// Sentinels for errors.Is. A *StockError matches any of them by code.
var (
	ErrInvalidDate       = &StockError{Code: CodeInvalidDate}
	ErrInvalidSlotFormat = &StockError{Code: CodeInvalidSlotFormat}
	ErrRestaurantClosed  = &StockError{Code: CodeRestaurantClosed}
	ErrCutoffPassed      = &StockError{Code: CodeCutoffPassed}
	ErrSlotFull          = &StockError{Code: CodeSlotFull}
	ErrOutOfStock        = &StockError{Code: CodeOutOfStock}
	ErrTransactionFailed = &StockError{Code: CodeTransactionFailed}
)

// ErrConflict is returned by a ledger store when the version it was asked to
// commit against is no longer current.
var ErrConflict = errors.New("ledger version conflict")

// ErrLedgerNotFound is returned by a ledger store when no ledger exists for a date.
var ErrLedgerNotFound = errors.New("ledger not found")

// ErrLedgerExists is returned when opening a day that already has a ledger.
var ErrLedgerExists = errors.New("ledger already exists")

// StockError is a typed reservation failure. The context fields are filled
// depending on the code.
type StockError struct {
	Code      Code
	Message   string
	Date      string
	Slot      string
	ProductID string
	Requested int
	Available int
	Current   int
	Max       int
	Err       error
}

func (e *StockError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, msg)
}

func (e *StockError) Unwrap() error { return e.Err }

func (e *StockError) Is(target error) bool {
	t, ok := target.(*StockError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the stock code from err, or "" when err is not a StockError.
func CodeOf(err error) Code {
	var se *StockError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}

// TransactionFailed wraps a store-level failure.
func TransactionFailed(msg string, err error) *StockError {
	return &StockError{Code: CodeTransactionFailed, Message: msg, Err: err}
}
