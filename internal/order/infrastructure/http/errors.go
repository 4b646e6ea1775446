package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	invdomain "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	payapp "github.com/dmehra2102/Slot-Ordering-System/internal/payment/application"
)

type errorBody struct {
	Error   string `json:"error"`
	Code    string `json:"code"`
	Details any    `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := describe(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "code", body.Code, "err", err)
	} else {
		h.log.Info("request rejected", "method", r.Method, "path", r.URL.Path, "code", body.Code, "err", err)
	}
	respondJSON(w, status, body)
}

// describe maps a use-case error onto an HTTP status and response body.
// Reservation failures surface the stock code that caused them.
func describe(err error) (int, errorBody) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest, errorBody{Error: "invalid request", Code: string(domain.CodeValidation), Details: ve.Fields}
	}

	// Checked before the stock codes: a failed compensation also wraps the
	// release error.
	if errors.Is(err, domain.ErrOrderCreationFailed) {
		return http.StatusInternalServerError, errorBody{Error: "could not save order", Code: string(domain.CodeOrderCreationFailed)}
	}

	var se *invdomain.StockError
	if errors.As(err, &se) {
		return stockStatus(se.Code), errorBody{Error: message(se.Message, err), Code: string(se.Code), Details: invdomain.ToViolation(se)}
	}

	var oe *domain.OrderError
	if errors.As(err, &oe) {
		status := http.StatusInternalServerError
		switch oe.Code {
		case domain.CodeOrderNotFound:
			status = http.StatusNotFound
		case domain.CodeInvalidTransition:
			status = http.StatusConflict
		case domain.CodeValidation:
			status = http.StatusBadRequest
		}
		return status, errorBody{Error: message(oe.Message, err), Code: string(oe.Code)}
	}

	switch {
	case errors.Is(err, payapp.ErrInvalidConfirmation):
		return http.StatusBadRequest, errorBody{Error: err.Error(), Code: string(domain.CodeValidation)}
	case errors.Is(err, invdomain.ErrLedgerNotFound):
		return http.StatusNotFound, errorBody{Error: "no operation configured for that date", Code: "DAY_NOT_FOUND"}
	case errors.Is(err, invdomain.ErrLedgerExists):
		return http.StatusConflict, errorBody{Error: "day already opened", Code: "DAY_ALREADY_OPEN"}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, errorBody{Error: "request timed out, try again", Code: string(invdomain.CodeTransactionFailed)}
	}
	return http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"}
}

func stockStatus(c invdomain.Code) int {
	switch c {
	case invdomain.CodeInvalidDate, invdomain.CodeInvalidSlotFormat, invdomain.CodeInvalidItems:
		return http.StatusBadRequest
	case invdomain.CodeRestaurantClosed, invdomain.CodeCutoffPassed, invdomain.CodeSlotFull, invdomain.CodeOutOfStock:
		return http.StatusConflict
	case invdomain.CodeTransactionFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func message(msg string, err error) string {
	if msg != "" {
		return msg
	}
	return err.Error()
}
