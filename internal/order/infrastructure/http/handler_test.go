package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	invapp "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/application"
	invdomain "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
	invmemory "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/infrastructure/memory"
	sagaapp "github.com/dmehra2102/Slot-Ordering-System/internal/orchestrator/application"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/application"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
	ordermemory "github.com/dmehra2102/Slot-Ordering-System/internal/order/infrastructure/memory"
	payapp "github.com/dmehra2102/Slot-Ordering-System/internal/payment/application"
	paydomain "github.com/dmehra2102/Slot-Ordering-System/internal/payment/domain"
	"github.com/dmehra2102/Slot-Ordering-System/pkg/idempotency"
)

var clock = time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)

type payments struct {
	mu   sync.Mutex
	seen map[string]bool
}

func (p *payments) Record(_ context.Context, pay paydomain.Payment) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.seen[pay.EventID] {
		return false, nil
	}
	p.seen[pay.EventID] = true
	return true, nil
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	settings := invmemory.NewSettingsProvider(invdomain.Settings{MaxOrdersPerSlot: 2, CutoffTime: "22:00", SlotIntervalMinutes: 15})
	coord := invapp.NewCoordinator(log, invmemory.NewLedgerStore(), settings,
		invapp.WithClock(func() time.Time { return clock }),
		invapp.WithLocation(time.UTC),
		invapp.WithBackoff(time.Millisecond))
	orders := ordermemory.NewRepository()
	sm := application.NewStateMachine(log, orders, coord)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	pay := payapp.NewService(log, &payments{seen: map[string]bool{}}, idempotency.NewStore(rdb, time.Hour), sm)

	h := NewHandler(log, Services{
		Inventory: coord,
		Settings:  settings,
		Orders:    sagaapp.NewOrderSaga(log, coord, orders),
		Lifecycle: sm,
		Reader:    orders,
		Payments:  pay,
	}, time.Second)

	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func openDay(t *testing.T, srv *httptest.Server) {
	t.Helper()
	resp, _ := do(t, srv, http.MethodPost, "/admin/days", map[string]any{
		"date": "2025-03-14",
		"products": []map[string]any{
			{"product_id": "burger", "name": "Burger", "unit_price": 1250, "available_stock": 10, "is_available": true},
			{"product_id": "fries", "name": "Fries", "unit_price": 400, "available_stock": 2, "is_available": true},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
}

func orderBody(qty int) map[string]any {
	return map[string]any{
		"customer": map[string]any{"uid": "u1", "display_name": "Ana"},
		"items": []map[string]any{
			{"product_id": "burger", "name": "Burger", "qty": qty, "unit_price": 1250,
				"modifiers": []map[string]any{{"type": "doneness", "value": "rare"}}},
		},
		"logistics": map[string]any{"slot_id": "13:15", "order_date": "2025-03-14", "type": "PICKUP"},
	}
}

func TestOrderFlow(t *testing.T) {
	srv := newServer(t)
	openDay(t, srv)

	resp, created := do(t, srv, http.MethodPost, "/orders", orderBody(2))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := created["order_id"].(string)
	require.NotEmpty(t, id)

	resp, got := do(t, srv, http.MethodGet, "/orders/"+id, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PENDING_PAYMENT", got["workflow"].(map[string]any)["status"])

	resp, _ = do(t, srv, http.MethodPost, "/webhooks/payment", map[string]any{"event_id": "evt_1", "order_id": id, "amount": 2500})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, got = do(t, srv, http.MethodPatch, "/orders/"+id+"/status", map[string]any{"status": "PREPARING"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "PREPARING", got["workflow"].(map[string]any)["status"])

	resp, got = do(t, srv, http.MethodPatch, "/orders/"+id+"/status", map[string]any{"status": "PENDING_PAYMENT"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", got["code"])

	resp, _ = do(t, srv, http.MethodGet, "/admin/days/2025-03-14", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateOrderErrors(t *testing.T) {
	srv := newServer(t)
	openDay(t, srv)

	resp, body := do(t, srv, http.MethodPost, "/orders", orderBody(11))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "OUT_OF_STOCK", body["code"])

	resp, body = do(t, srv, http.MethodPost, "/orders", map[string]any{"items": []any{}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.NotEmpty(t, body["details"])

	for range 2 {
		resp, _ = do(t, srv, http.MethodPost, "/orders", orderBody(1))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp, body = do(t, srv, http.MethodPost, "/orders", orderBody(1))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SLOT_FULL", body["code"])

	resp, body = do(t, srv, http.MethodGet, "/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "ORDER_NOT_FOUND", body["code"])
}

func TestAvailability(t *testing.T) {
	srv := newServer(t)
	openDay(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/availability?date=2025-03-14&slot=13:15&items=burger:2,fries:1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["available"])

	resp, body = do(t, srv, http.MethodPost, "/availability", map[string]any{
		"date": "2025-03-14", "slot": "13:15",
		"items": []map[string]any{{"product_id": "fries", "qty": 3}},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["available"])
	errs := body["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, "OUT_OF_STOCK", errs[0].(map[string]any)["code"])

	resp, body = do(t, srv, http.MethodGet, "/availability?date=2025-03-14&slot=13:15&items=burger", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
}

func TestDayAdmin(t *testing.T) {
	srv := newServer(t)
	openDay(t, srv)

	resp, body := do(t, srv, http.MethodPost, "/admin/days", map[string]any{"date": "2025-03-14"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "DAY_ALREADY_OPEN", body["code"])

	resp, _ = do(t, srv, http.MethodPost, "/admin/days/2025-03-14/close", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/orders", orderBody(1))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "RESTAURANT_CLOSED", body["code"])

	resp, body = do(t, srv, http.MethodGet, "/admin/days/2025-03-20", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "DAY_NOT_FOUND", body["code"])

	resp, body = do(t, srv, http.MethodPost, "/admin/days/14-03-2025/close", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_DATE", body["code"])
}

func TestDescribe(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{invdomain.TransactionFailed("gave up", invdomain.ErrConflict), http.StatusServiceUnavailable, "TRANSACTION_FAILED"},
		{fmt.Errorf("load: %w", context.DeadlineExceeded), http.StatusServiceUnavailable, "TRANSACTION_FAILED"},
		{&domain.OrderError{Code: domain.CodeStockReservationFailed, Err: &invdomain.StockError{Code: invdomain.CodeCutoffPassed}}, http.StatusConflict, "CUTOFF_PASSED"},
		{&sagaapp.CompensationError{PersistErr: errors.New("db"), ReleaseErr: invdomain.TransactionFailed("x", nil)}, http.StatusInternalServerError, "ORDER_CREATION_FAILED"},
		{payapp.ErrInvalidConfirmation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		status, body := describe(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.code, body.Code, tc.err.Error())
	}
}

func TestSettings(t *testing.T) {
	srv := newServer(t)
	openDay(t, srv)

	resp, body := do(t, srv, http.MethodGet, "/admin/settings", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["max_orders_per_slot"])

	resp, body = do(t, srv, http.MethodPut, "/admin/settings", map[string]any{
		"max_orders_per_slot": -1, "cutoff_time": "25:00", "slot_interval_minutes": 15,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Len(t, body["details"], 2)

	resp, _ = do(t, srv, http.MethodPut, "/admin/settings", map[string]any{
		"max_orders_per_slot": 0, "cutoff_time": "22:00", "slot_interval_minutes": 15,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = do(t, srv, http.MethodPost, "/orders", orderBody(1))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "SLOT_FULL", body["code"])
}
