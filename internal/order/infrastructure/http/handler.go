package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	invdomain "github.com/dmehra2102/Slot-Ordering-System/internal/inventory/domain"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/application"
	"github.com/dmehra2102/Slot-Ordering-System/internal/order/domain"
)

type Inventory interface {
	CheckAvailability(ctx context.Context, date, slot string, lines []invdomain.Line) invdomain.Availability
	OpenDay(ctx context.Context, date string, products []invdomain.ProductStock, cutoff string) (invdomain.Ledger, error)
	CloseDay(ctx context.Context, date string) error
	Ledger(ctx context.Context, date string) (invdomain.Ledger, error)
}

type SettingsStore interface {
	Get(ctx context.Context) (invdomain.Settings, error)
	Save(ctx context.Context, s invdomain.Settings) error
}

type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.Order, error)
}

type Lifecycle interface {
	UpdateOrderStatus(ctx context.Context, id string, to domain.OrderStatus) (domain.Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, id string) (domain.Order, error)
}

type PaymentConfirmer interface {
	Confirm(ctx context.Context, pc domain.PaymentConfirmation) error
}

// Services are the use cases the API exposes.
type Services struct {
	Inventory Inventory
	Settings  SettingsStore
	Orders    OrderCreator
	Lifecycle Lifecycle
	Reader    OrderReader
	Payments  PaymentConfirmer
}

type Handler struct {
	log     *slog.Logger
	svc     Services
	timeout time.Duration
	tracer  trace.Tracer
}

func NewHandler(log *slog.Logger, svc Services, timeout time.Duration) *Handler {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		log:     log,
		svc:     svc,
		timeout: timeout,
		tracer:  otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestTimeout)

	r.Get("/availability", h.availabilityQuery)
	r.Post("/availability", h.availabilityBody)
	r.Post("/orders", h.createOrder)
	r.Get("/orders/{id}", h.getOrder)
	r.Patch("/orders/{id}/status", h.updateStatus)
	r.Post("/webhooks/payment", h.paymentWebhook)

	r.Route("/admin/days", func(r chi.Router) {
		r.Post("/", h.openDay)
		r.Get("/{date}", h.getDay)
		r.Post("/{date}/close", h.closeDay)
	})
	r.Get("/admin/settings", h.getSettings)
	r.Put("/admin/settings", h.saveSettings)
	return r
}

func (h *Handler) requestTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type availabilityReq struct {
	Date  string             `json:"date"`
	Slot  string             `json:"slot"`
	Items []domain.OrderItem `json:"items"`
}

// availabilityQuery answers GET /availability?date=2025-03-14&slot=13:15&items=burger:2,fries:1.
func (h *Handler) availabilityQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := parseItems(q.Get("items"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	h.availability(w, r, availabilityReq{Date: q.Get("date"), Slot: q.Get("slot"), Items: items})
}

func (h *Handler) availabilityBody(w http.ResponseWriter, r *http.Request) {
	var req availabilityReq
	if !h.decode(w, r, &req) {
		return
	}
	h.availability(w, r, req)
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request, req availabilityReq) {
	ctx, span := h.tracer.Start(r.Context(), "CheckAvailability", trace.WithAttributes(
		attribute.String("date", req.Date), attribute.String("slot", req.Slot)))
	defer span.End()

	a := h.svc.Inventory.CheckAvailability(ctx, req.Date, req.Slot, application.Lines(req.Items))
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	var req domain.OrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	o, err := h.svc.Orders.CreateOrder(ctx, req)
	if err != nil {
		span.RecordError(err)
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetOrder")
	defer span.End()

	o, err := h.svc.Reader.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

type statusReq struct {
	Status domain.OrderStatus `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "UpdateOrderStatus")
	defer span.End()

	var req statusReq
	if !h.decode(w, r, &req) {
		return
	}
	if !req.Status.Valid() {
		h.respondError(w, r, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "status", Message: "unknown status " + strconv.Quote(string(req.Status))},
		}})
		return
	}
	o, err := h.svc.Lifecycle.UpdateOrderStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (h *Handler) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "PaymentWebhook")
	defer span.End()

	var pc domain.PaymentConfirmation
	if !h.decode(w, r, &pc) {
		return
	}
	if err := h.svc.Payments.Confirm(ctx, pc); err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "received", "order_id": pc.OrderID})
}

type openDayReq struct {
	Date       string                   `json:"date"`
	CutoffTime string                   `json:"cutoff_time"`
	Products   []invdomain.ProductStock `json:"products"`
}

func (h *Handler) openDay(w http.ResponseWriter, r *http.Request) {
	var req openDayReq
	if !h.decode(w, r, &req) {
		return
	}
	l, err := h.svc.Inventory.OpenDay(r.Context(), req.Date, req.Products, req.CutoffTime)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, l)
}

func (h *Handler) getDay(w http.ResponseWriter, r *http.Request) {
	l, err := h.svc.Inventory.Ledger(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, l)
}

func (h *Handler) closeDay(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Inventory.CloseDay(r.Context(), chi.URLParam(r, "date")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getSettings(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Settings.Get(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

// saveSettings replaces the venue settings. Reservations pick the new values
// up on their next attempt.
func (h *Handler) saveSettings(w http.ResponseWriter, r *http.Request) {
	var st invdomain.Settings
	if !h.decode(w, r, &st) {
		return
	}
	if err := validateSettings(st); err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := h.svc.Settings.Save(r.Context(), st); err != nil {
		h.respondError(w, r, err)
		return
	}
	h.log.Info("settings updated", "max_orders_per_slot", st.MaxOrdersPerSlot, "cutoff_time", st.CutoffTime)
	respondJSON(w, http.StatusOK, st)
}

func validateSettings(st invdomain.Settings) error {
	ve := &domain.ValidationError{}
	bad := func(field, msg string) {
		ve.Fields = append(ve.Fields, domain.FieldError{Field: field, Message: msg})
	}
	if st.MaxOrdersPerSlot < 0 {
		bad("max_orders_per_slot", "cannot be negative")
	}
	if st.SlotIntervalMinutes <= 0 {
		bad("slot_interval_minutes", "must be greater than 0")
	}
	if st.MaxBookingDays < 0 {
		bad("max_booking_days", "cannot be negative")
	}
	for field, v := range map[string]string{
		"cutoff_time":         st.CutoffTime,
		"service_hours.start": st.ServiceHours.Start,
		"service_hours.end":   st.ServiceHours.End,
	} {
		if v != "" && !invdomain.ValidSlot(v) {
			bad(field, "must be HH:MM")
		}
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			h.respondError(w, r, ve)
			return false
		}
		respondJSON(w, http.StatusBadRequest, errorBody{Error: "invalid body: " + err.Error(), Code: string(domain.CodeValidation)})
		return false
	}
	return true
}

// parseItems reads "product:qty" pairs separated by commas.
func parseItems(s string) ([]domain.OrderItem, error) {
	if s == "" {
		return nil, nil
	}
	var items []domain.OrderItem
	for i, part := range strings.Split(s, ",") {
		id, qty, ok := strings.Cut(strings.TrimSpace(part), ":")
		n, err := strconv.Atoi(qty)
		if !ok || err != nil {
			return nil, &domain.ValidationError{Fields: []domain.FieldError{
				{Field: "items[" + strconv.Itoa(i) + "]", Message: "expected product:qty"},
			}}
		}
		items = append(items, domain.OrderItem{ProductID: id, Qty: n})
	}
	return items, nil
}
