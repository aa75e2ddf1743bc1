package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/erazemk/uniforme/internal/auth"
	"github.com/erazemk/uniforme/internal/events"
	"github.com/erazemk/uniforme/internal/inflight"
	"github.com/erazemk/uniforme/internal/model"
	"github.com/erazemk/uniforme/internal/receipt"
	"github.com/erazemk/uniforme/internal/store"
)

// OrdersHandler handles order endpoints. Mutations of one order never run
// concurrently: a second request for the same id gets 409 while the first
// is in flight.
type OrdersHandler struct {
	DB    *sql.DB
	Bus   *events.Bus
	Guard *inflight.Guard
	Now   func() time.Time
}

type createOrderRequest struct {
	Items []store.OrderLine `json:"items"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type receiptResponse struct {
	Payload            *receipt.Payload `json:"payload"`
	QR                 string           `json:"qr"`
	RemainingValidDays int              `json:"remaining_valid_days"`
	ExpiresOn          string           `json:"expires_on"`
}

func (h *OrdersHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// List handles GET /api/orders[?status=&student_id=].
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	filter := store.OrderFilter{Status: r.URL.Query().Get("status")}

	if isStaff(claims) {
		if sid := r.URL.Query().Get("student_id"); sid != "" {
			id, err := strconv.ParseInt(sid, 10, 64)
			if err != nil {
				jsonError(w, http.StatusBadRequest, "invalid student id")
				return
			}
			filter.StudentID = id
		}
	} else {
		if claims.StudentID == 0 {
			jsonResponse(w, http.StatusOK, []model.Order{})
			return
		}
		filter.StudentID = claims.StudentID
	}

	orders, err := store.ListOrders(r.Context(), h.DB, filter)
	if err != nil {
		storeError(w, err, "list orders")
		return
	}
	if orders == nil {
		orders = []model.Order{}
	}
	jsonResponse(w, http.StatusOK, orders)
}

// Create handles POST /api/orders. Only students with a profile order.
func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := GetClaims(r.Context())
	if claims.Role != model.RoleStudent || claims.StudentID == 0 {
		jsonError(w, http.StatusForbidden, "only students can place orders")
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Items) == 0 {
		jsonError(w, http.StatusBadRequest, "items required")
		return
	}
	for _, line := range req.Items {
		if line.ItemID <= 0 || line.Quantity <= 0 {
			jsonError(w, http.StatusBadRequest, "each item needs item_id and a positive quantity")
			return
		}
	}

	var order *model.Order
	key := "checkout:" + strconv.FormatInt(claims.StudentID, 10)
	err := h.Guard.Do(key, func() error {
		var err error
		order, err = store.CreateOrder(r.Context(), h.DB, claims.StudentID, req.Items, h.now())
		return err
	})
	if err != nil {
		storeError(w, err, "create order")
		return
	}

	slog.Info("order created", "user", claims.Username, "order", order.OrderNumber, "type", order.OrderType)
	publish(h.Bus, events.ForOrder(events.OrderCreated, *order))
	writeJSON(w, http.StatusCreated, envelope{Success: true, Data: order, Message: "order placed"})
}

// load fetches an order the caller may see. It writes the error response
// and returns nil otherwise.
func (h *OrdersHandler) load(w http.ResponseWriter, r *http.Request, claims *auth.Claims) *model.Order {
	order, err := store.GetOrder(r.Context(), h.DB, r.PathValue("id"))
	if err != nil {
		storeError(w, err, "get order")
		return nil
	}
	// Students only see their own orders; others look missing.
	if order == nil || (!isStaff(claims) && order.StudentID != claims.StudentID) {
		jsonError(w, http.StatusNotFound, "order not found")
		return nil
	}
	return order
}

// Get handles GET /api/orders/{id}.
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	order := h.load(w, r, GetClaims(r.Context()))
	if order == nil {
		return
	}
	jsonResponse(w, http.StatusOK, order)
}

// UpdateStatus handles PUT /api/orders/{id}/status.
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !model.ValidOrderStatus(req.Status) {
		jsonError(w, http.StatusBadRequest, "invalid status")
		return
	}

	name := events.OrderUpdated
	if req.Status == model.OrderStatusClaimed {
		name = events.OrderClaimed
	}
	h.transition(w, r, req.Status, name)
}

// Cancel handles POST /api/orders/{id}/cancel.
func (h *OrdersHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.OrderStatusCancelled, events.OrderUpdated)
}

// Claim handles POST /api/orders/{id}/claim.
func (h *OrdersHandler) Claim(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, model.OrderStatusClaimed, events.OrderClaimed)
}

func (h *OrdersHandler) transition(w http.ResponseWriter, r *http.Request, status, eventName string) {
	claims := GetClaims(r.Context())
	current := h.load(w, r, claims)
	if current == nil {
		return
	}

	var order *model.Order
	err := h.Guard.Do(current.ID, func() error {
		var err error
		order, err = store.UpdateOrderStatus(r.Context(), h.DB, current.ID, status, h.now())
		return err
	})
	if err != nil {
		storeError(w, err, "update order")
		return
	}

	slog.Info("order status changed", "user", claims.Username, "order", order.OrderNumber,
		"from", current.Status, "to", order.Status)
	publish(h.Bus, events.ForOrder(eventName, *order))
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: order, Message: "order " + order.Status})
}

// Receipt handles GET /api/orders/{id}/receipt: the QR payload and how many
// weekdays it stays valid.
func (h *OrdersHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	order := h.load(w, r, GetClaims(r.Context()))
	if order == nil {
		return
	}
	if order.QRIssuedAt == nil {
		jsonError(w, http.StatusConflict, "receipt not issued yet")
		return
	}

	student, err := store.GetStudent(r.Context(), h.DB, order.StudentID)
	if err != nil || student == nil {
		jsonError(w, http.StatusInternalServerError, "failed to load student")
		return
	}
	settings, err := store.GetOrderSettings(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "load settings")
		return
	}

	payload, err := receipt.NewPayload(*order, *student, *order.QRIssuedAt, settings.QRValidDays)
	if err != nil {
		jsonError(w, http.StatusConflict, err.Error())
		return
	}
	qr, err := payload.Encode()
	if err != nil {
		jsonError(w, http.StatusInternalServerError, "failed to encode receipt")
		return
	}

	now := h.now()
	jsonResponse(w, http.StatusOK, receiptResponse{
		Payload:            payload,
		QR:                 qr,
		RemainingValidDays: payload.RemainingValidDays(now),
		ExpiresOn:          receipt.ExpiryDate(payload.QRIssuedAt, payload.QRValidDays, now.Location()).Format(time.DateOnly),
	})
}
