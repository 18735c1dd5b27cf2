package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/curelink/patient-portal/internal/cart"
	"github.com/curelink/patient-portal/internal/checkout"
	"github.com/curelink/patient-portal/internal/observability/metrics"
	"github.com/curelink/patient-portal/internal/session"
	"github.com/curelink/patient-portal/pkg/logging"
)

// CartHandler exposes the patient's cart over HTTP.
type CartHandler struct {
	carts    *cart.Store
	checkout *checkout.Service
	metrics  *metrics.CartMetrics
	logger   *logging.Logger
}

// NewCartHandler creates a cart handler. The checkout service and metrics
// are optional.
func NewCartHandler(carts *cart.Store, co *checkout.Service, m *metrics.CartMetrics, logger *logging.Logger) *CartHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &CartHandler{
		carts:    carts,
		checkout: co,
		metrics:  m,
		logger:   logger,
	}
}

type cartResponse struct {
	Items      []cart.Line `json:"items"`
	Count      int         `json:"count"`
	TotalCents int64       `json:"total_cents"`
}

// Get returns the full cart with count and total.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	lines, err := h.carts.Get(r.Context(), patientID)
	if err != nil {
		h.fail(w, "get", err)
		return
	}
	count := 0
	var total int64
	for _, l := range lines {
		count += l.Quantity
		total += l.Subtotal()
	}
	h.metrics.ObserveOp("get", "ok")
	writeJSON(w, http.StatusOK, cartResponse{Items: lines, Count: count, TotalCents: total})
}

// Grouped returns the cart partitioned by pharmacy.
func (h *CartHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	grouped, err := h.carts.GroupByPharmacy(r.Context(), patientID)
	if err != nil {
		h.fail(w, "grouped", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pharmacies": grouped})
}

// AddItem upserts a line into the cart.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var line cart.Line
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if line.ProductID == "" || line.PharmacyID == "" {
		http.Error(w, "product_id and pharmacy_id are required", http.StatusBadRequest)
		return
	}

	if err := h.carts.Add(r.Context(), patientID, line); err != nil {
		h.fail(w, "add", err)
		return
	}
	h.metrics.ObserveOp("add", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// UpdateItem sets a line's quantity; zero removes it.
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ProductID  string `json:"product_id"`
		PharmacyID string `json:"pharmacy_id"`
		Quantity   int    `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.ProductID == "" || req.PharmacyID == "" {
		http.Error(w, "product_id and pharmacy_id are required", http.StatusBadRequest)
		return
	}

	if err := h.carts.UpdateQuantity(r.Context(), patientID, req.ProductID, req.PharmacyID, req.Quantity); err != nil {
		h.fail(w, "update", err)
		return
	}
	h.metrics.ObserveOp("update", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// RemoveItem deletes a line identified by product and pharmacy query params.
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	productID := r.URL.Query().Get("product")
	pharmacyID := r.URL.Query().Get("pharmacy")
	if productID == "" || pharmacyID == "" {
		http.Error(w, "product and pharmacy parameters required", http.StatusBadRequest)
		return
	}

	if err := h.carts.Remove(r.Context(), patientID, productID, pharmacyID); err != nil {
		h.fail(w, "remove", err)
		return
	}
	h.metrics.ObserveOp("remove", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.carts.Clear(r.Context(), patientID); err != nil {
		h.fail(w, "clear", err)
		return
	}
	h.metrics.ObserveOp("clear", "ok")
	w.WriteHeader(http.StatusNoContent)
}

// Checkout places one order per pharmacy and clears the cart on success.
func (h *CartHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	patientID, ok := session.PatientIDFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if h.checkout == nil {
		http.Error(w, "checkout not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		AddressID      string `json:"address_id"`
		PrescriptionID string `json:"prescription_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.AddressID == "" {
		http.Error(w, "address_id is required", http.StatusBadRequest)
		return
	}

	orders, err := h.checkout.PlaceOrders(r.Context(), patientID, req.AddressID, req.PrescriptionID)
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		http.Error(w, "cart is empty", http.StatusConflict)
		return
	case errors.Is(err, checkout.ErrPrescriptionRequired):
		http.Error(w, "prescription required", http.StatusUnprocessableEntity)
		return
	case err != nil:
		h.logger.Error("cart: checkout failed", "error", err, "patient_id", patientID, "placed", len(orders))
		h.metrics.ObserveOp("checkout", "error")
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":  "checkout failed",
			"placed": orders,
		})
		return
	}

	h.metrics.ObserveOp("checkout", "ok")
	writeJSON(w, http.StatusCreated, map[string]any{"orders": orders})
}

func (h *CartHandler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Error("cart: "+op+" failed", "error", err)
	h.metrics.ObserveOp(op, "error")
	http.Error(w, "cart operation failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
