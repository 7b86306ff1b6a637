// Package handler exposes the cart and order services over JSON/HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"littlelemon/internal/apperr"
	"littlelemon/internal/cart"
	"littlelemon/internal/metrics"
	"littlelemon/internal/order"
	"littlelemon/internal/utils"
)

type Handler struct {
	carts   cart.Service
	orders  order.Service
	metrics *metrics.Registry
}

func New(carts cart.Service, orders order.Service, m *metrics.Registry) *Handler {
	if m == nil {
		m = &metrics.Registry{}
	}
	return &Handler{carts: carts, orders: orders, metrics: m}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /metrics", h.metricsSnapshot)

	mux.HandleFunc("GET /api/cart", h.getCart)
	mux.HandleFunc("POST /api/cart", h.addToCart)
	mux.HandleFunc("DELETE /api/cart", h.clearCart)
	mux.HandleFunc("DELETE /api/cart/{menuItemID}", h.removeFromCart)

	mux.HandleFunc("GET /api/orders", h.listOrders)
	mux.HandleFunc("POST /api/orders", h.checkout)
	mux.HandleFunc("GET /api/orders/{id}", h.getOrder)
	mux.HandleFunc("PATCH /api/orders/{id}/status", h.setStatus)
	mux.HandleFunc("POST /api/orders/{id}/delivery-crew", h.assignCrew)
	mux.HandleFunc("DELETE /api/orders/{id}/delivery-crew", h.removeCrew)
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) metricsSnapshot(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, h.metrics.Snapshot())
}

func currentUser(r *http.Request) (int64, error) {
	id, ok := utils.GetUserIDFromContext(r.Context())
	if !ok {
		return 0, apperr.ErrUnauthenticated
	}
	return id, nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, ok := utils.ParseID(r.PathValue(name))
	if !ok {
		return 0, apperr.ErrInvalidInput
	}
	return id, nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.ErrInvalidInput
	}
	return nil
}
