package handler

import (
	"net/http"

	"littlelemon/internal/apperr"
	"littlelemon/internal/order"
	"littlelemon/internal/utils"
)

type setStatusRequest struct {
	Status string `json:"status"`
}

type assignCrewRequest struct {
	DeliveryCrewID int64 `json:"delivery_crew_id"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Checkout(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, order.ToResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	orders, err := h.orders.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order.ToResponses(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	userID, orderID, err := actorAndOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.Get(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order.ToResponse(o))
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	userID, orderID, err := actorAndOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req setStatusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status, err := order.ParseStatus(req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.SetStatus(r.Context(), userID, orderID, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order.ToResponse(o))
}

func (h *Handler) assignCrew(w http.ResponseWriter, r *http.Request) {
	userID, orderID, err := actorAndOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req assignCrewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.DeliveryCrewID <= 0 {
		writeError(w, r, apperr.ErrInvalidInput)
		return
	}

	o, err := h.orders.AssignDeliveryCrew(r.Context(), userID, orderID, req.DeliveryCrewID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order.ToResponse(o))
}

func (h *Handler) removeCrew(w http.ResponseWriter, r *http.Request) {
	userID, orderID, err := actorAndOrder(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := h.orders.RemoveDeliveryCrew(r.Context(), userID, orderID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, order.ToResponse(o))
}

func actorAndOrder(r *http.Request) (int64, int64, error) {
	userID, err := currentUser(r)
	if err != nil {
		return 0, 0, err
	}
	orderID, err := pathID(r, "id")
	if err != nil {
		return 0, 0, err
	}
	return userID, orderID, nil
}
