package handler

import (
	"net/http"

	"littlelemon/internal/apperr"
	"littlelemon/internal/cart"
	"littlelemon/internal/utils"
)

type addToCartRequest struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	c, err := h.carts.ListFor(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, cart.ToResponse(c))
}

func (h *Handler) addToCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req addToCartRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.MenuItemID <= 0 {
		writeError(w, r, apperr.ErrInvalidInput)
		return
	}

	line, err := h.carts.AddOrUpdate(r.Context(), userID, req.MenuItemID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, cart.ToLineResponse(*line))
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Clear(r.Context(), userID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) removeFromCart(w http.ResponseWriter, r *http.Request) {
	userID, err := currentUser(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	menuItemID, err := pathID(r, "menuItemID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.carts.Remove(r.Context(), userID, menuItemID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
