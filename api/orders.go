package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltq/stationd/core/storage"
)

// ListOrders returns the billing history of the calling user, oldest first.
func (s *Server) ListOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	orders, err := s.Store.OrdersForUser(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, orders)
}

// GetOrder returns a single order. Users can only read their own orders.
func (s *Server) GetOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	order, err := s.Store.Order(r.Context(), chi.URLParam(r, "orderID"))
	if errors.Is(err, storage.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResponse{Error: "order not found"})
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	if order.UserID != uid {
		writeJSON(w, http.StatusNotFound, errResponse{Error: "order not found"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}
