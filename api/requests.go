package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/station"
	"github.com/voltq/stationd/core/storage"
)

type createRequestBody struct {
	Tier      string  `json:"tier"`
	AmountKWh float64 `json:"amount_kwh"`
}

// CreateRequest admits a new charging request into the waiting area.
func (s *Server) CreateRequest(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	var body createRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	tier, err := model.ParseTier(body.Tier)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
		return
	}
	req, err := s.Engine.Admit(r.Context(), uid, tier, body.AmountKWh)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// GetRequest returns one request by ID.
func (s *Server) GetRequest(w http.ResponseWriter, r *http.Request) {
	req, err := s.Store.Request(r.Context(), chi.URLParam(r, "requestID"))
	if errors.Is(err, storage.ErrNotFound) {
		s.writeError(w, station.ErrRequestNotFound)
		return
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// WaitingQueue returns the current waiting area, fast tier first.
func (s *Server) WaitingQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.WaitingArea())
}

// ActiveRequest returns the caller's WAITING or CHARGING request.
func (s *Server) ActiveRequest(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	req, err := s.Engine.ActiveRequestForUser(r.Context(), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

type modifyRequestBody struct {
	Tier      *string  `json:"tier,omitempty"`
	AmountKWh *float64 `json:"amount_kwh,omitempty"`
}

// ModifyRequest updates a waiting request's tier or amount.
func (s *Server) ModifyRequest(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	var body modifyRequestBody
	if !decodeBody(w, r, &body) {
		return
	}
	var updates station.ModifyUpdates
	if body.Tier != nil {
		tier, err := model.ParseTier(*body.Tier)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
			return
		}
		updates.Tier = &tier
	}
	updates.AmountKWh = body.AmountKWh
	req, err := s.Engine.Modify(r.Context(), chi.URLParam(r, "requestID"), uid, updates)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// CancelRequest cancels a waiting request.
func (s *Server) CancelRequest(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	req, err := s.Engine.Cancel(r.Context(), chi.URLParam(r, "requestID"), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// StopRequest manually closes the caller's active session and returns the
// final order.
func (s *Server) StopRequest(w http.ResponseWriter, r *http.Request) {
	uid := userID(w, r)
	if uid == "" {
		return
	}
	order, err := s.Engine.StopSession(r.Context(), chi.URLParam(r, "requestID"), uid)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if order == nil {
		writeJSON(w, http.StatusConflict, errResponse{Error: "session state is inconsistent, nothing was stopped"})
		return
	}
	writeJSON(w, http.StatusOK, order)
}
