package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/voltq/stationd/core/model"
	"github.com/voltq/stationd/core/station"
)

// ReportFault triggers fault recovery on a pile.
func (s *Server) ReportFault(w http.ResponseWriter, r *http.Request) {
	report, err := s.Engine.ReportFault(r.Context(), chi.URLParam(r, "pileID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ListPiles returns every pile and its status.
func (s *Server) ListPiles(w http.ResponseWriter, r *http.Request) {
	piles, err := s.Engine.Piles(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, piles)
}

type setupPilesBody struct {
	FastCount    int     `json:"fast_count"`
	TrickleCount int     `json:"trickle_count"`
	FastRate     float64 `json:"fast_rate"`
	TrickleRate  float64 `json:"trickle_rate"`
}

// SetupPiles replaces the pile fleet. Refused while any pile is busy.
func (s *Server) SetupPiles(w http.ResponseWriter, r *http.Request) {
	var body setupPilesBody
	if !decodeBody(w, r, &body) {
		return
	}
	piles, err := s.Engine.SetupPiles(r.Context(), body.FastCount, body.TrickleCount, body.FastRate, body.TrickleRate)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, piles)
}

type pileStatusBody struct {
	Status  string `json:"status"`
	Details string `json:"details"`
}

// UpdatePileStatus applies an operator status change to a pile.
func (s *Server) UpdatePileStatus(w http.ResponseWriter, r *http.Request) {
	var body pileStatusBody
	if !decodeBody(w, r, &body) {
		return
	}
	status, err := model.ParsePileStatus(body.Status)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: err.Error()})
		return
	}
	pile, err := s.Engine.SetPileStatus(r.Context(), chi.URLParam(r, "pileID"), status, body.Details)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pile)
}

// GetPileLogs returns the audit log of a pile.
func (s *Server) GetPileLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.Engine.PileLogs(r.Context(), chi.URLParam(r, "pileID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

// GetPileQueues returns a snapshot of every per-pile queue.
func (s *Server) GetPileQueues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.PileQueues())
}

type strategyBody struct {
	Strategy string `json:"strategy"`
}

// GetStrategy returns the active scheduling strategy.
func (s *Server) GetStrategy(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, strategyBody{Strategy: string(s.Engine.Strategy())})
}

// SetStrategy switches the scheduling strategy at runtime.
func (s *Server) SetStrategy(w http.ResponseWriter, r *http.Request) {
	var body strategyBody
	if !decodeBody(w, r, &body) {
		return
	}
	if err := s.Engine.SetStrategy(station.Strategy(body.Strategy)); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, strategyBody{Strategy: string(s.Engine.Strategy())})
}
