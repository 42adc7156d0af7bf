package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/voltq/stationd/core/station"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResponse struct {
	Error string `json:"error"`
}

// writeError maps the engine error taxonomy onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var stateErr *station.StateError
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, station.ErrWaitingAreaFull),
		errors.Is(err, station.ErrPileAlreadyFaulty),
		errors.Is(err, station.ErrPileOff),
		errors.Is(err, station.ErrPilesBusy):
		status = http.StatusConflict
	case errors.As(err, &stateErr):
		status = http.StatusConflict
	case errors.Is(err, station.ErrPermissionDenied):
		status = http.StatusForbidden
	case errors.Is(err, station.ErrRequestNotFound),
		errors.Is(err, station.ErrPileNotFound):
		status = http.StatusNotFound
	case errors.Is(err, station.ErrInvalidStrategy):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		s.Log.Errorf("request failed: %v", err)
		writeJSON(w, status, errResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errResponse{Error: err.Error()})
}

// userID extracts the authenticated user from the request. An empty result
// means the caller already received a 401.
func userID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		writeJSON(w, http.StatusUnauthorized, errResponse{Error: "missing X-User-ID header"})
	}
	return id
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errResponse{Error: "malformed request body"})
		return false
	}
	return true
}
