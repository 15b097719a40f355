package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nixlim/tally/internal/events"
	"github.com/nixlim/tally/internal/state"
	"github.com/nixlim/tally/internal/tracker"
)

type stateResponse struct {
	tracker.State
	TodayMDY string `json:"today_mdy"`
}

func newStateResponse(st tracker.State) stateResponse {
	resp := stateResponse{State: st}
	if !st.Today.IsZero() {
		resp.TodayMDY = st.Today.MDY()
	}
	return resp
}

type logRequest struct {
	Kind string `json:"kind"`
}

type logResponse struct {
	Event events.EventLogged `json:"event"`
	State stateResponse      `json:"state"`
}

// handleState handles GET /api/state. ?refresh=1 reloads from the store first.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		if err := s.tracker.Refresh(r.Context()); err != nil {
			writeStoreError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, newStateResponse(s.tracker.State()))
}

// handleLog handles POST /api/log.
func (s *Server) handleLog(w http.ResponseWriter, r *http.Request) {
	var in logRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	kind, err := state.ParseKind(in.Kind)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := s.tracker.Log(r.Context(), kind)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, logResponse{Event: events.NewEventLogged(ev), State: newStateResponse(s.tracker.State())})
}

// handleDelete handles DELETE /api/events/{id}.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport handles GET /api/export.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	blob, err := s.tracker.Export(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+blob.Filename+`"`)
	w.Header().Set("X-Tally-Rows", strconv.Itoa(blob.Rows))
	if blob.Degraded() {
		w.Header().Set("X-Tally-Timestamp-Column", "none")
	} else {
		w.Header().Set("X-Tally-Timestamp-Column", blob.TimestampColumn)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(blob.Data)
}

// handleHealth handles GET /healthz.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, state.ErrNoIdentity):
		writeError(w, http.StatusUnauthorized, tracker.MsgNotLoggedIn)
	case errors.Is(err, state.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, err.Error())
	}
}
