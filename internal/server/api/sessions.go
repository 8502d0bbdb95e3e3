// Package api provides HTTP API handlers for the SurgiTrack trainer daemon.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/surgitrack/trainerd/internal/session"
)

// SessionHandler handles HTTP requests for the training session resource.
type SessionHandler struct {
	controller *session.Controller
}

// NewSessionHandler creates a new SessionHandler driving the given controller.
func NewSessionHandler(c *session.Controller) *SessionHandler {
	return &SessionHandler{controller: c}
}

type startSessionRequest struct {
	ProcedureID int `json:"procedureId"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// statusForSessionError maps controller errors to HTTP status codes.
func statusForSessionError(err error) int {
	switch {
	case errors.Is(err, session.ErrInvalidProcedure):
		return http.StatusNotFound
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, session.ErrNotFinished),
		errors.Is(err, session.ErrSaveInFlight):
		return http.StatusConflict
	case errors.Is(err, session.ErrSaveFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/session or /api/session/{action}
	path := strings.TrimPrefix(r.URL.Path, "/api/session")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeJSON(w, http.StatusOK, h.controller.Snapshot())
		return
	}

	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch path {
	case "start":
		h.start(w, r)
	case "finish":
		h.finish(w, r)
	case "save":
		h.save(w, r)
	case "reset":
		h.reset(w, r)
	default:
		http.NotFound(w, r)
	}
}

// start handles POST /api/session/start.
func (h *SessionHandler) start(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ProcedureID <= 0 {
		writeError(w, http.StatusBadRequest, "procedureId is required")
		return
	}

	snap, err := h.controller.Start(r.Context(), req.ProcedureID)
	if err != nil {
		writeError(w, statusForSessionError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// finish handles POST /api/session/finish.
func (h *SessionHandler) finish(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.Finish()
	if err != nil {
		writeError(w, statusForSessionError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// save handles POST /api/session/save.
func (h *SessionHandler) save(w http.ResponseWriter, r *http.Request) {
	snap, err := h.controller.Save(r.Context())
	if err != nil {
		writeError(w, statusForSessionError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// reset handles POST /api/session/reset.
func (h *SessionHandler) reset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.controller.Reset())
}
