// Package server provides the local HTTP server for the SurgiTrack trainer daemon.
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/surgitrack/trainerd/internal/catalog"
	"github.com/surgitrack/trainerd/internal/server/api"
	"github.com/surgitrack/trainerd/internal/session"
	"github.com/surgitrack/trainerd/internal/store"
	"github.com/surgitrack/trainerd/internal/stream"
	"github.com/surgitrack/trainerd/internal/telemetry"
)

// Config holds the server configuration.
type Config struct {
	StaticDir  string
	Store      *store.Store
	Controller *session.Controller
	Catalog    *catalog.Client
	History    *telemetry.History
	Presence   *telemetry.Presence
	Hub        *Hub

	// StreamState reports the detector connection state. Optional.
	StreamState func() stream.State
}

// Server represents the HTTP server for the trainer daemon.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)
	s.mux.HandleFunc("/api/status", s.handleStatus)

	if s.config.Controller != nil {
		sessionHandler := api.NewSessionHandler(s.config.Controller)
		s.mux.Handle("/api/session", sessionHandler)
		s.mux.Handle("/api/session/", sessionHandler)
	}

	if s.config.History != nil && s.config.Presence != nil {
		s.mux.Handle("/api/history", api.NewHistoryHandler(s.config.History, s.config.Presence))
	}

	if s.config.Store != nil {
		resultsHandler := api.NewResultsHandler(s.config.Store)
		s.mux.Handle("/api/results", resultsHandler)
		s.mux.Handle("/api/results/", resultsHandler)
	}

	if s.config.Catalog != nil {
		proceduresHandler := api.NewProceduresHandler(s.config.Catalog)
		s.mux.Handle("/api/procedures", proceduresHandler)
		s.mux.Handle("/api/procedures/", proceduresHandler)
		s.mux.Handle("/api/camera/", api.NewCameraHandler(s.config.Catalog))
	}

	if s.config.Hub != nil {
		s.mux.Handle("/ws", s.config.Hub.Handler())
	}

	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// handleStatus handles GET requests to /api/status. It combines the
// detector connection state with the current session snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{}
	if s.config.StreamState != nil {
		response["connection"] = s.config.StreamState()
	}
	if s.config.Controller != nil {
		response["session"] = s.config.Controller.Snapshot()
	}
	if s.config.History != nil {
		response["historySize"] = s.config.History.Size()
	}
	if s.config.Presence != nil {
		response["present"] = s.config.Presence.Names()
	}
	if s.config.Store != nil {
		if v, err := s.config.Store.Settings().Get("last_procedure_id"); err == nil {
			if id, err := strconv.Atoi(v); err == nil {
				response["lastProcedureId"] = id
			}
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}
