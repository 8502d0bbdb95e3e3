package api

import (
	"net/http"
	"strings"

	"github.com/surgitrack/trainerd/internal/catalog"
)

// CameraHandler proxies camera control on the detection backend.
type CameraHandler struct {
	catalog *catalog.Client
}

// NewCameraHandler creates a new CameraHandler over the given client.
func NewCameraHandler(c *catalog.Client) *CameraHandler {
	return &CameraHandler{catalog: c}
}

type cameraStatusResponse struct {
	Active bool `json:"active"`
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *CameraHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Expected paths: /api/camera/start, /api/camera/stop, /api/camera/status
	path := strings.TrimPrefix(r.URL.Path, "/api/camera")
	path = strings.TrimPrefix(path, "/")

	switch path {
	case "status":
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		active, err := h.catalog.CameraStatus(r.Context())
		if err != nil {
			writeError(w, http.StatusBadGateway, "Failed to query camera status")
			return
		}
		writeJSON(w, http.StatusOK, cameraStatusResponse{Active: active})

	case "start":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.catalog.CameraStart(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cameraStatusResponse{Active: true})

	case "stop":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if err := h.catalog.CameraStop(r.Context()); err != nil {
			writeError(w, http.StatusBadGateway, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, cameraStatusResponse{Active: false})

	default:
		http.NotFound(w, r)
	}
}
