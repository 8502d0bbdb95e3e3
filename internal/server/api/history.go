package api

import (
	"net/http"

	"github.com/surgitrack/trainerd/internal/telemetry"
)

// HistoryHandler serves the rolling detection history.
type HistoryHandler struct {
	history  *telemetry.History
	presence *telemetry.Presence
}

// NewHistoryHandler creates a new HistoryHandler over the given buffers.
func NewHistoryHandler(h *telemetry.History, p *telemetry.Presence) *HistoryHandler {
	return &HistoryHandler{history: h, presence: p}
}

type historyResponse struct {
	Frames   []telemetry.Frame `json:"frames"`
	Size     int               `json:"size"`
	Capacity int               `json:"capacity"`
	Present  []string          `json:"present"`
}

// ServeHTTP handles GET /api/history. Frames come back newest first;
// an optional ?tool= query keeps only frames containing that tool.
func (h *HistoryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var frames []telemetry.Frame
	if tool := r.URL.Query().Get("tool"); tool != "" {
		want := telemetry.NormalizeTool(tool)
		frames = h.history.Filter(func(normalized string) bool {
			return normalized == want
		})
	} else {
		frames = h.history.Display()
	}
	if frames == nil {
		frames = []telemetry.Frame{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Frames:   frames,
		Size:     h.history.Size(),
		Capacity: h.history.Capacity(),
		Present:  h.presence.Names(),
	})
}
