package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/surgitrack/trainerd/internal/catalog"
)

// ProceduresHandler proxies the detection backend's procedure catalog.
type ProceduresHandler struct {
	catalog *catalog.Client
}

// NewProceduresHandler creates a new ProceduresHandler over the given client.
func NewProceduresHandler(c *catalog.Client) *ProceduresHandler {
	return &ProceduresHandler{catalog: c}
}

type listProceduresResponse struct {
	Procedures []catalog.Procedure `json:"procedures"`
}

type listStagesResponse struct {
	Stages []catalog.Stage `json:"stages"`
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ProceduresHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Expected paths: /api/procedures or /api/procedures/{id}/stages
	path := strings.TrimPrefix(r.URL.Path, "/api/procedures")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		h.list(w, r)
		return
	}

	id, ok := strings.CutSuffix(path, "/stages")
	if !ok {
		http.NotFound(w, r)
		return
	}
	procedureID, err := strconv.Atoi(id)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid procedure id")
		return
	}
	h.stages(w, r, procedureID)
}

// list handles GET /api/procedures.
func (h *ProceduresHandler) list(w http.ResponseWriter, r *http.Request) {
	procedures, err := h.catalog.Procedures(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch procedures")
		return
	}
	if procedures == nil {
		procedures = []catalog.Procedure{}
	}
	writeJSON(w, http.StatusOK, listProceduresResponse{Procedures: procedures})
}

// stages handles GET /api/procedures/{id}/stages. A procedure with no
// configured stages yields an empty list, mirroring the backend.
func (h *ProceduresHandler) stages(w http.ResponseWriter, r *http.Request, procedureID int) {
	stages, err := h.catalog.Stages(r.Context(), procedureID)
	if err != nil {
		writeError(w, http.StatusBadGateway, "Failed to fetch stages")
		return
	}
	if stages == nil {
		stages = []catalog.Stage{}
	}
	writeJSON(w, http.StatusOK, listStagesResponse{Stages: stages})
}
