package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/surgitrack/trainerd/internal/store"
)

// ResultsHandler handles HTTP requests for locally journaled test results.
type ResultsHandler struct {
	store *store.Store
}

// NewResultsHandler creates a new ResultsHandler with the given store.
func NewResultsHandler(s *store.Store) *ResultsHandler {
	return &ResultsHandler{store: s}
}

type resultResponse struct {
	ID            string `json:"id"`
	ProcedureID   int    `json:"procedureId"`
	ProcedureName string `json:"procedureName"`
	Marks         int    `json:"marks"`
	TotalStages   int    `json:"totalStages"`
	Score         int    `json:"score"`
	RemoteID      int    `json:"remoteId,omitempty"`
	CompletedAt   string `json:"completedAt"`
}

type listResultsResponse struct {
	Results []resultResponse `json:"results"`
}

// toResultResponse converts a store.Result to a resultResponse.
func toResultResponse(res *store.Result) resultResponse {
	return resultResponse{
		ID:            res.ID,
		ProcedureID:   res.ProcedureID,
		ProcedureName: res.ProcedureName,
		Marks:         res.Marks,
		TotalStages:   res.TotalStages,
		Score:         res.Score,
		RemoteID:      res.RemoteID,
		CompletedAt:   res.CompletedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// toResultResponses converts a slice of results, never returning nil.
func toResultResponses(results []*store.Result) []resultResponse {
	out := make([]resultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, toResultResponse(res))
	}
	return out
}

// ServeHTTP implements the http.Handler interface and routes requests to appropriate methods.
func (h *ResultsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// Expected paths: /api/results or /api/results/{id}
	path := strings.TrimPrefix(r.URL.Path, "/api/results")
	path = strings.TrimPrefix(path, "/")

	if path == "" {
		h.list(w, r)
		return
	}
	h.get(w, r, path)
}

// list handles GET /api/results, optionally filtered by ?procedureId=.
func (h *ResultsHandler) list(w http.ResponseWriter, r *http.Request) {
	repo := h.store.Results()

	if raw := r.URL.Query().Get("procedureId"); raw != "" {
		procedureID, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid procedureId")
			return
		}
		results, err := repo.ListByProcedure(procedureID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to list results")
			return
		}
		writeJSON(w, http.StatusOK, listResultsResponse{Results: toResultResponses(results)})
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	results, err := repo.List(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list results")
		return
	}
	writeJSON(w, http.StatusOK, listResultsResponse{Results: toResultResponses(results)})
}

// get handles GET /api/results/{id}.
func (h *ResultsHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	result, err := h.store.Results().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Result not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get result")
		return
	}
	writeJSON(w, http.StatusOK, toResultResponse(result))
}
