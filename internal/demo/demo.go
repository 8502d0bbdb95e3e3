// Package demo simulates the detection backend so the daemon can be run
// end-to-end without a camera or the vision service. It serves the same
// HTTP and WebSocket surface as the real backend: a seeded procedure
// catalog, a results endpoint, camera controls, and a detection feed that
// cycles through the tool vocabulary at a configurable interval.
package demo

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/surgitrack/trainerd/internal/catalog"
)

// toolVocabulary is the set of tool names the simulated detector cycles
// through, matching the real backend's detection classes.
var toolVocabulary = []string{
	"scalpel",
	"artery_forceps",
	"rongeur_forceps_1",
	"iris_scissors",
	"tweezers",
	"aspirator",
	"operating_scissors",
	"fine_needle",
	"wire_grabbing_pliers",
}

// Backend is an in-memory stand-in for the detection backend.
type Backend struct {
	interval time.Duration
	upgrader websocket.Upgrader

	mu           sync.Mutex
	cameraActive bool
	results      []catalog.Result
	nextResultID int

	procedures []catalog.Procedure
	stages     map[int][]catalog.Stage
}

// New creates a demo backend emitting one detection frame per interval.
// An interval of zero defaults to 250ms.
func New(interval time.Duration) *Backend {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	b := &Backend{
		interval:     interval,
		nextResultID: 1,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	b.seed()
	return b
}

// seed loads the built-in procedure catalog. Spinal Fusion deliberately
// has no stages so clients exercise the empty-stage path.
func (b *Backend) seed() {
	b.procedures = []catalog.Procedure{
		{ID: 1, Name: "Craniotomy", Description: "Surgical opening of the skull"},
		{ID: 2, Name: "Spinal Fusion", Description: "Joining of two or more vertebrae"},
		{ID: 3, Name: "Appendectomy", Description: "Removal of the appendix"},
		{ID: 4, Name: "Basic Suturing", Description: "Fundamental wound closure technique"},
	}
	b.stages = map[int][]catalog.Stage{
		1: {
			{ID: 1, ProcedureID: 1, Name: "Scalp Incision", RequiredTool: "scalpel", Order: 1},
			{ID: 2, ProcedureID: 1, Name: "Control Bleeding", RequiredTool: "artery_forceps", Order: 2},
			{ID: 3, ProcedureID: 1, Name: "Remove Bone", RequiredTool: "rongeur_forceps_1", Order: 3},
			{ID: 4, ProcedureID: 1, Name: "Open Dura", RequiredTool: "iris_scissors", Order: 4},
		},
		3: {
			{ID: 5, ProcedureID: 3, Name: "Initial Incision", RequiredTool: "scalpel", Order: 1},
			{ID: 6, ProcedureID: 3, Name: "Retract Tissue", RequiredTool: "tweezers", Order: 2},
			{ID: 7, ProcedureID: 3, Name: "Clear Field", RequiredTool: "aspirator", Order: 3},
			{ID: 8, ProcedureID: 3, Name: "Excise Appendix", RequiredTool: "operating_scissors", Order: 4},
		},
		4: {
			{ID: 9, ProcedureID: 4, Name: "Position Needle", RequiredTool: "fine_needle", Order: 1},
			{ID: 10, ProcedureID: 4, Name: "Pull Suture", RequiredTool: "wire_grabbing_pliers", Order: 2},
			{ID: 11, ProcedureID: 4, Name: "Trim Excess", RequiredTool: "iris_scissors", Order: 3},
		},
	}
}

// Handler returns the demo backend's HTTP handler.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/detection", b.handleDetectionFeed)
	mux.HandleFunc("/api/procedures", b.handleProcedures)
	mux.HandleFunc("/api/procedures/", b.handleStages)
	mux.HandleFunc("/api/tests/results", b.handleResults)
	mux.HandleFunc("/api/camera/start", b.handleCameraStart)
	mux.HandleFunc("/api/camera/stop", b.handleCameraStop)
	mux.HandleFunc("/api/camera/status", b.handleCameraStatus)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

// handleDetectionFeed upgrades to WebSocket and streams simulated frames
// until the client disconnects.
func (b *Backend) handleDetectionFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	// Drain inbound messages so close frames are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	toolIndex := 0
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			frame := b.nextFrame(&toolIndex)
			_ = conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
		}
	}
}

// nextFrame fabricates one detection frame holding the next one or two
// tools from the vocabulary, advancing the cycle cursor.
func (b *Backend) nextFrame(toolIndex *int) map[string]any {
	tools := []map[string]any{}
	count := 1 + rand.Intn(2)
	for i := 0; i < count; i++ {
		name := toolVocabulary[*toolIndex%len(toolVocabulary)]
		*toolIndex++
		tools = append(tools, map[string]any{
			"id":         i + 1,
			"name":       name,
			"confidence": 0.70 + rand.Float64()*0.29,
			"status":     "detected",
		})
	}
	return map[string]any{
		"fps":       26.0 + rand.Float64()*6.0,
		"hands":     rand.Intn(3),
		"tools":     tools,
		"events":    []string{},
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
}

// handleProcedures handles GET /api/procedures.
func (b *Backend) handleProcedures(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, b.procedures)
}

// handleStages handles GET /api/procedures/{id}/stages. A known procedure
// with no configured stages yields 404, matching the real backend.
func (b *Backend) handleStages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/procedures/")
	id, ok := strings.CutSuffix(path, "/stages")
	if !ok {
		http.NotFound(w, r)
		return
	}
	procedureID, err := strconv.Atoi(id)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid procedure id")
		return
	}

	stages, ok := b.stages[procedureID]
	if !ok || len(stages) == 0 {
		writeMessage(w, http.StatusNotFound, "no stages found for this procedure")
		return
	}
	writeJSON(w, http.StatusOK, stages)
}

// handleResults handles GET and POST on /api/tests/results.
func (b *Backend) handleResults(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		b.mu.Lock()
		results := make([]catalog.Result, len(b.results))
		copy(results, b.results)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, results)

	case http.MethodPost:
		var req catalog.SaveResultRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeMessage(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TotalStages < 0 || req.Marks < 0 || req.Marks > req.TotalStages {
			writeMessage(w, http.StatusUnprocessableEntity, "marks must be between 0 and totalStages")
			return
		}
		name := ""
		for _, p := range b.procedures {
			if p.ID == req.ProcedureID {
				name = p.Name
				break
			}
		}
		if name == "" {
			writeMessage(w, http.StatusNotFound, "procedure not found")
			return
		}

		b.mu.Lock()
		result := catalog.Result{
			ID:            b.nextResultID,
			ProcedureID:   req.ProcedureID,
			Marks:         req.Marks,
			TotalStages:   req.TotalStages,
			CompletedAt:   time.Now().UTC().Format(time.RFC3339),
			ProcedureName: name,
		}
		b.nextResultID++
		b.results = append(b.results, result)
		b.mu.Unlock()

		writeJSON(w, http.StatusCreated, result)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleCameraStart handles POST /api/camera/start.
func (b *Backend) handleCameraStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.mu.Lock()
	b.cameraActive = true
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"active": true})
}

// handleCameraStop handles POST /api/camera/stop.
func (b *Backend) handleCameraStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.mu.Lock()
	b.cameraActive = false
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"active": false})
}

// handleCameraStatus handles GET /api/camera/status.
func (b *Backend) handleCameraStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	b.mu.Lock()
	active := b.cameraActive
	b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"active": active})
}
