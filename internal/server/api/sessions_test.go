package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/surgitrack/trainerd/internal/catalog"
	"github.com/surgitrack/trainerd/internal/session"
	"github.com/surgitrack/trainerd/internal/telemetry"
)

// fakeCatalog implements session.Catalog and session.ResultsSink in memory.
type fakeCatalog struct {
	stages map[int][]catalog.Stage
}

func (f *fakeCatalog) HasProcedure(ctx context.Context, id int) (bool, error) {
	_, ok := f.stages[id]
	return ok, nil
}

func (f *fakeCatalog) Stages(ctx context.Context, id int) ([]catalog.Stage, error) {
	return f.stages[id], nil
}

func (f *fakeCatalog) SaveResult(ctx context.Context, req catalog.SaveResultRequest) (*catalog.Result, error) {
	return &catalog.Result{ID: 1, ProcedureID: req.ProcedureID, Marks: req.Marks, TotalStages: req.TotalStages}, nil
}

func newTestSessionHandler() *SessionHandler {
	cat := &fakeCatalog{stages: map[int][]catalog.Stage{
		5: {{ID: 1, ProcedureID: 5, Name: "Incision", RequiredTool: "scalpel", Order: 1}},
	}}
	return NewSessionHandler(session.NewController(session.Config{Catalog: cat, Results: cat}))
}

// decodeBody asserts a 200 response and decodes its JSON body into dst.
func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestSessionHandler_Get(t *testing.T) {
	h := newTestSessionHandler()

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestSessionHandler_StartValidation(t *testing.T) {
	h := newTestSessionHandler()

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"malformed json", `{procedureId}`, http.StatusBadRequest},
		{"missing procedure id", `{}`, http.StatusBadRequest},
		{"negative procedure id", `{"procedureId": -1}`, http.StatusBadRequest},
		{"unknown procedure", `{"procedureId": 42}`, http.StatusNotFound},
		{"valid", `{"procedureId": 5}`, http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/session/start", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
}

func TestSessionHandler_FinishWithoutSession(t *testing.T) {
	h := newTestSessionHandler()

	req := httptest.NewRequest(http.MethodPost, "/api/session/finish", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
}

func TestSessionHandler_MethodRouting(t *testing.T) {
	h := newTestSessionHandler()

	t.Run("POST to collection not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/session", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("GET to action not allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/session/start", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
		}
	})

	t.Run("unknown action", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/session/explode", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
		}
	})
}

func TestHistoryHandler_ToolFilter(t *testing.T) {
	history := telemetry.NewHistory(0)
	presence := telemetry.NewPresence()

	push := func(tool string) {
		raw := []byte(`{"fps": 30, "hands": 1, "tools": [{"id": 1, "name": "` + tool + `", "confidence": 0.9, "status": "detected"}]}`)
		f, err := telemetry.ParseFrame(raw, time.Now())
		if err != nil {
			t.Fatalf("ParseFrame(%s) error = %v", tool, err)
		}
		history.Push(f)
		presence.Update(f)
	}
	push("scalpel")
	push("tweezers")
	push("Scalpel")

	h := NewHistoryHandler(history, presence)

	t.Run("unfiltered returns all newest first", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		var resp historyResponse
		decodeBody(t, rec, &resp)
		if len(resp.Frames) != 3 {
			t.Fatalf("frames = %d, want 3", len(resp.Frames))
		}
		if resp.Size != 3 {
			t.Errorf("size = %d, want 3", resp.Size)
		}
	})

	t.Run("tool filter is case-insensitive", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history?tool=SCALPEL", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		var resp historyResponse
		decodeBody(t, rec, &resp)
		if len(resp.Frames) != 2 {
			t.Fatalf("filtered frames = %d, want 2", len(resp.Frames))
		}
	})

	t.Run("no matches yields empty list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/history?tool=rongeur_forceps_1", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		var resp historyResponse
		decodeBody(t, rec, &resp)
		if len(resp.Frames) != 0 {
			t.Errorf("filtered frames = %d, want 0", len(resp.Frames))
		}
	})
}
