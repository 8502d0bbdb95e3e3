package demo

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/surgitrack/trainerd/internal/catalog"
	"github.com/surgitrack/trainerd/internal/telemetry"
)

func newDemoServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(New(10 * time.Millisecond).Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestBackend_CatalogRoundTrip(t *testing.T) {
	ts := newDemoServer(t)
	client := catalog.New(ts.URL)
	ctx := context.Background()

	procedures, err := client.Procedures(ctx)
	if err != nil {
		t.Fatalf("Procedures() error = %v", err)
	}
	if len(procedures) != 4 {
		t.Fatalf("Procedures() returned %d, want 4", len(procedures))
	}

	t.Run("seeded procedure has ordered stages", func(t *testing.T) {
		stages, err := client.Stages(ctx, 1)
		if err != nil {
			t.Fatalf("Stages(1) error = %v", err)
		}
		if len(stages) != 4 {
			t.Fatalf("Stages(1) returned %d, want 4", len(stages))
		}
		for i := 1; i < len(stages); i++ {
			if stages[i].Order <= stages[i-1].Order {
				t.Errorf("stage order not increasing at %d", i)
			}
		}
	})

	t.Run("procedure without stages reads as empty", func(t *testing.T) {
		stages, err := client.Stages(ctx, 2)
		if err != nil {
			t.Fatalf("Stages(2) error = %v", err)
		}
		if len(stages) != 0 {
			t.Errorf("Stages(2) returned %d, want 0", len(stages))
		}
	})
}

func TestBackend_SaveResult(t *testing.T) {
	ts := newDemoServer(t)
	client := catalog.New(ts.URL)
	ctx := context.Background()

	created, err := client.SaveResult(ctx, catalog.SaveResultRequest{
		ProcedureID: 4, Marks: 2, TotalStages: 3,
	})
	if err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if created.ID == 0 {
		t.Error("expected a non-zero result id")
	}
	if created.ProcedureName != "Basic Suturing" {
		t.Errorf("procedureName = %q, want Basic Suturing", created.ProcedureName)
	}

	results, err := client.Results(ctx)
	if err != nil {
		t.Fatalf("Results() error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Results() returned %d, want 1", len(results))
	}

	t.Run("rejects marks above totalStages", func(t *testing.T) {
		_, err := client.SaveResult(ctx, catalog.SaveResultRequest{
			ProcedureID: 4, Marks: 5, TotalStages: 3,
		})
		if err == nil {
			t.Error("expected an error for marks > totalStages")
		}
	})
}

func TestBackend_CameraControls(t *testing.T) {
	ts := newDemoServer(t)
	client := catalog.New(ts.URL)
	ctx := context.Background()

	active, err := client.CameraStatus(ctx)
	if err != nil {
		t.Fatalf("CameraStatus() error = %v", err)
	}
	if active {
		t.Error("camera should start inactive")
	}

	if err := client.CameraStart(ctx); err != nil {
		t.Fatalf("CameraStart() error = %v", err)
	}
	if active, _ = client.CameraStatus(ctx); !active {
		t.Error("camera should be active after start")
	}

	if err := client.CameraStop(ctx); err != nil {
		t.Fatalf("CameraStop() error = %v", err)
	}
	if active, _ = client.CameraStatus(ctx); active {
		t.Error("camera should be inactive after stop")
	}
}

func TestBackend_DetectionFeedEmitsValidFrames(t *testing.T) {
	ts := newDemoServer(t)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/detection"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial error = %v", err)
	}
	defer conn.Close()

	seen := map[string]bool{}
	for i := 0; i < 30; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}

		frame, err := telemetry.ParseFrame(raw, time.Now())
		if err != nil {
			t.Fatalf("frame %d failed validation: %v\n%s", i, err, raw)
		}
		for _, tool := range frame.Tools {
			seen[telemetry.NormalizeTool(tool.Name)] = true
		}
	}

	// 30 frames of 1–2 tools cycling a 9-entry vocabulary covers it all.
	for _, name := range toolVocabulary {
		if !seen[name] {
			t.Errorf("tool %q never appeared in the feed", name)
		}
	}
}
