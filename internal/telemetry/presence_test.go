package telemetry

import (
	"testing"
	"time"
)

func TestNormalizeTool(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Artery Forceps", "artery forceps"},
		{" artery   forceps ", "artery forceps"},
		{"artery_forceps", "artery_forceps"},
		{"SCALPEL", "scalpel"},
		{"\tiris\n scissors ", "iris scissors"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeTool(tt.in); got != tt.want {
			t.Errorf("NormalizeTool(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// Underscore-joined and space-joined names stay distinct identifiers; only
// whitespace collapses.
func TestNormalizeTool_UnderscorePreserved(t *testing.T) {
	if NormalizeTool("artery_forceps") == NormalizeTool("artery forceps") {
		t.Error("underscore and space variants must not normalize to the same name")
	}
}

func frameWithTools(names ...string) Frame {
	tools := make([]Tool, len(names))
	for i, n := range names {
		tools[i] = Tool{Name: n}
	}
	return Frame{CapturedAt: time.Now(), Tools: tools}
}

func TestPresence_TracksLatestFrameOnly(t *testing.T) {
	p := NewPresence()

	p.Update(frameWithTools("Scalpel", " artery   forceps "))

	if !p.Has("scalpel") {
		t.Error("expected scalpel to be present")
	}
	if !p.Has("ARTERY FORCEPS") {
		t.Error("expected case-insensitive match for artery forceps")
	}
	if p.Has("artery_forceps") {
		t.Error("underscore variant should not match the space-joined name")
	}

	// A new frame replaces the index wholesale.
	p.Update(frameWithTools("tweezers"))

	if p.Has("scalpel") {
		t.Error("scalpel should be gone after the next frame")
	}
	if !p.Has(" Tweezers ") {
		t.Error("expected tweezers from the latest frame")
	}
}

func TestPresence_EmptyFrameClears(t *testing.T) {
	p := NewPresence()
	p.Update(frameWithTools("scalpel"))
	p.Update(Frame{CapturedAt: time.Now()})

	if p.Has("scalpel") {
		t.Error("expected empty frame to clear the index")
	}
	if got := p.Names(); len(got) != 0 {
		t.Errorf("expected no names, got %v", got)
	}
}

func TestPresence_NamesSorted(t *testing.T) {
	p := NewPresence()
	p.Update(frameWithTools("tweezers", "aspirator", "scalpel"))

	names := p.Names()
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %d", len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("names not sorted: %v", names)
		}
	}
}
