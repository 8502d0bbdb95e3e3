// Package telemetry defines the validated detection frame boundary between
// the external detector service and the rest of the trainer. Raw payloads
// from the wire are strictly decoded here; everything downstream only ever
// sees frames that passed validation in full.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSchema is the sentinel for malformed detector payloads. A payload that
// fails any rule is rejected as a whole; no partially-valid frame is ever
// produced.
var ErrSchema = errors.New("schema violation")

// Tool is one instrument reported by the detector in a single frame.
type Tool struct {
	Name       string   `json:"name"`
	Confidence *float64 `json:"confidence,omitempty"`
	Status     string   `json:"status,omitempty"`
}

// Frame is one validated telemetry update. CapturedAt is assigned at
// receipt; the producer's own timestamp is not trusted.
type Frame struct {
	CapturedAt time.Time `json:"captured_at"`
	FPS        float64   `json:"fps"`
	Hands      int       `json:"hands"`
	Tools      []Tool    `json:"tools"`
}

// wireTool mirrors the loosely-typed producer shape. Pointer fields let the
// validator tell "absent" apart from "present but zero".
type wireTool struct {
	Name       *string  `json:"name"`
	Confidence *float64 `json:"confidence"`
	Status     *string  `json:"status"`
}

type wireFrame struct {
	FPS   *float64   `json:"fps"`
	Hands *int       `json:"hands"`
	Tools []wireTool `json:"tools"`
}

// ParseFrame validates and decodes one raw detector payload. The returned
// frame is stamped with receivedAt. Unknown fields in the payload are
// ignored for forward compatibility; wrong types, a missing tool name, a
// negative fps or hands count, or a confidence outside [0,1] reject the
// whole payload with an error wrapping ErrSchema.
func ParseFrame(raw []byte, receivedAt time.Time) (Frame, error) {
	var wf wireFrame
	if err := json.Unmarshal(raw, &wf); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	if wf.FPS != nil && *wf.FPS < 0 {
		return Frame{}, fmt.Errorf("%w: fps %v is negative", ErrSchema, *wf.FPS)
	}
	if wf.Hands != nil && *wf.Hands < 0 {
		return Frame{}, fmt.Errorf("%w: hands %d is negative", ErrSchema, *wf.Hands)
	}

	tools := make([]Tool, 0, len(wf.Tools))
	for i, wt := range wf.Tools {
		if wt.Name == nil || *wt.Name == "" {
			return Frame{}, fmt.Errorf("%w: tool %d is missing a name", ErrSchema, i)
		}
		if wt.Confidence != nil && (*wt.Confidence < 0 || *wt.Confidence > 1) {
			return Frame{}, fmt.Errorf("%w: tool %q confidence %v outside [0,1]", ErrSchema, *wt.Name, *wt.Confidence)
		}

		tool := Tool{Name: *wt.Name, Confidence: wt.Confidence}
		if wt.Status != nil {
			tool.Status = *wt.Status
		}
		tools = append(tools, tool)
	}

	f := Frame{
		CapturedAt: receivedAt,
		Tools:      tools,
	}
	if wf.FPS != nil {
		f.FPS = *wf.FPS
	}
	if wf.Hands != nil {
		f.Hands = *wf.Hands
	}
	return f, nil
}
