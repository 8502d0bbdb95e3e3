package app

import (
	"context"
	"errors"
	"time"

	"github.com/surgitrack/trainerd/internal/telemetry"
)

// frameEvent is the shape broadcast to WebSocket clients for each
// accepted detection frame.
type frameEvent struct {
	Type  string          `json:"type"`
	Frame telemetry.Frame `json:"frame"`
}

// runPipeline is the single consumer of the frame queue. Every accepted
// frame flows through history, presence, and the session controller in
// order, so stage progression sees a consistent view of the world.
//
// Schema violations reject the whole frame: nothing is recorded and the
// session does not advance.
func (a *App) runPipeline(ctx context.Context) {
	var dropped int

	for {
		select {
		case <-ctx.Done():
			return
		case raw := <-a.frames:
			frame, err := telemetry.ParseFrame(raw, time.Now())
			if err != nil {
				if errors.Is(err, telemetry.ErrSchema) {
					dropped++
					if dropped == 1 || dropped%100 == 0 {
						a.log.Printf("rejected malformed frame (%d total): %v", dropped, err)
					}
					continue
				}
				a.log.Printf("frame parse: %v", err)
				continue
			}

			a.history.Push(frame)
			a.presence.Update(frame)
			a.controller.Observe(a.presence.Has)

			a.hub.BroadcastJSON(frameEvent{Type: "frame", Frame: frame})
		}
	}
}
