package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/exec"
	"time"
)

// Dispatcher fans session events out to subscribed hooks. Hooks are
// fire-and-forget: a failing hook is logged and never disturbs the
// session pipeline.
type Dispatcher struct {
	manager *Manager
	timeout time.Duration
	log     *log.Logger
}

// NewDispatcher creates a Dispatcher with the given per-hook timeout.
// A timeout of zero defaults to 5 seconds.
func NewDispatcher(manager *Manager, timeout time.Duration, logger *log.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{manager: manager, timeout: timeout, log: logger}
}

// envelope is the JSON document written to a hook's stdin.
type envelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Dispatch runs every hook subscribed to eventType, each in its own
// goroutine. The payload is serialized once and shared.
func (d *Dispatcher) Dispatch(eventType string, payload any) {
	input, err := json.Marshal(envelope{Event: eventType, Payload: payload})
	if err != nil {
		d.log.Printf("hooks: marshaling %s event: %v", eventType, err)
		return
	}

	for _, hook := range d.manager.List() {
		if !hook.Subscribed(eventType) {
			continue
		}
		go func(h *Hook) {
			if err := d.run(h, input); err != nil {
				d.log.Printf("hooks: %s on %s: %v", h.Manifest.Name, eventType, err)
			}
		}(hook)
	}
}

// run executes one hook with the event document on stdin, killing it if
// the timeout elapses.
func (d *Dispatcher) run(hook *Hook, input []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, hook.Executable)
	cmd.Dir = hook.Path
	cmd.Stdin = bytes.NewReader(input)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("timed out after %s", d.timeout)
	}
	if err != nil {
		if stderr.Len() > 0 {
			return fmt.Errorf("%w, stderr: %s", err, stderr.String())
		}
		return err
	}
	return nil
}
