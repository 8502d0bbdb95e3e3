// Package catalog is the HTTP client for the external SurgiTrack backend:
// the procedure catalog, the test-results sink, and the detector's camera
// control endpoints. The catalog is externally owned; this package only
// reads it and submits results.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Procedure is one entry of the procedure catalog.
type Procedure struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Stage is one ordered step of a procedure. Order is strictly increasing
// within a procedure but not necessarily gapless.
type Stage struct {
	ID           int    `json:"id"`
	ProcedureID  int    `json:"procedureId"`
	Name         string `json:"name"`
	RequiredTool string `json:"requiredTool"`
	Order        int    `json:"order"`
}

// Result is a saved test result as returned by the results sink.
type Result struct {
	ID            int    `json:"id"`
	ProcedureID   int    `json:"procedureId"`
	Marks         int    `json:"marks"`
	TotalStages   int    `json:"totalStages"`
	CompletedAt   string `json:"completedAt"`
	ProcedureName string `json:"procedureName,omitempty"`
}

// SaveResultRequest is the payload for submitting a finished session.
type SaveResultRequest struct {
	ProcedureID int `json:"procedureId"`
	Marks       int `json:"marks"`
	TotalStages int `json:"totalStages"`
}

// Client talks to the SurgiTrack backend over plain request/response HTTP.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a Client for the given base URL, e.g. "http://localhost:8000".
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// Procedures lists the procedure catalog.
func (c *Client) Procedures(ctx context.Context) ([]Procedure, error) {
	var procs []Procedure
	if err := c.getJSON(ctx, "/api/procedures", &procs); err != nil {
		return nil, err
	}
	return procs, nil
}

// HasProcedure reports whether the given id exists in the catalog.
func (c *Client) HasProcedure(ctx context.Context, id int) (bool, error) {
	procs, err := c.Procedures(ctx)
	if err != nil {
		return false, err
	}
	for _, p := range procs {
		if p.ID == id {
			return true, nil
		}
	}
	return false, nil
}

// Stages returns the ordered stage list for a procedure. The backend
// answers 404 for a procedure without stages; that is "no stages", not an
// error.
func (c *Client) Stages(ctx context.Context, procedureID int) ([]Stage, error) {
	resp, err := c.get(ctx, fmt.Sprintf("/api/procedures/%d/stages", procedureID))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	var stages []Stage
	if err := decodeJSON(resp, &stages); err != nil {
		return nil, err
	}
	return stages, nil
}

// SaveResult submits a finished session's score to the results sink and
// returns the created record.
func (c *Client) SaveResult(ctx context.Context, req SaveResultRequest) (*Result, error) {
	var created Result
	if err := c.postJSON(ctx, "/api/tests/results", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Results lists recently saved test results, newest first.
func (c *Client) Results(ctx context.Context) ([]Result, error) {
	var results []Result
	if err := c.getJSON(ctx, "/api/tests/results", &results); err != nil {
		return nil, err
	}
	return results, nil
}

// CameraStart asks the detector service to start its camera loop.
func (c *Client) CameraStart(ctx context.Context) error {
	return c.postJSON(ctx, "/api/camera/start", nil, nil)
}

// CameraStop asks the detector service to stop its camera loop.
func (c *Client) CameraStop(ctx context.Context) error {
	return c.postJSON(ctx, "/api/camera/stop", nil, nil)
}

// CameraStatus reports whether the detector's camera loop is running.
func (c *Client) CameraStatus(ctx context.Context) (bool, error) {
	var status struct {
		Active bool `json:"active"`
	}
	if err := c.getJSON(ctx, "/api/camera/status", &status); err != nil {
		return false, err
	}
	return status.Active, nil
}

func (c *Client) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.http.Do(req)
}

// getJSON sends a GET request and decodes the JSON response into dst.
func (c *Client) getJSON(ctx context.Context, path string, dst any) error {
	resp, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeJSON(resp, dst)
}

// postJSON sends a POST request with an optional JSON body and decodes the
// response into dst when dst is non-nil.
func (c *Client) postJSON(ctx context.Context, path string, body, dst any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if dst == nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return errorFromResponse(resp)
		}
		return nil
	}
	return decodeJSON(resp, dst)
}

// decodeJSON decodes a JSON response body into dst. Non-2xx responses turn
// into an error carrying the backend's message when it sent one.
func decodeJSON(resp *http.Response, dst any) error {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp)
	}
	return json.NewDecoder(resp.Body).Decode(dst)
}

// errorFromResponse extracts a human-readable message from an error
// response. The backend reports failures as {"message": "..."}.
func errorFromResponse(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &payload); err == nil && payload.Message != "" {
		return fmt.Errorf("HTTP %s: %s", resp.Status, payload.Message)
	}
	if msg := strings.TrimSpace(string(b)); msg != "" {
		return fmt.Errorf("HTTP %s: %s", resp.Status, msg)
	}
	return fmt.Errorf("HTTP %s", resp.Status)
}
