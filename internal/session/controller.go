package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/surgitrack/trainerd/internal/catalog"
)

// Controller errors. ErrSaveFailed wraps the underlying transport or
// validation failure; the session is preserved so the caller can retry.
var (
	ErrInvalidProcedure = errors.New("unknown procedure")
	ErrNoSession        = errors.New("no active session")
	ErrNotFinished      = errors.New("session is not finished")
	ErrSaveInFlight     = errors.New("a save is already in progress")
	ErrSaveFailed       = errors.New("saving result failed")
)

// Catalog is the slice of the backend API the controller needs to start a
// session. *catalog.Client satisfies it.
type Catalog interface {
	HasProcedure(ctx context.Context, id int) (bool, error)
	Stages(ctx context.Context, procedureID int) ([]catalog.Stage, error)
}

// ResultsSink accepts a finished session's score. *catalog.Client
// satisfies it.
type ResultsSink interface {
	SaveResult(ctx context.Context, req catalog.SaveResultRequest) (*catalog.Result, error)
}

// SavedResult is the record handed to the local journal after a successful
// save.
type SavedResult struct {
	SessionID     string
	ProcedureID   int
	ProcedureName string
	Marks         int
	TotalStages   int
	Score         int
	RemoteID      int
	CompletedAt   time.Time
}

// Journal persists saved results locally. Journal failures are logged and
// never fail the save.
type Journal interface {
	RecordResult(SavedResult) error
}

// Event is broadcast to observers (the UI feed) on session transitions.
type Event struct {
	Type        string `json:"type"`
	SessionID   string `json:"sessionId,omitempty"`
	ProcedureID int    `json:"procedureId,omitempty"`
	StageID     int    `json:"stageId,omitempty"`
	StageName   string `json:"stageName,omitempty"`
	Score       int    `json:"score"`
	Completed   int    `json:"completed"`
	TotalStages int    `json:"totalStages"`
}

// StageStatus is one stage of the active snapshot with its live progress.
type StageStatus struct {
	catalog.Stage
	Completed bool `json:"isCompleted"`
	Current   bool `json:"isCurrent"`
}

// Snapshot is a point-in-time copy of the session state, safe to hand to
// HTTP handlers and the event feed.
type Snapshot struct {
	State             State         `json:"state"`
	SessionID         string        `json:"sessionId,omitempty"`
	ProcedureID       int           `json:"procedureId,omitempty"`
	CurrentStageIndex int           `json:"currentStageIndex"`
	CompletedStageIDs []int         `json:"completedStageIds"`
	Score             int           `json:"score"`
	TotalStages       int           `json:"totalStages"`
	Stages            []StageStatus `json:"stages"`
}

// Config wires a Controller.
type Config struct {
	Catalog Catalog
	Results ResultsSink
	Journal Journal // optional
	Logger  *log.Logger
	OnEvent func(Event) // optional, called outside the controller lock
}

// Controller owns the single active session and every mutation of its
// counters, so the monotonicity invariants are enforced in one place.
type Controller struct {
	cfg Config

	mu   sync.Mutex
	sess *Session
}

// NewController creates a Controller with no active session.
func NewController(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Controller{cfg: cfg}
}

// Start begins a session for the given procedure, replacing any previous
// session. It fails with ErrInvalidProcedure when the id is not in the
// catalog; the session state is untouched in that case. An empty stage
// list is legal: the session starts immediately eligible for finish.
func (c *Controller) Start(ctx context.Context, procedureID int) (Snapshot, error) {
	ok, err := c.cfg.Catalog.HasProcedure(ctx, procedureID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("checking procedure %d: %w", procedureID, err)
	}
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: id %d", ErrInvalidProcedure, procedureID)
	}

	stages, err := c.cfg.Catalog.Stages(ctx, procedureID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("fetching stages for procedure %d: %w", procedureID, err)
	}

	c.mu.Lock()
	c.sess = newSession(uuid.New().String(), procedureID, stages)
	snap := c.snapshotLocked()
	c.mu.Unlock()

	c.cfg.Logger.Printf("session %s started: procedure %d, %d stages", snap.SessionID, procedureID, snap.TotalStages)
	c.emit(Event{
		Type:        "session_started",
		SessionID:   snap.SessionID,
		ProcedureID: procedureID,
		TotalStages: snap.TotalStages,
	})
	return snap, nil
}

// Observe runs one automaton step against the given presence query. It is
// called once per accepted frame by the telemetry pipeline; repeated calls
// without a new distinct frame never happen by construction.
func (c *Controller) Observe(has func(name string) bool) {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return
	}
	stage, ok := c.sess.Observe(has)
	var snap Snapshot
	if ok {
		snap = c.snapshotLocked()
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	c.cfg.Logger.Printf("stage %q completed (tool %s), score %d", stage.Name, stage.RequiredTool, snap.Score)
	c.emit(Event{
		Type:        "stage_completed",
		SessionID:   snap.SessionID,
		ProcedureID: snap.ProcedureID,
		StageID:     stage.ID,
		StageName:   stage.Name,
		Score:       snap.Score,
		Completed:   len(snap.CompletedStageIDs),
		TotalStages: snap.TotalStages,
	})
}

// Finish moves the session to Completed. It is purely local: it unlocks
// the save step and the display of the final score. Finishing an already
// finished session is a no-op.
func (c *Controller) Finish() (Snapshot, error) {
	c.mu.Lock()
	if c.sess == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	already := c.sess.State == StateCompleted
	c.sess.finish()
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if !already {
		c.cfg.Logger.Printf("session %s finished with score %d", snap.SessionID, snap.Score)
		c.emit(Event{
			Type:        "session_finished",
			SessionID:   snap.SessionID,
			ProcedureID: snap.ProcedureID,
			Score:       snap.Score,
			Completed:   len(snap.CompletedStageIDs),
			TotalStages: snap.TotalStages,
		})
	}
	return snap, nil
}

// Save submits the finished session to the results sink. It is
// single-flight: a second Save while one is outstanding fails with
// ErrSaveInFlight. On success the session resets to NotStarted; on failure
// the session is kept so the caller can retry without re-running the
// procedure.
func (c *Controller) Save(ctx context.Context) (Snapshot, error) {
	c.mu.Lock()
	sess := c.sess
	if sess == nil {
		c.mu.Unlock()
		return Snapshot{}, ErrNoSession
	}
	if sess.State != StateCompleted {
		c.mu.Unlock()
		return Snapshot{}, ErrNotFinished
	}
	if sess.saving {
		c.mu.Unlock()
		return Snapshot{}, ErrSaveInFlight
	}
	sess.saving = true
	sessID := sess.ID
	req := catalog.SaveResultRequest{
		ProcedureID: sess.ProcedureID,
		Marks:       len(sess.Completed),
		TotalStages: len(sess.Stages),
	}
	score := sess.Score()
	c.mu.Unlock()

	created, err := c.cfg.Results.SaveResult(ctx, req)

	c.mu.Lock()
	sess.saving = false
	if err != nil {
		c.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	// Only clear the session this save belongs to. A session started
	// while the save was outstanding must survive its completion.
	if c.sess == sess {
		c.sess = nil
	}
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if c.cfg.Journal != nil {
		record := SavedResult{
			SessionID:   sessID,
			ProcedureID: req.ProcedureID,
			Marks:       req.Marks,
			TotalStages: req.TotalStages,
			Score:       score,
			CompletedAt: time.Now(),
		}
		if created != nil {
			record.RemoteID = created.ID
			record.ProcedureName = created.ProcedureName
		}
		if err := c.cfg.Journal.RecordResult(record); err != nil {
			c.cfg.Logger.Printf("journal: recording result for session %s failed: %v", sessID, err)
		}
	}

	c.cfg.Logger.Printf("session %s saved: %d/%d stages, score %d", sessID, req.Marks, req.TotalStages, score)
	c.emit(Event{
		Type:        "session_saved",
		SessionID:   sessID,
		ProcedureID: req.ProcedureID,
		Score:       score,
		Completed:   req.Marks,
		TotalStages: req.TotalStages,
	})
	return snap, nil
}

// Reset clears all session state back to NotStarted, discarding the stage
// snapshot and completed set. Safe to call from any state.
func (c *Controller) Reset() Snapshot {
	c.mu.Lock()
	had := c.sess != nil
	c.sess = nil
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if had {
		c.emit(Event{Type: "session_reset"})
	}
	return snap
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	if c.sess == nil {
		return Snapshot{
			State:             StateNotStarted,
			CompletedStageIDs: []int{},
			Stages:            []StageStatus{},
		}
	}

	s := c.sess
	stages := make([]StageStatus, len(s.Stages))
	for i, st := range s.Stages {
		_, done := s.Completed[st.ID]
		stages[i] = StageStatus{
			Stage:     st,
			Completed: done,
			Current:   s.State == StateInProgress && i == s.CurrentStageIndex,
		}
	}

	return Snapshot{
		State:             s.State,
		SessionID:         s.ID,
		ProcedureID:       s.ProcedureID,
		CurrentStageIndex: s.CurrentStageIndex,
		CompletedStageIDs: s.completedIDs(),
		Score:             s.Score(),
		TotalStages:       len(s.Stages),
		Stages:            stages,
	}
}

func (c *Controller) emit(ev Event) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}
