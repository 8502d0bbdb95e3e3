// Package session implements procedural training sessions: the stage
// progression automaton that consumes live tool presence, and the
// lifecycle controller that starts, finishes, saves, and resets sessions
// against the external catalog and results APIs.
package session

import (
	"math"
	"sort"
	"time"

	"github.com/surgitrack/trainerd/internal/catalog"
)

// State is the automaton state of a training session.
type State string

const (
	// StateNotStarted means no session exists.
	StateNotStarted State = "not_started"
	// StateInProgress means stages are being validated against live telemetry.
	StateInProgress State = "in_progress"
	// StateCompleted is the terminal state entered by a manual finish.
	StateCompleted State = "completed"
)

// Session is one attempt at validating a procedure. The stage slice is
// snapshotted at start and never changes afterwards, so concurrent catalog
// edits cannot alter an in-flight session. CurrentStageIndex only ever
// moves forward and Completed only ever grows.
type Session struct {
	ID          string
	ProcedureID int
	Stages      []catalog.Stage
	State       State

	CurrentStageIndex int
	Completed         map[int]struct{}

	StartedAt  time.Time
	FinishedAt time.Time

	// saving marks an outstanding submission for this session. It lives
	// on the session, not the controller, so starting a new session
	// cannot re-arm the guard of a save still in flight.
	saving bool
}

// newSession snapshots the given stages (sorted by Order for a
// deterministic progression) and starts at the first stage.
func newSession(id string, procedureID int, stages []catalog.Stage) *Session {
	snapshot := make([]catalog.Stage, len(stages))
	copy(snapshot, stages)
	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].Order < snapshot[j].Order
	})

	return &Session{
		ID:          id,
		ProcedureID: procedureID,
		Stages:      snapshot,
		State:       StateInProgress,
		Completed:   make(map[int]struct{}),
		StartedAt:   time.Now(),
	}
}

// Observe runs one check-then-advance step against a presence query. If the
// current stage's required tool is visible and that stage is not yet
// completed, the stage is marked complete and the index advances (unless
// already at the last stage). It returns the completed stage, or ok=false
// when nothing changed. Calling Observe again with the same unchanged
// presence cannot complete the same stage twice.
func (s *Session) Observe(has func(name string) bool) (stage catalog.Stage, ok bool) {
	if s.State != StateInProgress || len(s.Stages) == 0 {
		return catalog.Stage{}, false
	}

	current := s.Stages[s.CurrentStageIndex]
	if _, done := s.Completed[current.ID]; done {
		return catalog.Stage{}, false
	}
	if !has(current.RequiredTool) {
		return catalog.Stage{}, false
	}

	s.Completed[current.ID] = struct{}{}
	if s.CurrentStageIndex < len(s.Stages)-1 {
		s.CurrentStageIndex++
	}
	return current, true
}

// Score derives the percentage of completed stages, rounded to the nearest
// integer. It is never stored; an empty stage list scores 0.
func (s *Session) Score() int {
	if len(s.Stages) == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(s.Completed)) / float64(len(s.Stages))))
}

// finish moves the session to its terminal state. Finishing is legal at
// any time; a partially completed session keeps its partial score.
func (s *Session) finish() {
	if s.State == StateCompleted {
		return
	}
	s.State = StateCompleted
	s.FinishedAt = time.Now()
}

// completedIDs returns the completed stage ids in ascending order.
func (s *Session) completedIDs() []int {
	ids := make([]int, 0, len(s.Completed))
	for id := range s.Completed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
