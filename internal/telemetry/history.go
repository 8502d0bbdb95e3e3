package telemetry

import "sync"

// DefaultHistoryCapacity is how many accepted frames the history retains
// when no explicit capacity is configured.
const DefaultHistoryCapacity = 140

// History is a bounded, append-only buffer of accepted frames. Canonical
// storage order is oldest-first; Display reverses at the read boundary.
// Entries are never mutated after insertion. Once the buffer is over
// capacity the oldest entries are dropped in batches rather than one at a
// time, keeping the amortized cost of a push constant.
type History struct {
	mu       sync.RWMutex
	entries  []Frame
	start    int // index of the oldest live entry in entries
	capacity int
}

// NewHistory creates a history buffer holding at most capacity frames.
// A capacity of zero or less falls back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultHistoryCapacity
	}
	return &History{
		entries:  make([]Frame, 0, capacity+capacity/2),
		capacity: capacity,
	}
}

// Push appends one frame, evicting the oldest entries if the buffer is over
// capacity. Eviction advances a start cursor; the dead prefix is reclaimed
// in one batch copy once it grows past the capacity itself.
func (h *History) Push(f Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries, f)
	if live := len(h.entries) - h.start; live > h.capacity {
		h.start = len(h.entries) - h.capacity
	}
	if h.start >= h.capacity {
		live := h.entries[h.start:]
		fresh := make([]Frame, len(live), h.capacity+h.capacity/2)
		copy(fresh, live)
		h.entries = fresh
		h.start = 0
	}
}

// Size returns the number of retained frames.
func (h *History) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries) - h.start
}

// Capacity returns the configured maximum number of retained frames.
func (h *History) Capacity() int {
	return h.capacity
}

// Snapshot returns a copy of the retained frames, oldest-first.
func (h *History) Snapshot() []Frame {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]Frame, len(h.entries)-h.start)
	copy(out, h.entries[h.start:])
	return out
}

// Display returns a copy of the retained frames, newest-first.
func (h *History) Display() []Frame {
	snap := h.Snapshot()
	for i, j := 0, len(snap)-1; i < j; i, j = i+1, j-1 {
		snap[i], snap[j] = snap[j], snap[i]
	}
	return snap
}

// Filter returns the frames, newest-first, that contain at least one tool
// whose normalized name satisfies keep. The buffer itself is not touched;
// the result is a derived view.
func (h *History) Filter(keep func(normalized string) bool) []Frame {
	var out []Frame
	for _, f := range h.Display() {
		for _, t := range f.Tools {
			if keep(NormalizeTool(t.Name)) {
				out = append(out, f)
				break
			}
		}
	}
	return out
}
