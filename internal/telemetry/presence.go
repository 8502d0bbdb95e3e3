package telemetry

import (
	"sort"
	"strings"
	"sync"
)

// NormalizeTool canonicalizes an instrument name for comparison: the name
// is lower-cased, surrounding whitespace is trimmed, and internal runs of
// whitespace collapse to a single space. Underscores are preserved verbatim,
// matching how required-tool identifiers are authored in the procedure
// catalog ("artery_forceps", not "artery forceps").
func NormalizeTool(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Presence is the set of normalized instrument names visible in the most
// recent accepted frame. It is rebuilt wholesale on every new frame, so a
// membership query always reflects exactly one frame, never a blend of two.
type Presence struct {
	mu    sync.RWMutex
	names map[string]struct{}
}

// NewPresence creates an empty presence index.
func NewPresence() *Presence {
	return &Presence{names: make(map[string]struct{})}
}

// Update replaces the index contents with the tools of the given frame.
// Cost is proportional to the number of tools in the frame.
func (p *Presence) Update(f Frame) {
	next := make(map[string]struct{}, len(f.Tools))
	for _, t := range f.Tools {
		if n := NormalizeTool(t.Name); n != "" {
			next[n] = struct{}{}
		}
	}

	p.mu.Lock()
	p.names = next
	p.mu.Unlock()
}

// Has reports whether the named instrument is visible in the latest frame.
// The argument goes through the same normalization as detector output, so
// catalog-authored identifiers and live labels compare in one space.
func (p *Presence) Has(name string) bool {
	n := NormalizeTool(name)

	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.names[n]
	return ok
}

// Names returns the normalized instrument names currently in the index,
// sorted for stable display.
func (p *Presence) Names() []string {
	p.mu.RLock()
	out := make([]string, 0, len(p.names))
	for n := range p.names {
		out = append(out, n)
	}
	p.mu.RUnlock()

	sort.Strings(out)
	return out
}
