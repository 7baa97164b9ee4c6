package analyzer

import (
	"fmt"
	"sync"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// DefaultMaxRepeats is how many results per pattern stay visible.
const DefaultMaxRepeats = 10

// PatternKey identifies a response shape.
type PatternKey struct {
	StatusCode    int
	ContentLength int
	ContentType   string
}

// KeyOf returns the pattern key of r.
func KeyOf(r *types.AttackResult) PatternKey {
	return PatternKey{StatusCode: r.StatusCode, ContentLength: r.ContentLength, ContentType: r.ContentType}
}

// PatternRecord is the tracking state of one pattern.
type PatternRecord struct {
	Count    int
	Retained []*types.AttackResult
}

// SmartFilter mutes response shapes that keep repeating. The first
// maxRepeats results of each pattern stay visible for the whole run; later
// ones are hidden. Retention is by result identity.
type SmartFilter struct {
	mu         sync.RWMutex
	enabled    bool
	maxRepeats int
	patterns   map[PatternKey]*PatternRecord
	retained   map[uint64]struct{}
}

// NewSmartFilter creates an enabled filter. maxRepeats < 1 means DefaultMaxRepeats.
func NewSmartFilter(maxRepeats int) *SmartFilter {
	if maxRepeats < 1 {
		maxRepeats = DefaultMaxRepeats
	}
	return &SmartFilter{
		enabled:    true,
		maxRepeats: maxRepeats,
		patterns:   make(map[PatternKey]*PatternRecord),
		retained:   make(map[uint64]struct{}),
	}
}

func (f *SmartFilter) Name() string {
	return "smart"
}

// SetEnabled toggles filtering. Tracking continues while disabled.
func (f *SmartFilter) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.enabled = enabled
}

func (f *SmartFilter) Enabled() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.enabled
}

// Track counts r under its pattern and retains it if the pattern still has room.
func (f *SmartFilter) Track(r *types.AttackResult) {
	key := KeyOf(r)
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.patterns[key]
	if !ok {
		rec = &PatternRecord{}
		f.patterns[key] = rec
	}
	rec.Count++
	if len(rec.Retained) < f.maxRepeats {
		rec.Retained = append(rec.Retained, r)
		f.retained[r.ID] = struct{}{}
	}
}

// ShouldShow reports whether r was retained. Always true when disabled.
func (f *SmartFilter) ShouldShow(r *types.AttackResult) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.enabled {
		return true
	}
	_, ok := f.retained[r.ID]
	return ok
}

// Apply makes SmartFilter usable in a FilterChain.
func (f *SmartFilter) Apply(r *types.AttackResult) *FilterResult {
	if f.ShouldShow(r) {
		return NotFiltered()
	}
	return FilteredBy(f.Name(), "repeated response pattern")
}

// Reset forgets every pattern.
func (f *SmartFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patterns = make(map[PatternKey]*PatternRecord)
	f.retained = make(map[uint64]struct{})
}

// Count returns how many results were tracked under key.
func (f *SmartFilter) Count(key PatternKey) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if rec, ok := f.patterns[key]; ok {
		return rec.Count
	}
	return 0
}

// Patterns returns the number of distinct patterns tracked.
func (f *SmartFilter) Patterns() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.patterns)
}

// MaxRepeats returns the per-pattern retention budget.
func (f *SmartFilter) MaxRepeats() int {
	return f.maxRepeats
}

// Statistics summarizes tracking for display.
func (f *SmartFilter) Statistics() string {
	n := f.Patterns()
	if n == 0 {
		return "No patterns tracked"
	}
	return fmt.Sprintf("%d unique patterns tracked (showing first %d of each)", n, f.maxRepeats)
}
