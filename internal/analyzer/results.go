package analyzer

import (
	"sync"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// ResultLog keeps every result of a session and answers visibility queries.
type ResultLog struct {
	mu      sync.RWMutex
	results []*types.AttackResult

	Smart      *SmartFilter
	Manual     Filter // may be nil
	Highlights *Highlights
}

// NewResultLog creates a log using smart for pattern muting and manual for
// user rules. Either may be nil.
func NewResultLog(smart *SmartFilter, manual Filter) *ResultLog {
	return &ResultLog{Smart: smart, Manual: manual, Highlights: NewHighlights()}
}

// Accept appends r.
func (l *ResultLog) Accept(r *types.AttackResult) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

// All returns every accepted result in arrival order.
func (l *ResultLog) All() []*types.AttackResult {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]*types.AttackResult(nil), l.results...)
}

func (l *ResultLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.results)
}

// Visible reports whether r passes the smart and manual filters.
func (l *ResultLog) Visible(r *types.AttackResult) bool {
	if l.Smart != nil && !l.Smart.ShouldShow(r) {
		return false
	}
	if l.Manual != nil && l.Manual.Apply(r).Filtered {
		return false
	}
	return true
}

// View returns the visible results. A color other than NoColor further
// restricts the view to results highlighted with it.
func (l *ResultLog) View(only Color) []*types.AttackResult {
	var out []*types.AttackResult
	for _, r := range l.All() {
		if !l.Visible(r) {
			continue
		}
		if only != NoColor && l.Highlights.Get(r) != only {
			continue
		}
		out = append(out, r)
	}
	return out
}

// Clear drops all results, highlights and smart filter patterns.
func (l *ResultLog) Clear() {
	l.mu.Lock()
	l.results = nil
	l.mu.Unlock()
	l.Highlights.Reset()
	if l.Smart != nil {
		l.Smart.Reset()
	}
}
