package analyzer

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// Color is a highlight color name.
type Color string

const (
	NoColor Color = ""
	Red     Color = "red"
	Orange  Color = "orange"
	Yellow  Color = "yellow"
	Green   Color = "green"
	Cyan    Color = "cyan"
	Blue    Color = "blue"
	Pink    Color = "pink"
	Magenta Color = "magenta"
	Gray    Color = "gray"
)

// Colors lists every highlight color.
var Colors = []Color{Red, Orange, Yellow, Green, Cyan, Blue, Pink, Magenta, Gray}

// ParseColor accepts a color name in any case.
func ParseColor(s string) (Color, error) {
	c := Color(strings.ToLower(strings.TrimSpace(s)))
	if c == NoColor || slices.Contains(Colors, c) {
		return c, nil
	}
	return NoColor, fmt.Errorf("unknown highlight color %q", s)
}

// Highlights maps result IDs to colors. Equal-looking results are distinct.
type Highlights struct {
	mu     sync.RWMutex
	colors map[uint64]Color
}

func NewHighlights() *Highlights {
	return &Highlights{colors: make(map[uint64]Color)}
}

// Set colors r. NoColor clears it.
func (h *Highlights) Set(r *types.AttackResult, c Color) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c == NoColor {
		delete(h.colors, r.ID)
		return
	}
	h.colors[r.ID] = c
}

// Get returns r's color or NoColor.
func (h *Highlights) Get(r *types.AttackResult) Color {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.colors[r.ID]
}

func (h *Highlights) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.colors = make(map[uint64]Color)
}

// Len returns the number of highlighted results.
func (h *Highlights) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.colors)
}
