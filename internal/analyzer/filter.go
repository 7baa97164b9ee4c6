// Package analyzer decides which attack results are worth showing.
// Filters help reduce noise by excluding results that match known patterns.
package analyzer

import (
	"strings"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// FilterResult represents the result of applying filters
type FilterResult struct {
	// Filtered indicates if the result should be hidden
	Filtered bool

	// Reason describes why the result was filtered
	Reason string

	// FilterName is the name of the filter that triggered
	FilterName string
}

// NotFiltered returns a FilterResult indicating the result passed all filters
func NotFiltered() *FilterResult {
	return &FilterResult{Filtered: false}
}

// FilteredBy returns a FilterResult indicating the result was filtered
func FilteredBy(name, reason string) *FilterResult {
	return &FilterResult{
		Filtered:   true,
		FilterName: name,
		Reason:     reason,
	}
}

// Filter defines the interface for result filters
type Filter interface {
	// Name returns the filter's identifier
	Name() string

	// Apply checks if the result should be hidden
	Apply(r *types.AttackResult) *FilterResult
}

// --- Status Code Filter ---

// StatusCodeFilter filters results based on status codes
type StatusCodeFilter struct {
	// HideCodes are status codes to filter out
	HideCodes map[int]bool

	// ShowCodes, when set, are the only status codes to show
	ShowCodes map[int]bool
}

func toSet(values []int) map[int]bool {
	set := make(map[int]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

// NewStatusCodeFilter creates a filter that hides specific status codes
func NewStatusCodeFilter(hideCodes ...int) *StatusCodeFilter {
	return &StatusCodeFilter{HideCodes: toSet(hideCodes)}
}

// NewStatusCodeShowFilter creates a filter that only shows specific status codes
func NewStatusCodeShowFilter(showCodes ...int) *StatusCodeFilter {
	return &StatusCodeFilter{ShowCodes: toSet(showCodes)}
}

func (f *StatusCodeFilter) Name() string {
	return "status_code"
}

func (f *StatusCodeFilter) Apply(r *types.AttackResult) *FilterResult {
	if f.HideCodes[r.StatusCode] {
		return FilteredBy(f.Name(), "status code in hide list")
	}
	if len(f.ShowCodes) > 0 && !f.ShowCodes[r.StatusCode] {
		return FilteredBy(f.Name(), "status code not in show list")
	}
	return NotFiltered()
}

// --- Content Length Filter ---

// LengthFilter filters results based on response body length
type LengthFilter struct {
	// MinLength is the minimum length (inclusive), 0 means no min
	MinLength int

	// MaxLength is the maximum length (inclusive), 0 means no max
	MaxLength int

	// HideLengths are exact lengths to filter out
	HideLengths map[int]bool

	// ShowLengths, when set, are the only lengths to show
	ShowLengths map[int]bool
}

// NewLengthFilter creates a filter for length range
func NewLengthFilter(minLength, maxLength int) *LengthFilter {
	return &LengthFilter{MinLength: minLength, MaxLength: maxLength}
}

// NewExactLengthFilter creates a filter that hides specific lengths
func NewExactLengthFilter(lengths ...int) *LengthFilter {
	return &LengthFilter{HideLengths: toSet(lengths)}
}

func (f *LengthFilter) Name() string {
	return "length"
}

func (f *LengthFilter) Apply(r *types.AttackResult) *FilterResult {
	length := r.ContentLength

	if f.MinLength > 0 && length < f.MinLength {
		return FilteredBy(f.Name(), "length below minimum")
	}
	if f.MaxLength > 0 && length > f.MaxLength {
		return FilteredBy(f.Name(), "length above maximum")
	}
	if f.HideLengths[length] {
		return FilteredBy(f.Name(), "exact length match")
	}
	if len(f.ShowLengths) > 0 && !f.ShowLengths[length] {
		return FilteredBy(f.Name(), "length not in show list")
	}
	return NotFiltered()
}

// --- Substring Filters ---

// ContentTypeFilter shows only results whose Content-Type contains Substr.
// Matching is case-insensitive; a result without Content-Type is hidden.
type ContentTypeFilter struct {
	Substr string
}

func (f *ContentTypeFilter) Name() string {
	return "content_type"
}

func (f *ContentTypeFilter) Apply(r *types.AttackResult) *FilterResult {
	if !containsFold(r.ContentType, f.Substr) {
		return FilteredBy(f.Name(), "content type does not match")
	}
	return NotFiltered()
}

// PayloadFilter shows only results whose payload description contains Substr.
type PayloadFilter struct {
	Substr string
}

func (f *PayloadFilter) Name() string {
	return "payload"
}

func (f *PayloadFilter) Apply(r *types.AttackResult) *FilterResult {
	if !containsFold(r.Payload, f.Substr) {
		return FilteredBy(f.Name(), "payload does not match")
	}
	return NotFiltered()
}

func containsFold(s, substr string) bool {
	return s != "" && strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// --- Filter Chain ---

// FilterChain combines multiple filters
type FilterChain struct {
	filters []Filter
	mode    FilterMode
}

// FilterMode determines how multiple filters are combined
type FilterMode int

const (
	// FilterModeAny filters if ANY filter triggers (OR logic)
	FilterModeAny FilterMode = iota

	// FilterModeAll filters only if ALL filters trigger (AND logic)
	FilterModeAll
)

// NewFilterChain creates a new filter chain
func NewFilterChain(mode FilterMode, filters ...Filter) *FilterChain {
	return &FilterChain{
		filters: filters,
		mode:    mode,
	}
}

// Add adds a filter to the chain
func (fc *FilterChain) Add(f Filter) {
	fc.filters = append(fc.filters, f)
}

func (fc *FilterChain) Name() string {
	return "chain"
}

// Apply applies all filters in the chain
func (fc *FilterChain) Apply(r *types.AttackResult) *FilterResult {
	if len(fc.filters) == 0 {
		return NotFiltered()
	}

	for _, f := range fc.filters {
		result := f.Apply(r)
		if result.Filtered && fc.mode == FilterModeAny {
			return result
		}
		if !result.Filtered && fc.mode == FilterModeAll {
			return NotFiltered()
		}
	}

	if fc.mode == FilterModeAll {
		return FilteredBy(fc.Name(), "all filters triggered")
	}
	return NotFiltered()
}

// Filters returns the list of filters in the chain
func (fc *FilterChain) Filters() []Filter {
	return fc.filters
}

// --- Manual Filter ---

// ManualSettings are user-chosen visibility rules. Zero values disable a rule.
type ManualSettings struct {
	HideStatus  []int
	ShowStatus  []int
	MinLength   int
	MaxLength   int
	HideLengths []int
	ShowLengths []int
	ContentType string
	Payload     string
}

// NewManualFilter builds an any-mode chain from settings. Only rules that
// are set take part.
func NewManualFilter(s ManualSettings) *FilterChain {
	chain := NewFilterChain(FilterModeAny)
	if len(s.HideStatus) > 0 || len(s.ShowStatus) > 0 {
		chain.Add(&StatusCodeFilter{HideCodes: toSet(s.HideStatus), ShowCodes: toSet(s.ShowStatus)})
	}
	if s.MinLength > 0 || s.MaxLength > 0 || len(s.HideLengths) > 0 || len(s.ShowLengths) > 0 {
		chain.Add(&LengthFilter{
			MinLength:   s.MinLength,
			MaxLength:   s.MaxLength,
			HideLengths: toSet(s.HideLengths),
			ShowLengths: toSet(s.ShowLengths),
		})
	}
	if strings.TrimSpace(s.ContentType) != "" {
		chain.Add(&ContentTypeFilter{Substr: strings.TrimSpace(s.ContentType)})
	}
	if strings.TrimSpace(s.Payload) != "" {
		chain.Add(&PayloadFilter{Substr: strings.TrimSpace(s.Payload)})
	}
	return chain
}
