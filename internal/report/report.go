// Package report provides report generation for bypass runs.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/fluxfuzzer/bypassfuzzer/internal/analyzer"
)

// Severity ranks how promising a finding is
type Severity string

const (
	SeverityHigh   Severity = "high"   // 2xx: likely bypass
	SeverityMedium Severity = "medium" // 3xx
	SeverityLow    Severity = "low"    // 5xx
	SeverityInfo   Severity = "info"   // everything else
)

// SeverityOf classifies a status code.
func SeverityOf(status int) Severity {
	switch {
	case status >= 200 && status < 300:
		return SeverityHigh
	case status >= 300 && status < 400:
		return SeverityMedium
	case status >= 500:
		return SeverityLow
	}
	return SeverityInfo
}

// Finding is one visible result
type Finding struct {
	ID            uint64    `json:"id"`
	AttackType    string    `json:"attack_type"`
	Payload       string    `json:"payload"`
	Method        string    `json:"method"`
	URL           string    `json:"url"`
	StatusCode    int       `json:"status_code"`
	ContentLength int       `json:"content_length"`
	ContentType   string    `json:"content_type,omitempty"`
	Severity      Severity  `json:"severity"`
	Highlight     string    `json:"highlight,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Pattern summarizes one response shape
type Pattern struct {
	StatusCode    int    `json:"status_code"`
	ContentLength int    `json:"content_length"`
	ContentType   string `json:"content_type,omitempty"`
	Count         int    `json:"count"`
	Shown         int    `json:"shown"`
}

// Statistics holds run statistics
type Statistics struct {
	TotalResults   int            `json:"total_results"`
	VisibleResults int            `json:"visible_results"`
	HiddenResults  int            `json:"hidden_results"`
	UniquePatterns int            `json:"unique_patterns"`
	Duration       time.Duration  `json:"duration"`
	AttackCounts   map[string]int `json:"attack_counts"`
	StatusCounts   map[int]int    `json:"status_counts"`
}

// MarshalJSON implements custom JSON marshaling for Statistics
func (s Statistics) MarshalJSON() ([]byte, error) {
	type Alias Statistics
	return json.Marshal(&struct {
		Alias
		Duration string `json:"duration"`
	}{
		Alias:    Alias(s),
		Duration: s.Duration.String(),
	})
}

// Report represents a bypass run report
type Report struct {
	// Metadata
	RunID       string    `json:"run_id"`
	Title       string    `json:"title"`
	Version     string    `json:"version"`
	GeneratedAt time.Time `json:"generated_at"`

	// Target
	TargetURL string `json:"target_url"`

	Statistics Statistics `json:"statistics"`
	Findings   []Finding  `json:"findings"`
	Patterns   []Pattern  `json:"patterns"`

	// Summary by severity
	SeverityCounts map[Severity]int `json:"severity_counts"`
}

// NewReport creates an empty report with a fresh run ID
func NewReport(title, targetURL string) *Report {
	return &Report{
		RunID:          uuid.NewString(),
		Title:          title,
		Version:        "1.0",
		GeneratedAt:    time.Now(),
		TargetURL:      targetURL,
		Findings:       make([]Finding, 0),
		SeverityCounts: make(map[Severity]int),
		Statistics: Statistics{
			AttackCounts: make(map[string]int),
			StatusCounts: make(map[int]int),
		},
	}
}

// AddFinding adds a finding to the report
func (r *Report) AddFinding(f Finding) {
	r.Findings = append(r.Findings, f)
	r.SeverityCounts[f.Severity]++
}

// FilterBySeverity returns findings with the given severity
func (r *Report) FilterBySeverity(severity Severity) []Finding {
	var filtered []Finding
	for _, f := range r.Findings {
		if f.Severity == severity {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// FilterByAttack returns findings produced by one attack type
func (r *Report) FilterByAttack(attackType string) []Finding {
	var filtered []Finding
	for _, f := range r.Findings {
		if f.AttackType == attackType {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// Narrow keeps only findings matching severity and attackType. An empty
// argument matches everything. Severity counts follow the kept findings;
// statistics still describe the whole run.
func (r *Report) Narrow(severity Severity, attackType string) {
	if severity != "" {
		r.Findings = r.FilterBySeverity(severity)
	}
	if attackType != "" {
		r.Findings = r.FilterByAttack(attackType)
	}
	if r.Findings == nil {
		r.Findings = make([]Finding, 0)
	}
	r.SeverityCounts = make(map[Severity]int)
	for _, f := range r.Findings {
		r.SeverityCounts[f.Severity]++
	}
}

// FromResults builds a report from a result log. Every result counts
// toward the statistics; only visible ones become findings.
func FromResults(title, targetURL string, log *analyzer.ResultLog) *Report {
	r := NewReport(title, targetURL)
	all := log.All()

	maxShown := analyzer.DefaultMaxRepeats
	if log.Smart != nil {
		maxShown = log.Smart.MaxRepeats()
	}

	patterns := make(map[analyzer.PatternKey]*Pattern)
	var order []analyzer.PatternKey
	for _, res := range all {
		r.Statistics.AttackCounts[res.AttackType]++
		r.Statistics.StatusCounts[res.StatusCode]++

		key := analyzer.KeyOf(res)
		p, ok := patterns[key]
		if !ok {
			p = &Pattern{StatusCode: key.StatusCode, ContentLength: key.ContentLength, ContentType: key.ContentType}
			patterns[key] = p
			order = append(order, key)
		}
		p.Count++
		if p.Shown < maxShown {
			p.Shown++
		}

		if !log.Visible(res) {
			continue
		}
		r.AddFinding(Finding{
			ID:            res.ID,
			AttackType:    res.AttackType,
			Payload:       res.Payload,
			Method:        res.Request.Method,
			URL:           res.Request.URL,
			StatusCode:    res.StatusCode,
			ContentLength: res.ContentLength,
			ContentType:   res.ContentType,
			Severity:      SeverityOf(res.StatusCode),
			Highlight:     string(log.Highlights.Get(res)),
			Timestamp:     res.Time(),
		})
	}

	for _, k := range order {
		r.Patterns = append(r.Patterns, *patterns[k])
	}
	sort.SliceStable(r.Patterns, func(i, j int) bool {
		return r.Patterns[i].Count > r.Patterns[j].Count
	})

	r.Statistics.TotalResults = len(all)
	r.Statistics.VisibleResults = len(r.Findings)
	r.Statistics.HiddenResults = len(all) - len(r.Findings)
	r.Statistics.UniquePatterns = len(patterns)
	if len(all) > 1 {
		r.Statistics.Duration = all[len(all)-1].Time().Sub(all[0].Time())
	}
	return r
}

// Generator is the interface for report generators
type Generator interface {
	Generate(report *Report, w io.Writer) error
	Extension() string
}

// Manager manages report generation
type Manager struct {
	generators map[string]Generator
	outputDir  string
}

// NewManager creates a new report manager
func NewManager(outputDir string) *Manager {
	m := &Manager{
		generators: make(map[string]Generator),
		outputDir:  outputDir,
	}

	// Register default generators
	m.RegisterGenerator("json", &JSONGenerator{Indent: true})
	m.RegisterGenerator("jsonl", &JSONGenerator{Lines: true})
	m.RegisterGenerator("html", NewHTMLGenerator())
	m.RegisterGenerator("markdown", &MarkdownGenerator{})
	m.RegisterGenerator("md", &MarkdownGenerator{})

	return m
}

// RegisterGenerator registers a generator
func (m *Manager) RegisterGenerator(format string, gen Generator) {
	m.generators[format] = gen
}

// GetGenerator returns a generator by format
func (m *Manager) GetGenerator(format string) (Generator, bool) {
	gen, ok := m.generators[format]
	return gen, ok
}

// Generate writes the report to a timestamped file in the output directory
func (m *Manager) Generate(report *Report, format string) (string, error) {
	gen, ok := m.generators[format]
	if !ok {
		return "", fmt.Errorf("unknown report format: %s", format)
	}

	if err := os.MkdirAll(m.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	timestamp := report.GeneratedAt.Format("20060102_150405")
	filename := fmt.Sprintf("bypass_%s_%s.%s", timestamp, report.RunID[:8], gen.Extension())
	path := filepath.Join(m.outputDir, filename)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer f.Close()

	if err := gen.Generate(report, f); err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}
	return path, nil
}

// WriteFile writes the report to path in the given format
func (m *Manager) WriteFile(report *Report, format, path string) error {
	gen, ok := m.generators[format]
	if !ok {
		return fmt.Errorf("unknown report format: %s", format)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := gen.Generate(report, f); err != nil {
		f.Close()
		return fmt.Errorf("failed to generate report: %w", err)
	}
	return f.Close()
}

// WriteToWriter generates a report and writes to the given writer
func (m *Manager) WriteToWriter(report *Report, format string, w io.Writer) error {
	gen, ok := m.generators[format]
	if !ok {
		return fmt.Errorf("unknown report format: %s", format)
	}

	return gen.Generate(report, w)
}
