package report

import (
	"fmt"
	"io"
	"slices"
	"strings"
)

// MarkdownGenerator generates Markdown reports
type MarkdownGenerator struct{}

// Generate generates a Markdown report
func (g *MarkdownGenerator) Generate(report *Report, w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", report.Title)
	fmt.Fprintf(&b, "- Target: `%s`\n", report.TargetURL)
	fmt.Fprintf(&b, "- Run: `%s`\n", report.RunID)
	fmt.Fprintf(&b, "- Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	s := report.Statistics
	b.WriteString("## Statistics\n\n")
	b.WriteString("| Requests | Shown | Filtered | Patterns | Duration |\n")
	b.WriteString("|---|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d | %s |\n\n",
		s.TotalResults, s.VisibleResults, s.HiddenResults, s.UniquePatterns, s.Duration)

	if len(s.AttackCounts) > 0 {
		b.WriteString("| Attack | Requests |\n|---|---|\n")
		attacks := make([]string, 0, len(s.AttackCounts))
		for a := range s.AttackCounts {
			attacks = append(attacks, a)
		}
		slices.Sort(attacks)
		for _, a := range attacks {
			fmt.Fprintf(&b, "| %s | %d |\n", a, s.AttackCounts[a])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## Findings (%d)\n\n", len(report.Findings))
	if len(report.Findings) == 0 {
		b.WriteString("No results passed the filters.\n")
	} else {
		b.WriteString("| # | Attack | Payload | Status | Length | Severity |\n")
		b.WriteString("|---|---|---|---|---|---|\n")
		for _, f := range report.Findings {
			fmt.Fprintf(&b, "| %d | %s | `%s` | %d | %d | %s |\n",
				f.ID, f.AttackType, escapeCell(f.Payload), f.StatusCode, f.ContentLength, f.Severity)
		}
	}

	if len(report.Patterns) > 0 {
		b.WriteString("\n## Response Patterns\n\n")
		b.WriteString("| Status | Length | Type | Seen | Shown |\n|---|---|---|---|---|\n")
		for _, p := range report.Patterns {
			fmt.Fprintf(&b, "| %d | %d | %s | %d | %d |\n", p.StatusCode, p.ContentLength, p.ContentType, p.Count, p.Shown)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// Extension returns the file extension
func (g *MarkdownGenerator) Extension() string {
	return "md"
}

func escapeCell(s string) string {
	return strings.NewReplacer("|", `\|`, "`", "'", "\n", " ").Replace(s)
}
