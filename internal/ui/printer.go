package ui

import (
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fluxfuzzer/bypassfuzzer/internal/analyzer"
	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// MaxPayloadWidth caps the payload column.
const MaxPayloadWidth = 120

// Printer records results into a ResultLog and prints the visible ones,
// one line each.
type Printer struct {
	mu     sync.Mutex
	w      io.Writer
	log    *analyzer.ResultLog
	styled bool

	printed int
}

// NewPrinter writes to w. Styling is applied only when styled is set.
func NewPrinter(w io.Writer, log *analyzer.ResultLog, styled bool) *Printer {
	return &Printer{w: w, log: log, styled: styled}
}

// Accept stores r and prints it when it passes the filters.
func (p *Printer) Accept(r *types.AttackResult) {
	p.log.Accept(r)
	if !p.log.Visible(r) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, p.Line(r))
	p.printed++
}

// Printed returns how many lines were written.
func (p *Printer) Printed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.printed
}

// Line formats one result as "#id attack status length type payload".
func (p *Printer) Line(r *types.AttackResult) string {
	id := fmt.Sprintf("#%-5d", r.ID)
	status := strconv.Itoa(r.StatusCode)
	length := fmt.Sprintf("%8d", r.ContentLength)
	payload := truncate(r.Payload, MaxPayloadWidth)
	ctype := r.ContentType
	if ctype == "" {
		ctype = "-"
	}

	if !p.styled {
		return fmt.Sprintf("%s %-18s %-4s %s %-24s %s", id, r.AttackType, status, length, ctype, payload)
	}

	line := DimStyle.Render(id) + " " +
		AttackStyle.Render(r.AttackType) + " " +
		StatusStyle(r.StatusCode).Render(status) + " " +
		ValueStyle.Render(length) + " " +
		DimStyle.Width(24).Render(ctype) + " " +
		PayloadStyle.Render(payload)
	if c := p.log.Highlights.Get(r); c != analyzer.NoColor {
		line = HighlightStyle(c).Render("●") + " " + line
	}
	return line
}

// Summary prints end-of-run totals.
func (p *Printer) Summary(elapsed time.Duration) {
	total := p.log.Len()
	shown := len(p.log.View(analyzer.NoColor))

	rows := []string{
		RenderLabelValue("Requests", strconv.Itoa(total)),
		RenderLabelValue("Shown", strconv.Itoa(shown)),
		RenderLabelValue("Filtered", strconv.Itoa(total-shown)),
		RenderLabelValue("Duration", elapsed.Round(time.Millisecond).String()),
	}
	if p.log.Smart != nil {
		rows = append(rows, RenderLabelValue("Smart filter", p.log.Smart.Statistics()))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.styled {
		fmt.Fprintf(p.w, "requests=%d shown=%d filtered=%d duration=%s\n",
			total, shown, total-shown, elapsed.Round(time.Millisecond))
		return
	}
	body := lipgloss.JoinVertical(lipgloss.Left, rows...)
	fmt.Fprintln(p.w, SummaryStyle.Render(TitleStyle.Render("Summary")+"\n"+body))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
