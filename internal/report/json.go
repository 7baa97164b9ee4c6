package report

import (
	"encoding/json"
	"io"
)

// JSONGenerator writes the report as one JSON document, or with Lines set
// as one finding per line for piping into jq and similar tools.
type JSONGenerator struct {
	Indent bool
	Lines  bool
}

func (g *JSONGenerator) Generate(report *Report, w io.Writer) error {
	enc := json.NewEncoder(w)
	// keep payload markup readable
	enc.SetEscapeHTML(false)

	if g.Lines {
		for _, f := range report.Findings {
			if err := enc.Encode(f); err != nil {
				return err
			}
		}
		return nil
	}
	if g.Indent {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(report)
}

func (g *JSONGenerator) Extension() string {
	if g.Lines {
		return "jsonl"
	}
	return "json"
}
