package payload

import (
	"strings"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// Header template placeholders.
const (
	PlaceholderIP         = "{IP}"
	PlaceholderURL        = "{URL}"
	PlaceholderPath       = "{PATH}"
	PlaceholderPathSwap   = "{PATH_SWAP}"
	PlaceholderOOB        = "{OOB}"
	PlaceholderOOBDomain  = "{OOB_DOMAIN}"
	PlaceholderWhitespace = "{WHITESPACE}"
)

var legacyPlaceholders = strings.NewReplacer(
	"{IP PAYLOAD}", PlaceholderIP,
	"{URL PAYLOAD}", PlaceholderURL,
	"{PATH PAYLOAD}", PlaceholderPath,
	"{PATH SWAP}", PlaceholderPathSwap,
	"{OOB DOMAIN PAYLOAD}", PlaceholderOOBDomain,
	"{OOB PAYLOAD}", PlaceholderOOB,
	"{WHITESPACE PAYLOAD}", PlaceholderWhitespace,
)

// OOBProvider hands out out-of-band interaction domains.
// Domain returns false when no domain is available.
type OOBProvider interface {
	Domain() (string, bool)
}

// StaticOOB is an OOBProvider that always returns the same domain.
// A scheme prefix on the configured value is stripped.
type StaticOOB string

func (s StaticOOB) Domain() (string, bool) {
	d := strings.TrimPrefix(strings.TrimPrefix(string(s), "http://"), "https://")
	d, _, _ = strings.Cut(d, "/")
	return d, d != ""
}

// HeaderPayload is one header to add to the baseline.
type HeaderPayload struct {
	Name     string
	Value    string
	PathSwap bool // send with request-target "/"
}

// Describe renders the payload the way results display it.
func (h HeaderPayload) Describe() string {
	if h.PathSwap {
		return h.Name + ": " + h.Value + " (path→/)"
	}
	return h.Name + ": " + h.Value
}

// HeaderTemplater expands header templates against one target.
type HeaderTemplater struct {
	TargetURL string
	OOB       OOBProvider // may be nil
}

// Expand substitutes placeholders in every template.
//
// Only the first placeholder kind found is substituted, checked in the order
// IP, whitespace, URL, path, path swap, OOB, OOB domain. An IP template yields
// one header per IP; an OOB template yields an http:// and an https:// variant
// and is dropped when no OOB domain is available. Lines without a colon are
// skipped.
func (t HeaderTemplater) Expand(templates, ips []string) []HeaderPayload {
	path := types.SplitURLPath(t.TargetURL)
	var out []HeaderPayload
	add := func(line string, swap bool) {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return
		}
		v := strings.TrimSpace(value)
		if v == "" && value != "" {
			// a whitespace-only value is the payload itself
			v = " "
		}
		out = append(out, HeaderPayload{
			Name:     strings.TrimSpace(name),
			Value:    v,
			PathSwap: swap,
		})
	}

	for _, tmpl := range templates {
		tmpl = legacyPlaceholders.Replace(tmpl)
		switch {
		case strings.Contains(tmpl, PlaceholderIP):
			for _, ip := range ips {
				add(strings.ReplaceAll(tmpl, PlaceholderIP, ip), false)
			}
		case strings.Contains(tmpl, PlaceholderWhitespace):
			add(strings.ReplaceAll(tmpl, PlaceholderWhitespace, " "), false)
		case strings.Contains(tmpl, PlaceholderURL):
			add(strings.ReplaceAll(tmpl, PlaceholderURL, t.TargetURL), false)
		case strings.Contains(tmpl, PlaceholderPath):
			add(strings.ReplaceAll(tmpl, PlaceholderPath, path), false)
		case strings.Contains(tmpl, PlaceholderPathSwap):
			add(strings.ReplaceAll(tmpl, PlaceholderPathSwap, path), true)
		case strings.Contains(tmpl, PlaceholderOOB):
			if domain, ok := t.oobDomain(); ok {
				add(strings.ReplaceAll(tmpl, PlaceholderOOB, "http://"+domain), false)
				add(strings.ReplaceAll(tmpl, PlaceholderOOB, "https://"+domain), false)
			}
		case strings.Contains(tmpl, PlaceholderOOBDomain):
			if domain, ok := t.oobDomain(); ok {
				add(strings.ReplaceAll(tmpl, PlaceholderOOBDomain, domain), false)
			}
		default:
			add(tmpl, false)
		}
	}
	return out
}

func (t HeaderTemplater) oobDomain() (string, bool) {
	if t.OOB == nil {
		return "", false
	}
	return t.OOB.Domain()
}
