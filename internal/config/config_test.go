package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxfuzzer/bypassfuzzer/internal/attack"
	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default config should validate: %v", err)
	}
	if len(cfg.Attacks) != len(attack.Tags()) {
		t.Errorf("Expected all %d attacks enabled, got %d", len(attack.Tags()), len(cfg.Attacks))
	}
	if cfg.Filter.SmartRepeats != 10 {
		t.Errorf("Expected smart repeats 10, got %d", cfg.Filter.SmartRepeats)
	}
	if cfg.Engine.ProtocolTimeout != 5*time.Second {
		t.Errorf("Expected protocol timeout 5s, got %v", cfg.Engine.ProtocolTimeout)
	}
	if !cfg.Rate.AutoThrottle {
		t.Error("Expected auto throttle on by default")
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
target:
  url: https://example.com/admin
  method: post
  headers:
    - "Cookie: sid=1"
attacks: [header, Verb, header]
rate:
  rps: 5
  max_delay: 3s
engine:
  timeout: 2s
payloads:
  fuzz_existing_cookies: true
  overrides:
    ip_payloads.txt: ["1.2.3.4"]
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Rate.RPS != 5 || cfg.Rate.MaxDelay != 3*time.Second {
		t.Errorf("Unexpected rate config %+v", cfg.Rate)
	}
	if cfg.Engine.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %v", cfg.Engine.Timeout)
	}
	if cfg.Engine.CleanupWait != 2*time.Second {
		t.Error("Unset fields should keep their defaults")
	}
	if got := cfg.EnabledAttacks(); len(got) != 2 || got[0] != "header" || got[1] != "verb" {
		t.Errorf("Expected [header verb], got %v", got)
	}
	if !cfg.Payloads.FuzzExistingCookies {
		t.Error("Expected fuzz_existing_cookies to be set")
	}

	req, err := cfg.Baseline()
	if err != nil {
		t.Fatalf("Baseline failed: %v", err)
	}
	if req.Method != "POST" || req.URL != "https://example.com/admin" {
		t.Errorf("Unexpected baseline %s %s", req.Method, req.URL)
	}
	if v, _ := req.HeaderValue("cookie"); v != "sid=1" {
		t.Errorf("Expected cookie sid=1, got %q", v)
	}

	lines, err := cfg.PayloadSource().Lines(payload.IPs)
	if err != nil || len(lines) != 1 || lines[0] != "1.2.3.4" {
		t.Errorf("Expected override list, got %v (%v)", lines, err)
	}
	if _, err := cfg.PayloadSource().Lines(payload.HeaderTemplates); err != nil {
		t.Errorf("Expected built-in fallback, got %v", err)
	}
}

func TestParseEmpty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Empty document should parse: %v", err)
	}
	if cfg.Target.Method != "GET" {
		t.Errorf("Expected default method GET, got %s", cfg.Target.Method)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		invalid bool
	}{
		{"unknown key", "target:\n  urll: x\n", false},
		{"unknown attack", "attacks: [header, smuggle]\n", true},
		{"negative rps", "rate:\n  rps: -1\n", true},
		{"no attacks", "attacks: []\n", true},
		{"bad format", "output:\n  format: xml\n", true},
		{"bad severity", "output:\n  severity: critical\n", true},
		{"length bounds", "filter:\n  min_length: 10\n  max_length: 5\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("Expected error")
			}
			if errors.Is(err, ErrInvalidConfig) != tt.invalid {
				t.Errorf("ErrInvalidConfig match: expected %v, got %v (%v)", tt.invalid, !tt.invalid, err)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("target:\n  url: http://x/a\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Target.URL != "http://x/a" {
		t.Errorf("Expected url http://x/a, got %s", cfg.Target.URL)
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestBaselineFromRawRequest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "req.txt")
	raw := "POST /admin?x=1 HTTP/1.1\r\nHost: example.com\r\nContent-Type: application/json\r\n\r\n{\"a\":1}"
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := DefaultConfig()
	cfg.Target.RawRequest = path
	cfg.Target.Secure = true
	req, err := cfg.Baseline()
	if err != nil {
		t.Fatalf("Baseline failed: %v", err)
	}
	if req.Method != "POST" || req.URL != "/admin?x=1" || !req.Secure {
		t.Errorf("Unexpected request %s %s secure=%v", req.Method, req.URL, req.Secure)
	}
	if string(req.Body) != `{"a":1}` {
		t.Errorf("Unexpected body %q", req.Body)
	}
}

func TestBaselineErrors(t *testing.T) {
	cfg := DefaultConfig()
	if _, err := cfg.Baseline(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig without a target, got %v", err)
	}

	cfg.Target.URL = "http://x/"
	cfg.Target.Headers = []string{"no colon"}
	if _, err := cfg.Baseline(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for a bad header, got %v", err)
	}
}

func TestOOB(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.OOB() != nil {
		t.Error("Expected no OOB provider by default")
	}
	cfg.Payloads.OOBDomain = "https://abc.oast.fun/x"
	d, ok := cfg.OOB().Domain()
	if !ok || d != "abc.oast.fun" {
		t.Errorf("Expected abc.oast.fun, got %q", d)
	}
}
