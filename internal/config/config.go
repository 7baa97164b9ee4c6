// Package config handles configuration loading and management for bypassfuzzer.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fluxfuzzer/bypassfuzzer/internal/attack"
	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config represents the global configuration for a bypass run
type Config struct {
	Target   TargetConfig  `yaml:"target"`
	Attacks  []string      `yaml:"attacks"`
	Rate     RateConfig    `yaml:"rate"`
	Filter   FilterConfig  `yaml:"filter"`
	Payloads PayloadConfig `yaml:"payloads"`
	Engine   EngineConfig  `yaml:"engine"`
	Output   OutputConfig  `yaml:"output"`
}

// TargetConfig describes the baseline request
type TargetConfig struct {
	URL        string   `yaml:"url"`
	Method     string   `yaml:"method"`
	Headers    []string `yaml:"headers"` // "Name: value"
	Body       string   `yaml:"body"`
	RawRequest string   `yaml:"raw_request"` // path to a captured request
	Secure     bool     `yaml:"secure"`      // TLS hint for raw requests
}

// RateConfig controls pacing and adaptive backoff
type RateConfig struct {
	RPS           int           `yaml:"rps"` // 0 = unlimited
	ThrottleCodes []int         `yaml:"throttle_codes"`
	AutoThrottle  bool          `yaml:"auto_throttle"`
	MaxDelay      time.Duration `yaml:"max_delay"` // 0 = no ceiling
}

// FilterConfig controls which results are shown
type FilterConfig struct {
	Smart        bool   `yaml:"smart"`
	SmartRepeats int    `yaml:"smart_repeats"`
	HideStatus   []int  `yaml:"hide_status"`
	ShowStatus   []int  `yaml:"show_status"`
	MinLength    int    `yaml:"min_length"`
	MaxLength    int    `yaml:"max_length"` // 0 = no upper bound
	HideLengths  []int  `yaml:"hide_lengths"`
	ShowLengths  []int  `yaml:"show_lengths"`
	ContentType  string `yaml:"content_type"`
	Payload      string `yaml:"payload"`
}

// PayloadConfig locates payload lists
type PayloadConfig struct {
	Dir                 string              `yaml:"dir"`
	OOBDomain           string              `yaml:"oob_domain"`
	Overrides           map[string][]string `yaml:"overrides"` // list name -> lines
	FuzzExistingCookies bool                `yaml:"fuzz_existing_cookies"`
}

// EngineConfig defines the request engine configuration
type EngineConfig struct {
	Timeout         time.Duration `yaml:"timeout"`
	ProtocolTimeout time.Duration `yaml:"protocol_timeout"`
	StartGrace      time.Duration `yaml:"start_grace"`
	InterruptGrace  time.Duration `yaml:"interrupt_grace"`
	CleanupWait     time.Duration `yaml:"cleanup_wait"`
	Insecure        bool          `yaml:"insecure"`
	MaxConnsPerHost int           `yaml:"max_conns_per_host"`
}

// OutputConfig defines the output configuration
type OutputConfig struct {
	Format   string `yaml:"format"` // json, jsonl, html, markdown
	File     string `yaml:"file"`
	Dir      string `yaml:"dir"`      // timestamped report in this directory
	Template string `yaml:"template"` // html/template file replacing the built-in html report
	Severity string `yaml:"severity"` // report only this severity
	Attack   string `yaml:"attack"`   // report only this attack type
	Color    bool   `yaml:"color"`
	Quiet    bool   `yaml:"quiet"`
	Verbose  bool   `yaml:"verbose"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Target: TargetConfig{
			Method: "GET",
		},
		Attacks: attack.Tags(),
		Rate: RateConfig{
			RPS:           0,
			ThrottleCodes: []int{429, 503},
			AutoThrottle:  true,
		},
		Filter: FilterConfig{
			Smart:        true,
			SmartRepeats: 10,
			HideStatus:   []int{401, 403, 404},
		},
		Engine: EngineConfig{
			Timeout:         10 * time.Second,
			ProtocolTimeout: 5 * time.Second,
			StartGrace:      5 * time.Second,
			InterruptGrace:  2 * time.Second,
			CleanupWait:     2 * time.Second,
			MaxConnsPerHost: 16,
		},
		Output: OutputConfig{
			Format: "json",
			Color:  true,
		},
	}
}

// Load reads a YAML file over the defaults. Unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges and attack names.
func (c *Config) Validate() error {
	if c.Rate.RPS < 0 {
		return fmt.Errorf("%w: rps must be >= 0, got %d", ErrInvalidConfig, c.Rate.RPS)
	}
	if c.Rate.MaxDelay < 0 {
		return fmt.Errorf("%w: max_delay must be >= 0", ErrInvalidConfig)
	}
	if c.Filter.SmartRepeats < 1 {
		return fmt.Errorf("%w: smart_repeats must be >= 1, got %d", ErrInvalidConfig, c.Filter.SmartRepeats)
	}
	if c.Filter.MaxLength > 0 && c.Filter.MaxLength < c.Filter.MinLength {
		return fmt.Errorf("%w: max_length below min_length", ErrInvalidConfig)
	}
	if len(c.Attacks) == 0 {
		return fmt.Errorf("%w: no attacks enabled", ErrInvalidConfig)
	}
	for _, name := range c.Attacks {
		if !attack.IsKnown(name) {
			return fmt.Errorf("%w: unknown attack %q (known: %s)", ErrInvalidConfig, name, strings.Join(attack.Tags(), ", "))
		}
	}
	switch c.Output.Format {
	case "", "json", "jsonl", "html", "markdown":
	default:
		return fmt.Errorf("%w: unknown output format %q", ErrInvalidConfig, c.Output.Format)
	}
	switch c.Output.Severity {
	case "", "high", "medium", "low", "info":
	default:
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidConfig, c.Output.Severity)
	}
	return nil
}

// EnabledAttacks returns the enabled tags lower-cased and de-duplicated.
func (c *Config) EnabledAttacks() []string {
	var out []string
	for _, name := range c.Attacks {
		tag := strings.ToLower(strings.TrimSpace(name))
		if tag != "" && !slices.Contains(out, tag) {
			out = append(out, tag)
		}
	}
	return out
}

// Baseline builds the request to mutate, from the raw request file when
// one is configured and from the target fields otherwise.
func (c *Config) Baseline() (*types.Request, error) {
	if c.Target.RawRequest != "" {
		data, err := os.ReadFile(c.Target.RawRequest)
		if err != nil {
			return nil, fmt.Errorf("read raw request: %w", err)
		}
		return types.ParseRawRequest(data, c.Target.Secure)
	}
	if c.Target.URL == "" {
		return nil, fmt.Errorf("%w: target url or raw_request is required", ErrInvalidConfig)
	}

	req := &types.Request{
		Method: strings.ToUpper(c.Target.Method),
		URL:    c.Target.URL,
		Secure: c.Target.Secure,
	}
	if req.Method == "" {
		req.Method = "GET"
	}
	for _, line := range c.Target.Headers {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: header %q is not \"Name: value\"", ErrInvalidConfig, line)
		}
		req.Headers = append(req.Headers, types.Header{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)})
	}
	if c.Target.Body != "" {
		req.Body = []byte(c.Target.Body)
	}
	return req, nil
}

// PayloadSource layers inline overrides over the payload directory over
// the built-in lists.
func (c *Config) PayloadSource() payload.Source {
	var chain payload.Chain
	if len(c.Payloads.Overrides) > 0 {
		chain = append(chain, payload.MapSource(c.Payloads.Overrides))
	}
	if c.Payloads.Dir != "" {
		chain = append(chain, payload.DirSource{Dir: c.Payloads.Dir})
	}
	return append(chain, payload.Defaults())
}

// OOB returns the configured out-of-band domain provider, or nil.
func (c *Config) OOB() payload.OOBProvider {
	if c.Payloads.OOBDomain == "" {
		return nil
	}
	return payload.StaticOOB(c.Payloads.OOBDomain)
}
