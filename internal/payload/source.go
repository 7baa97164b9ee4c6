// Package payload loads payload lists and expands them into concrete mutations.
package payload

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// List names understood by every Source.
const (
	HeaderTemplates = "header_payload_templates.txt"
	IPs             = "ip_payloads.txt"
	URLs            = "url_payloads.txt"
	Params          = "param_payloads.txt"
	Extensions      = "extension_payloads.txt"
)

// ErrNotFound is returned when a Source has no list with the requested name.
var ErrNotFound = errors.New("payload list not found")

// Source supplies payload lists by name.
type Source interface {
	Lines(name string) ([]string, error)
}

//go:embed defaults/*.txt
var defaultFS embed.FS

// Defaults returns the lists bundled with the binary.
func Defaults() Source {
	sub, _ := fs.Sub(defaultFS, "defaults")
	return FSSource{FS: sub}
}

// FSSource reads lists from a file system.
type FSSource struct {
	FS fs.FS
}

func (s FSSource) Lines(name string) ([]string, error) {
	data, err := fs.ReadFile(s.FS, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return ParseLines(string(data)), nil
}

// DirSource reads lists from files in a directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Lines(name string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read payload list %s: %w", name, err)
	}
	return ParseLines(string(data)), nil
}

// MapSource serves lists held in memory, typically from a config file.
type MapSource map[string][]string

func (s MapSource) Lines(name string) ([]string, error) {
	lines, ok := s[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return ParseLines(strings.Join(lines, "\n")), nil
}

// Chain asks each source in turn and returns the first list found.
type Chain []Source

func (c Chain) Lines(name string) ([]string, error) {
	for _, s := range c {
		if s == nil {
			continue
		}
		lines, err := s.Lines(name)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return lines, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// ParseLines splits text into trimmed lines, dropping blanks and # comments.
func ParseLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}

// Fallback lists used when a source cannot supply one.
var fallbacks = map[string][]string{
	HeaderTemplates: {"X-Forwarded-For: {IP}", "X-Original-URL: {PATH}", "X-Rewrite-URL: {PATH}"},
	IPs:             {"127.0.0.1", "localhost"},
	URLs:            {"/", "//", "./", "..;/", "%2e/"},
	Params:          {"debug=true", "debug=1", "admin=true", "admin=1"},
	Extensions:      {".json", ".html", ".php"},
}

// Load returns the named list from src, or the built-in fallback when src
// fails or returns nothing. The error, if any, is returned alongside so the
// caller can log it.
func Load(src Source, name string) ([]string, error) {
	if src == nil {
		return fallback(name), nil
	}
	lines, err := src.Lines(name)
	if err != nil || len(lines) == 0 {
		return fallback(name), err
	}
	return lines, nil
}

func fallback(name string) []string {
	return append([]string(nil), fallbacks[name]...)
}
