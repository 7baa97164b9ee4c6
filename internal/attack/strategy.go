// Package attack implements the mutation strategies run against a target.
//
// Every strategy derives new requests from an immutable baseline, waits on
// the shared pacer before each send, and emits one result per completed
// attempt. A strategy never panics or returns errors to its caller; failed
// attempts are logged and skipped, and a lost send capability ends it.
package attack

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// Strategy tags in canonical run order.
const (
	TagHeader        = "header"
	TagPath          = "path"
	TagVerb          = "verb"
	TagParam         = "param"
	TagTrailingDot   = "trailingdot"
	TagTrailingSlash = "trailingslash"
	TagProtocol      = "protocol"
	TagCase          = "case"
	TagCookie        = "cookie"
	TagExtension     = "extension"
	TagContentType   = "contenttype"
	TagEncoding      = "encoding"
)

var canonical = []string{
	TagHeader, TagPath, TagVerb, TagParam, TagTrailingDot, TagTrailingSlash,
	TagProtocol, TagCase, TagCookie, TagExtension, TagContentType, TagEncoding,
}

// Tags returns every strategy tag in canonical order.
func Tags() []string {
	return slices.Clone(canonical)
}

// IsKnown reports whether tag names a strategy. Case is ignored.
func IsKnown(tag string) bool {
	return slices.Contains(canonical, strings.ToLower(strings.TrimSpace(tag)))
}

// Sender is the capability to put one request on the wire.
type Sender interface {
	Send(ctx context.Context, req *types.Request) (*types.Response, error)
}

// Pacer delays sends. *ratelimit.Limiter implements it.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Runner executes a task under a hard time budget.
// *requester.TimeoutPool implements it.
type Runner interface {
	Run(ctx context.Context, timeout time.Duration, task func(ctx context.Context)) error
}

// Strategy is one family of mutations.
type Strategy interface {
	Tag() string
	Execute(ctx context.Context, env *Env)
}

// Env is everything a strategy needs for one run.
type Env struct {
	Sender         Sender
	Baseline       *types.Request // absolute URL
	Emit           func(*types.AttackResult)
	ShouldContinue func() bool
	Pacer          Pacer // nil = no pacing
	Log            *logging.Logger
	Payloads       payload.Source
	OOB            payload.OOBProvider // nil = OOB templates are dropped
	Rand           *rand.Rand

	lost atomic.Bool
}

// TargetURL returns the baseline URL.
func (e *Env) TargetURL() string {
	return e.Baseline.URL
}

// Lost reports whether the send capability failed permanently.
func (e *Env) Lost() bool {
	return e.lost.Load()
}

// Options configure strategy construction.
type Options struct {
	FuzzExistingCookies bool
	ProtocolTimeout     time.Duration
	Runner              Runner // required by the protocol strategy
}

// Build returns the strategies for tags, in canonical order. Unknown tags
// are an error; repeats are ignored.
func Build(tags []string, opts Options) ([]Strategy, error) {
	enabled := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if !IsKnown(t) {
			return nil, fmt.Errorf("unknown attack %q", t)
		}
		enabled[t] = true
	}

	var out []Strategy
	for _, tag := range canonical {
		if !enabled[tag] {
			continue
		}
		out = append(out, newStrategy(tag, opts))
	}
	return out, nil
}

// All returns every strategy in canonical order.
func All(opts Options) []Strategy {
	out := make([]Strategy, 0, len(canonical))
	for _, tag := range canonical {
		out = append(out, newStrategy(tag, opts))
	}
	return out
}

func newStrategy(tag string, opts Options) Strategy {
	switch tag {
	case TagHeader:
		return Header{}
	case TagPath:
		return Path{}
	case TagVerb:
		return Verb{}
	case TagParam:
		return Param{}
	case TagTrailingDot:
		return TrailingDot{}
	case TagTrailingSlash:
		return TrailingSlash{}
	case TagProtocol:
		return Protocol{Timeout: opts.ProtocolTimeout, Runner: opts.Runner}
	case TagCase:
		return Case{}
	case TagCookie:
		return Cookie{FuzzExisting: opts.FuzzExistingCookies}
	case TagExtension:
		return Extension{}
	case TagContentType:
		return ContentType{}
	case TagEncoding:
		return Encoding{}
	}
	panic("attack: no constructor for " + tag)
}
