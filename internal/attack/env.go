package attack

import (
	"context"
	"errors"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// mutation is one planned attempt.
type mutation struct {
	payload string
	req     *types.Request
	kind    string // overrides the strategy's attack type when set
}

// attempt paces, sends and emits one mutation. It returns false when the
// strategy has to stop: the run was cancelled or the capability is gone.
func (e *Env) attempt(ctx context.Context, attackType string, m mutation) bool {
	if m.kind != "" {
		attackType = m.kind
	}
	if e.Lost() || !e.ShouldContinue() {
		return false
	}
	if e.Pacer != nil {
		if err := e.Pacer.Wait(ctx); err != nil {
			return false
		}
	}

	resp, err := e.Sender.Send(ctx, m.req)
	switch {
	case errors.Is(err, types.ErrCapabilityLost):
		e.lost.Store(true)
		e.Log.Error("send capability lost", err, "attack", attackType)
		return false
	case err != nil:
		e.Log.Error("attempt failed", err, "attack", attackType, "payload", m.payload)
		return true
	}

	e.Emit(types.NewAttackResult(attackType, m.payload, m.req, resp))
	return true
}

// runAll sends muts in order. progressEvery > 0 logs progress at that
// interval. It returns the number of attempts made.
func (e *Env) runAll(ctx context.Context, attackType string, muts []mutation, progressEvery int) int {
	total := len(muts)
	e.Log.Info("attack started", "attack", attackType, "requests", total)

	count := 0
	for _, m := range muts {
		if progressEvery > 0 && count > 0 && count%progressEvery == 0 {
			e.Log.Info("attack progress", "attack", attackType, "sent", count, "total", total)
		}
		if !e.attempt(ctx, attackType, m) {
			e.Log.Info("attack stopped", "attack", attackType, "completed", count, "total", total)
			return count
		}
		count++
	}

	e.Log.Info("attack completed", "attack", attackType, "sent", count)
	return count
}

// load fetches a payload list, falling back to built-ins with a log line.
func (e *Env) load(name string) []string {
	lines, err := payload.Load(e.Payloads, name)
	if err != nil {
		e.Log.Warn("using built-in payloads", "list", name, "reason", err.Error())
	}
	return lines
}

// isRoot reports whether the baseline targets "/".
func (e *Env) isRoot() bool {
	return e.Baseline.Path() == "/"
}

func (e *Env) skipRoot(attackType string) bool {
	if e.isRoot() {
		e.Log.Info("attack skipped on root path", "attack", attackType)
		return true
	}
	return false
}
