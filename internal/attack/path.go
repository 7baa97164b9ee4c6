package attack

import (
	"context"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

// Path wraps every path segment in bypass fragments and appends suffixes.
type Path struct{}

func (Path) Tag() string { return TagPath }

func (Path) Execute(ctx context.Context, env *Env) {
	if env.skipRoot("Path") {
		return
	}
	targets := payload.PermuteTarget(env.Rand, env.Baseline.Target(), env.load(payload.URLs))

	origin := env.Baseline.Origin()
	muts := make([]mutation, 0, len(targets))
	for _, target := range targets {
		muts = append(muts, mutation{
			payload: origin + target,
			req:     env.Baseline.WithTarget(target),
		})
	}
	env.runAll(ctx, "Path", muts, 50)
}
