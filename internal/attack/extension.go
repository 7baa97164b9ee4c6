package attack

import (
	"context"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

// Extension appends file extensions to the path, before any query.
type Extension struct{}

func (Extension) Tag() string { return TagExtension }

func (Extension) Execute(ctx context.Context, env *Env) {
	if env.skipRoot("Extension") {
		return
	}
	path, query := env.Baseline.Path(), env.Baseline.RawQuery()

	var muts []mutation
	for _, ext := range env.load(payload.Extensions) {
		target := path + ext
		if query != "" {
			target += "?" + query
		}
		muts = append(muts, mutation{
			payload: path + ext,
			req:     env.Baseline.WithTarget(target),
		})
	}
	env.runAll(ctx, "Extension", muts, 20)
}
