package attack

import (
	"context"
	"strings"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

// ParamCaseClones is how many random-case copies of each parameter are tried.
const ParamCaseClones = 3

// Param appends privilege parameters such as admin=true to the query.
type Param struct{}

func (Param) Tag() string { return TagParam }

func (Param) Execute(ctx context.Context, env *Env) {
	params := paramVariants(env, env.load(payload.Params))

	target := env.Baseline.Target()
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}

	muts := make([]mutation, 0, len(params))
	for _, p := range params {
		muts = append(muts, mutation{
			payload: p,
			req:     env.Baseline.WithTarget(target + sep + p),
		})
	}
	env.runAll(ctx, "Param", muts, 0)
}

// paramVariants returns each base parameter followed by its random-case
// clones, without repeats.
func paramVariants(env *Env, base []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range base {
		add(p)
		for range ParamCaseClones {
			add(payload.RandomCase(env.Rand, p))
		}
	}
	return out
}
