package attack

import (
	"context"
	"math/rand/v2"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

// Case strategy budgets. Variant counts shrink as path+query grows and the
// number of path×query combinations is capped.
const (
	CaseVariants        = 5 // per component, short targets
	CaseVariantsMedium  = 3 // path+query longer than CaseMediumLength
	CaseVariantsLong    = 2 // path+query longer than CaseLongLength
	CaseMediumLength    = 50
	CaseLongLength      = 100
	MaxCaseCombinations = 15
)

// Case sends the target with randomized letter case.
type Case struct{}

func (Case) Tag() string { return TagCase }

func (Case) Execute(ctx context.Context, env *Env) {
	targets := caseTargets(env.Rand, env.Baseline.Path(), env.Baseline.RawQuery())

	muts := make([]mutation, 0, len(targets))
	for _, t := range targets {
		muts = append(muts, mutation{payload: t, req: env.Baseline.WithTarget(t)})
	}
	env.runAll(ctx, "Case", muts, 0)
}

// caseVariantCount returns the per-component budget for a target of the
// given combined path and query length.
func caseVariantCount(length int) int {
	switch {
	case length > CaseLongLength:
		return CaseVariantsLong
	case length > CaseMediumLength:
		return CaseVariantsMedium
	}
	return CaseVariants
}

// caseTargets returns the original target and its case variants.
func caseTargets(rng *rand.Rand, path, query string) []string {
	n := caseVariantCount(len(path)+len(query)) + 1

	if path == "" {
		path = "/"
	}
	paths := payload.CaseVariants(rng, path, n)
	if query == "" {
		return paths
	}

	queries := payload.CaseVariants(rng, query, n)
	var out []string
	for _, p := range paths {
		for _, q := range queries {
			if len(out) == MaxCaseCombinations {
				return out
			}
			out = append(out, p+"?"+q)
		}
	}
	return out
}
