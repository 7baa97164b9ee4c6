package attack

import (
	"context"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

// Header adds templated headers such as X-Forwarded-For: {IP}.
type Header struct{}

func (Header) Tag() string { return TagHeader }

func (Header) Execute(ctx context.Context, env *Env) {
	t := payload.HeaderTemplater{TargetURL: env.TargetURL(), OOB: env.OOB}
	headers := t.Expand(env.load(payload.HeaderTemplates), env.load(payload.IPs))

	muts := make([]mutation, 0, len(headers))
	for _, h := range headers {
		req := env.Baseline
		if h.PathSwap {
			req = req.WithTarget("/")
		}
		muts = append(muts, mutation{
			payload: h.Describe(),
			req:     req.WithAddedHeader(h.Name, h.Value),
		})
	}
	env.runAll(ctx, "Header", muts, 100)
}
