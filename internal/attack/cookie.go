package attack

import (
	"context"
	"strings"

	"github.com/fluxfuzzer/bypassfuzzer/internal/payload"
)

// CookieFuzzValues replace the values of cookies already on the baseline.
var CookieFuzzValues = []string{
	"true", "1", "yes", "on", "admin", "root", "false", "0", "no", "off",
}

// Cookie injects privilege parameters through the Cookie header. With
// FuzzExisting set, cookies already present are first retried with
// CookieFuzzValues.
type Cookie struct {
	FuzzExisting bool
}

func (Cookie) Tag() string { return TagCookie }

func (c Cookie) Execute(ctx context.Context, env *Env) {
	existing, _ := env.Baseline.HeaderValue("Cookie")
	existing = strings.TrimSpace(existing)

	var muts []mutation
	if c.FuzzExisting {
		muts = append(muts, existingCookieMutations(env, existing)...)
	}
	for _, p := range cookieParams(env, env.load(payload.Params)) {
		req := env.Baseline.WithAddedHeader("Cookie", p)
		if existing != "" {
			req = env.Baseline.WithUpdatedHeader("Cookie", existing+"; "+p)
		}
		muts = append(muts, mutation{payload: p, req: req})
	}
	env.runAll(ctx, "Cookie", muts, 0)
}

func existingCookieMutations(env *Env, header string) []mutation {
	cookies := parseCookies(header)
	var muts []mutation
	for i, target := range cookies {
		for _, v := range CookieFuzzValues {
			next := make([]string, len(cookies))
			for j, c := range cookies {
				if j == i {
					c.Value = v
				}
				next[j] = c.Name + "=" + c.Value
			}
			muts = append(muts, mutation{
				payload: target.Name + "=" + v,
				req:     env.Baseline.WithUpdatedHeader("Cookie", strings.Join(next, "; ")),
				kind:    "Cookie (Existing)",
			})
		}
	}
	return muts
}

// parseCookies splits a Cookie header into name/value pairs in order.
// Pairs without a name are dropped.
func parseCookies(header string) []param {
	var out []param
	for _, pair := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		out = append(out, param{Name: name, Value: strings.TrimSpace(value)})
	}
	return out
}

// cookieParams returns each base parameter with its capitalized, upper-cased
// and random-case forms, without repeats.
func cookieParams(env *Env, base []string) []string {
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
		add(payload.CapitalizeName(p))
		add(payload.UpperName(p))
		for range ParamCaseClones {
			add(payload.RandomCase(env.Rand, p))
		}
	}
	return out
}
