package attack

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// Encoding limits.
const (
	MaxEncodedPathLength  = 50
	MaxEncodedParamLength = 100
	EncodedPathVariants   = 5
)

// Encodings are the character encodings tried, in order.
var Encodings = []string{
	"url", "double-url", "triple-url", "unicode", "unicode-long", "unicode-overflow",
}

// Encoding re-encodes random characters of the path and of every
// parameter name and value.
type Encoding struct{}

func (Encoding) Tag() string { return TagEncoding }

func (Encoding) Execute(ctx context.Context, env *Env) {
	if env.skipRoot("Encoding") {
		return
	}
	if n := len(env.Baseline.Path()); n > MaxEncodedPathLength {
		env.Log.Info("attack skipped on long path", "attack", "Encoding", "length", n, "max", MaxEncodedPathLength)
		return
	}
	env.runAll(ctx, "Encoding", encodingMutations(env.Rand, env.Baseline), 0)
}

func encodingMutations(rng *rand.Rand, base *types.Request) []mutation {
	path, query := base.Path(), base.RawQuery()

	var muts []mutation
	for _, enc := range Encodings {
		for i := range EncodedPathVariants {
			encoded := encodeRandom(rng, path, enc)
			target := encoded
			if query != "" {
				target += "?" + query
			}
			muts = append(muts, mutation{
				payload: fmt.Sprintf("Path %s #%d: %s", enc, i+1, encoded),
				req:     base.WithTarget(target),
			})
		}
	}

	type located struct {
		param
		body bool
	}
	var params []located
	for _, p := range queryParams(base) {
		params = append(params, located{p, false})
	}
	for _, p := range bodyParams(base) {
		params = append(params, located{p, true})
	}

	for _, enc := range Encodings {
		for _, p := range params {
			if len(p.Name) > MaxEncodedParamLength || len(p.Value) > MaxEncodedParamLength {
				continue
			}
			where, replace := "query", replaceQueryParam
			if p.body {
				where, replace = "body", replaceBodyParam
			}

			name := encodeRandom(rng, p.Name, enc)
			muts = append(muts, mutation{
				payload: fmt.Sprintf("Param name %s (%s): %s → %s", enc, where, p.Name, name),
				req:     replace(base, p.Name, param{Name: name, Value: p.Value}),
			})

			value := encodeRandom(rng, p.Value, enc)
			muts = append(muts, mutation{
				payload: fmt.Sprintf("Param value %s (%s): %s=%s", enc, where, p.Name, value),
				req:     replace(base, p.Name, param{Name: p.Name, Value: value}),
			})
		}
	}
	return muts
}

// encodeRandom picks max(1, len/3) positions of s and encodes those that
// hold an alphanumeric, '-', '_' or '.'.
func encodeRandom(rng *rand.Rand, s, encoding string) string {
	if s == "" {
		return s
	}
	k := max(1, len(s)/3)
	picked := make(map[int]bool, k)
	for _, i := range rng.Perm(len(s))[:k] {
		picked[i] = true
	}

	out := make([]byte, 0, len(s)*3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if picked[i] && encodable(c) {
			out = append(out, encodeChar(c, encoding)...)
			continue
		}
		out = append(out, c)
	}
	return string(out)
}

func encodable(c byte) bool {
	return 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' ||
		c == '-' || c == '_' || c == '.'
}

func encodeChar(c byte, encoding string) string {
	switch encoding {
	case "url":
		return fmt.Sprintf("%%%02X", c)
	case "double-url":
		return fmt.Sprintf("%%25%02X", c)
	case "triple-url":
		return fmt.Sprintf("%%2525%02X", c)
	case "unicode":
		return fmt.Sprintf("%%u%04x", c)
	case "unicode-long":
		return fmt.Sprintf("\\u%04x", c)
	case "unicode-overflow":
		// truncates back to c when stored as a single byte
		return fmt.Sprintf("%%u%04x", 0x4e00+int(c))
	}
	return string(c)
}
