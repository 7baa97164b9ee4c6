package payload

import (
	"math/rand/v2"
	"strings"
	"unicode"
)

// RandomCase returns s with every letter independently upper- or lower-cased.
func RandomCase(rng *rand.Rand, s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) {
			if rng.IntN(2) == 0 {
				r = unicode.ToUpper(r)
			} else {
				r = unicode.ToLower(r)
			}
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CaseVariants returns the original plus up to n-1 distinct random-case variants.
// It gives up after a bounded number of draws, so short inputs with few
// letters may yield fewer than n entries.
func CaseVariants(rng *rand.Rand, s string, n int) []string {
	out := []string{s}
	seen := map[string]bool{s: true}
	for tries := 0; len(out) < n && tries < n*10; tries++ {
		v := RandomCase(rng, s)
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

// CapitalizeName turns "admin=true" into "Admin=true".
func CapitalizeName(param string) string {
	name, value, ok := strings.Cut(param, "=")
	if !ok || name == "" {
		return param
	}
	return strings.ToUpper(name[:1]) + strings.ToLower(name[1:]) + "=" + value
}

// UpperName turns "admin=true" into "ADMIN=true".
func UpperName(param string) string {
	name, value, ok := strings.Cut(param, "=")
	if !ok || name == "" {
		return param
	}
	return strings.ToUpper(name) + "=" + value
}

// NewRand returns a generator seeded from the runtime source.
func NewRand() *rand.Rand {
	return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
}
