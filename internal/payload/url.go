package payload

import (
	"math/rand/v2"
	"strings"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// BaseSuffixes are appended to the last path segment.
var BaseSuffixes = []string{
	"?debug=true",
	"?admin=true",
	"?user=admin",
	"?detail=true",
	".html",
	"?.html",
	"%3f.html",
	".json",
	"?.json",
	"%3f.json",
	".php",
	"?.php",
	"%3f.php",
	"?wsdl",
	"/application.wadl?detail=true",
}

const (
	// SegmentCaseVariants is the number of random-case rewrites per segment.
	SegmentCaseVariants = 5
	// SuffixCaseClones is the number of random-case clones per base suffix.
	SuffixCaseClones = 3
)

// orderedSet keeps insertion order and drops repeats.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (s *orderedSet) add(v string) {
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}

// PathSegments splits a path into its non-empty segments.
func PathSegments(path string) []string {
	var segs []string
	for _, p := range strings.Split(path, "/") {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return segs
}

// Suffixes returns BaseSuffixes followed by their random-case clones, without repeats.
func Suffixes(rng *rand.Rand) []string {
	set := newOrderedSet()
	for _, s := range BaseSuffixes {
		set.add(s)
	}
	for _, s := range BaseSuffixes {
		for range SuffixCaseClones {
			set.add(RandomCase(rng, s))
		}
	}
	return set.items
}

// PermuteTarget builds request-targets from target by inserting each payload
// around every path segment, randomly re-casing segments and appending
// suffixes to the final segment.
//
// Targets whose last segment carries a suffix drop the original query; when
// that segment contains '?' or "%3f" an extra "path&query" target is added.
// Every other target keeps the original query. The result has no repeats and
// is empty for a root path.
func PermuteTarget(rng *rand.Rand, target string, payloads []string) []string {
	path, query := types.SplitTarget(target)
	segs := PathSegments(path)
	if len(segs) == 0 {
		return nil
	}

	paths := newOrderedSet()
	with := func(i int, seg string) string {
		next := append([]string(nil), segs...)
		next[i] = seg
		return strings.Join(next, "/")
	}
	for i, seg := range segs {
		for _, p := range payloads {
			paths.add(with(i, p+seg))
			paths.add(with(i, seg+p))
			paths.add(with(i, p+seg+p))
		}
		for range SegmentCaseVariants {
			paths.add(with(i, RandomCase(rng, seg)))
		}
	}

	suffixes := Suffixes(rng)
	last := len(segs) - 1
	for _, s := range suffixes {
		paths.add(with(last, segs[last]+s))
	}

	out := newOrderedSet()
	for _, p := range paths.items {
		lastSeg := p[strings.LastIndexByte(p, '/')+1:]
		if !containsAny(lastSeg, suffixes) {
			if query != "" {
				out.add("/" + p + "?" + query)
			} else {
				out.add("/" + p)
			}
			continue
		}
		out.add("/" + p)
		if query != "" && (strings.Contains(lastSeg, "?") || strings.Contains(strings.ToLower(lastSeg), "%3f")) {
			out.add("/" + p + "&" + query)
		}
	}
	return out.items
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
