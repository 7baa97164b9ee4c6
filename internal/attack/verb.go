package attack

import (
	"context"
	"strings"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// Methods tried by the verb strategy, in order.
var Methods = []string{
	"GET", "HEAD", "POST", "PUT", "DELETE", "CONNECT", "OPTIONS", "TRACE",
	"PATCH", "INVENTED", "HACK",
}

// OverrideHeaders carry a method the server may honor over the request line.
var OverrideHeaders = []string{
	"X-HTTP-Method-Override",
	"X-HTTP-Method",
	"X-Method-Override",
}

// Verb substitutes methods, adds override headers and relocates parameters
// between the query and the body.
type Verb struct{}

func (Verb) Tag() string { return TagVerb }

func (Verb) Execute(ctx context.Context, env *Env) {
	env.runAll(ctx, "Verb", verbMutations(env.Baseline), 0)
}

func verbMutations(base *types.Request) []mutation {
	var muts []mutation
	for _, m := range Methods {
		muts = append(muts, mutation{payload: "Method: " + m, req: base.WithMethod(m)})
	}
	for _, h := range OverrideHeaders {
		for _, m := range Methods {
			muts = append(muts, mutation{payload: h + ": " + m, req: base.WithAddedHeader(h, m)})
		}
	}
	for _, carrier := range []string{"POST", "PUT"} {
		for _, h := range OverrideHeaders {
			for _, m := range []string{"GET", "DELETE", "PATCH"} {
				muts = append(muts, mutation{
					payload: carrier + " + " + h + ": " + m,
					req:     base.WithMethod(carrier).WithAddedHeader(h, m),
				})
			}
		}
	}
	for _, m := range []string{"POST", "PUT", "PATCH"} {
		muts = append(muts, relocations(base, m)...)
	}
	return muts
}

// relocations moves the raw parameter string between query and body.
func relocations(base *types.Request, method string) []mutation {
	path, query := base.Path(), base.RawQuery()
	body := string(base.Body)
	form := func(r *types.Request) *types.Request {
		return r.WithUpdatedHeader("Content-Type", formContentType)
	}

	var muts []mutation
	if query != "" {
		muts = append(muts, mutation{
			payload: method + ": query→body",
			req:     form(base.WithMethod(method).WithTarget(path).WithBody([]byte(query))),
		})
	}
	if body != "" {
		target := path + "?" + body
		if query != "" {
			target += "&" + query
		}
		muts = append(muts, mutation{
			payload: method + ": body→query",
			req:     base.WithMethod(method).WithTarget(target).WithBody(nil).WithoutHeader("Content-Type"),
		})
	}
	if query != "" || body != "" {
		combined := strings.Trim(query+"&"+body, "&")
		muts = append(muts, mutation{
			payload: method + ": query+body",
			req:     form(base.WithMethod(method).WithTarget(path + "?" + combined).WithBody([]byte(combined))),
		})
	}
	return muts
}
