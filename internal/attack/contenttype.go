package attack

import (
	"context"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// ContentType resends the request's parameters in each other body format.
// Methods that normally carry no body are switched to POST.
type ContentType struct{}

func (ContentType) Tag() string { return TagContentType }

func (ContentType) Execute(ctx context.Context, env *Env) {
	params := contentTypeParams(env.Baseline)
	if len(params) == 0 {
		env.Log.Info("attack skipped without parameters", "attack", "ContentType")
		return
	}

	base := env.Baseline
	switch strings.ToUpper(base.Method) {
	case "POST", "PUT", "PATCH":
	default:
		base = base.WithMethod("POST")
	}
	env.runAll(ctx, "ContentType", contentTypeMutations(base, params), 0)
}

// contentTypeParams takes body parameters, falling back to the query.
// Names are unique; the first occurrence wins.
func contentTypeParams(req *types.Request) []param {
	ps := bodyParams(req)
	if kindOf(req.ContentType()) == bodyForm {
		ps = decodedParams(ps)
	}
	if len(ps) == 0 {
		ps = decodedParams(queryParams(req))
	}

	seen := make(map[string]bool, len(ps))
	out := ps[:0]
	for _, p := range ps {
		if !seen[p.Name] {
			seen[p.Name] = true
			out = append(out, p)
		}
	}
	return out
}

func contentTypeMutations(base *types.Request, params []param) []mutation {
	current := kindOf(base.ContentType())
	with := func(ct string, body string) *types.Request {
		return base.WithUpdatedHeader("Content-Type", ct).WithBody([]byte(body))
	}

	var muts []mutation
	if current != bodyForm {
		muts = append(muts, mutation{
			payload: "Content-Type: URL-encoded",
			req:     with(formContentType, formBody(params)),
		})
	}
	if current != bodyJSON {
		muts = append(muts, mutation{
			payload: "Content-Type: JSON",
			req:     with(jsonContentType, jsonBody(params)),
		})
	}
	if current != bodyXML {
		muts = append(muts, mutation{
			payload: "Content-Type: XML",
			req:     with(xmlContentType, xmlBody(params)),
		})
	}
	if current != bodyMultipart {
		boundary := multipartBoundary()
		muts = append(muts, mutation{
			payload: "Content-Type: multipart/form-data",
			req:     with(multipartContentType+"; boundary="+boundary, multipartBody(params, boundary)),
		})
	}
	return muts
}

func formBody(params []param) string {
	v := make([]string, len(params))
	for i, p := range params {
		v[i] = url.QueryEscape(p.Name) + "=" + url.QueryEscape(p.Value)
	}
	return strings.Join(v, "&")
}

func jsonBody(params []param) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`"` + jsonEscape(p.Name) + `":"` + jsonEscape(p.Value) + `"`)
	}
	b.WriteByte('}')
	return b.String()
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&apos;")

func xmlBody(params []param) string {
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n<root>\n")
	for _, p := range params {
		name := xmlEscaper.Replace(p.Name)
		b.WriteString("  <" + name + ">" + xmlEscaper.Replace(p.Value) + "</" + name + ">\n")
	}
	b.WriteString("</root>")
	return b.String()
}

func multipartBoundary() string {
	return "----WebKitFormBoundary" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func multipartBody(params []param, boundary string) string {
	var b strings.Builder
	for _, p := range params {
		b.WriteString("--" + boundary + "\r\n")
		b.WriteString(`Content-Disposition: form-data; name="` + p.Name + "\"\r\n\r\n")
		b.WriteString(p.Value + "\r\n")
	}
	b.WriteString("--" + boundary + "--\r\n")
	return b.String()
}
