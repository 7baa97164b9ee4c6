package attack

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// param is one name/value pair as it appears in the request.
type param struct {
	Name  string
	Value string
}

type bodyKind int

const (
	bodyNone bodyKind = iota
	bodyForm
	bodyJSON
	bodyXML
	bodyMultipart
)

const (
	formContentType      = "application/x-www-form-urlencoded"
	jsonContentType      = "application/json"
	xmlContentType       = "application/xml"
	multipartContentType = "multipart/form-data"
)

func kindOf(contentType string) bodyKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, formContentType):
		return bodyForm
	case strings.Contains(ct, jsonContentType):
		return bodyJSON
	case strings.Contains(ct, xmlContentType), strings.Contains(ct, "text/xml"):
		return bodyXML
	case strings.Contains(ct, multipartContentType):
		return bodyMultipart
	}
	return bodyNone
}

// splitPairs splits "a=1&b=2" without decoding. Pairs without a name are dropped.
func splitPairs(s string) []param {
	var out []param
	for _, pair := range strings.Split(s, "&") {
		name, value, _ := strings.Cut(pair, "=")
		if name == "" {
			continue
		}
		out = append(out, param{Name: name, Value: value})
	}
	return out
}

func joinPairs(params []param) string {
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = p.Name + "=" + p.Value
	}
	return strings.Join(parts, "&")
}

func queryParams(req *types.Request) []param {
	return splitPairs(req.RawQuery())
}

// bodyParams extracts top-level parameters from a form, JSON, XML or
// multipart body. Anything else yields nothing.
func bodyParams(req *types.Request) []param {
	if len(req.Body) == 0 {
		return nil
	}
	switch kindOf(req.ContentType()) {
	case bodyForm:
		return splitPairs(string(req.Body))
	case bodyJSON:
		return jsonParams(req.Body)
	case bodyXML:
		return xmlParams(req.Body)
	case bodyMultipart:
		return multipartParams(req.Body, req.ContentType())
	}
	return nil
}

func jsonParams(body []byte) []param {
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return nil
	}
	var out []param
	res.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() || value.IsArray() {
			return true
		}
		out = append(out, param{Name: key.String(), Value: value.String()})
		return true
	})
	return out
}

var xmlElement = regexp.MustCompile(`<([a-zA-Z][a-zA-Z0-9_:-]*)>([^<]+)</([a-zA-Z][a-zA-Z0-9_:-]*)>`)

func xmlParams(body []byte) []param {
	var out []param
	for _, m := range xmlElement.FindAllSubmatch(body, -1) {
		if !bytes.Equal(m[1], m[3]) {
			continue
		}
		out = append(out, param{Name: string(m[1]), Value: strings.TrimSpace(string(m[2]))})
	}
	return out
}

func multipartParams(body []byte, contentType string) []param {
	_, ps, err := mime.ParseMediaType(contentType)
	if err != nil || ps["boundary"] == "" {
		return nil
	}
	r := multipart.NewReader(bytes.NewReader(body), ps["boundary"])
	var out []param
	for {
		part, err := r.NextPart()
		if err != nil {
			return out
		}
		if part.FileName() == "" && part.FormName() != "" {
			value, _ := io.ReadAll(io.LimitReader(part, 1<<16))
			out = append(out, param{Name: part.FormName(), Value: string(value)})
		}
		part.Close()
	}
}

// decodedParams returns params with names and values URL-decoded where possible.
func decodedParams(params []param) []param {
	out := make([]param, len(params))
	for i, p := range params {
		out[i] = param{Name: unescape(p.Name), Value: unescape(p.Value)}
	}
	return out
}

func unescape(s string) string {
	if u, err := url.QueryUnescape(s); err == nil {
		return u
	}
	return s
}

// replaceQueryParam rewrites the first query pair named name.
func replaceQueryParam(req *types.Request, name string, with param) *types.Request {
	params := queryParams(req)
	for i, p := range params {
		if p.Name == name {
			params[i] = with
			return req.WithTarget(req.Path() + "?" + joinPairs(params))
		}
	}
	return req
}

// replaceBodyParam rewrites the parameter named name in the body, keeping
// the body's format.
func replaceBodyParam(req *types.Request, name string, with param) *types.Request {
	body := string(req.Body)
	q := regexp.QuoteMeta(name)
	switch kindOf(req.ContentType()) {
	case bodyForm:
		params := splitPairs(body)
		for i, p := range params {
			if p.Name == name {
				params[i] = with
				return req.WithBody([]byte(joinPairs(params)))
			}
		}
		return req
	case bodyJSON:
		re := regexp.MustCompile(`"` + q + `"\s*:\s*("(?:[^"\\]|\\.)*"|[^,}\]\s]+)`)
		body = replaceFirst(re, body, `"`+jsonEscape(with.Name)+`": "`+jsonEscape(with.Value)+`"`)
	case bodyXML:
		re := regexp.MustCompile(`<` + q + `>[^<]*</` + q + `>`)
		body = replaceFirst(re, body, "<"+with.Name+">"+with.Value+"</"+with.Name+">")
	case bodyMultipart:
		re := regexp.MustCompile(`name="` + q + `"(\r?\n[^\r\n]*)*?\r?\n\r?\n[^\r\n]*`)
		body = replaceFirstFunc(re, body, func(m string) string {
			head := m[:strings.LastIndexByte(m, '\n')+1]
			return strings.Replace(head, `name="`+name+`"`, `name="`+with.Name+`"`, 1) + with.Value
		})
	default:
		return req
	}
	return req.WithBody([]byte(body))
}

func replaceFirst(re *regexp.Regexp, s, repl string) string {
	return replaceFirstFunc(re, s, func(string) string { return repl })
}

func replaceFirstFunc(re *regexp.Regexp, s string, fn func(string) string) string {
	loc := re.FindStringIndex(s)
	if loc == nil {
		return s
	}
	return s[:loc[0]] + fn(s[loc[0]:loc[1]]) + s[loc[1]:]
}

func jsonEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`, "\t", `\t`)
	return r.Replace(s)
}
