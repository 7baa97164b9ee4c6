package types

import (
	"bytes"
	"strings"
)

// Request is an HTTP request as it will be written on the wire.
//
// URL is either absolute ("https://host:port/path?query") or origin-form
// ("/path?query"). Path and query text is kept exactly as given; nothing here
// normalizes dot segments or re-encodes characters.
//
// Requests are treated as immutable: every With method returns a copy.
type Request struct {
	Method   string   // Request method, sent verbatim
	URL      string   // Absolute or origin-form URL
	Protocol string   // Request-line protocol token
	Headers  []Header // Header lines in wire order
	Body     []byte   // Request body
	Secure   bool     // Hint that the target speaks TLS
}

// Clone returns a deep copy of r.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = append([]Header(nil), r.Headers...)
	if r.Body != nil {
		c.Body = bytes.Clone(r.Body)
	}
	return &c
}

// SplitURL splits raw into origin ("scheme://host") and target ("/path?query").
// An origin-form URL yields an empty origin.
func SplitURL(raw string) (origin, target string) {
	i := strings.Index(raw, "://")
	if i < 0 {
		return "", raw
	}
	rest := raw[i+3:]
	j := strings.IndexAny(rest, "/?")
	if j < 0 {
		return raw, "/"
	}
	target = rest[j:]
	if target[0] == '?' {
		target = "/" + target
	}
	return raw[:i+3+j], target
}

// SplitTarget splits "/path?query" into path and query without the '?'.
func SplitTarget(target string) (path, query string) {
	if i := strings.IndexByte(target, '?'); i >= 0 {
		return target[:i], target[i+1:]
	}
	return target, ""
}

// Origin returns "scheme://host" or "" for an origin-form URL.
func (r *Request) Origin() string {
	o, _ := SplitURL(r.URL)
	return o
}

// Target returns the request-target ("/path?query").
func (r *Request) Target() string {
	_, t := SplitURL(r.URL)
	return t
}

// Path returns the path component of the request-target.
func (r *Request) Path() string {
	p, _ := SplitTarget(r.Target())
	return p
}

// RawQuery returns the query without the leading '?'.
func (r *Request) RawQuery() string {
	_, q := SplitTarget(r.Target())
	return q
}

// Scheme returns "http", "https" or "" for an origin-form URL.
func (r *Request) Scheme() string {
	o := r.Origin()
	if i := strings.Index(o, "://"); i >= 0 {
		return strings.ToLower(o[:i])
	}
	return ""
}

// Host returns the authority of an absolute URL, falling back to the Host header.
func (r *Request) Host() string {
	if o := r.Origin(); o != "" {
		return o[strings.Index(o, "://")+3:]
	}
	h, _ := r.HeaderValue("Host")
	return strings.TrimSpace(h)
}

// HeaderValue returns the first header value matching name case-insensitively.
func (r *Request) HeaderValue(name string) (string, bool) {
	return lookupHeader(r.Headers, name)
}

// ContentType returns the Content-Type header or "".
func (r *Request) ContentType() string {
	v, _ := r.HeaderValue("Content-Type")
	return v
}

// WithMethod returns a copy using method.
func (r *Request) WithMethod(method string) *Request {
	c := r.Clone()
	c.Method = method
	return c
}

// WithURL returns a copy with the URL replaced.
func (r *Request) WithURL(url string) *Request {
	c := r.Clone()
	c.URL = url
	return c
}

// WithTarget returns a copy whose path and query are replaced by target.
// The origin, if any, is kept.
func (r *Request) WithTarget(target string) *Request {
	c := r.Clone()
	c.URL = r.Origin() + target
	return c
}

// WithProtocol returns a copy using the given request-line protocol.
func (r *Request) WithProtocol(protocol string) *Request {
	c := r.Clone()
	c.Protocol = protocol
	return c
}

// WithBody returns a copy carrying body.
func (r *Request) WithBody(body []byte) *Request {
	c := r.Clone()
	c.Body = bytes.Clone(body)
	return c
}

// WithAddedHeader appends a header line, keeping any existing one of the same name.
func (r *Request) WithAddedHeader(name, value string) *Request {
	c := r.Clone()
	c.Headers = append(c.Headers, Header{Name: name, Value: value})
	return c
}

// WithUpdatedHeader replaces the first header named name, or appends one.
func (r *Request) WithUpdatedHeader(name, value string) *Request {
	c := r.Clone()
	for i, h := range c.Headers {
		if strings.EqualFold(h.Name, name) {
			c.Headers[i].Value = value
			return c
		}
	}
	c.Headers = append(c.Headers, Header{Name: name, Value: value})
	return c
}

// WithoutHeader drops every header named name.
func (r *Request) WithoutHeader(name string) *Request {
	c := r.Clone()
	kept := c.Headers[:0]
	for _, h := range c.Headers {
		if !strings.EqualFold(h.Name, name) {
			kept = append(kept, h)
		}
	}
	c.Headers = kept
	return c
}

// ProtocolOrDefault returns Protocol, or DefaultProtocol when unset.
func (r *Request) ProtocolOrDefault() string {
	if r.Protocol == "" {
		return DefaultProtocol
	}
	return r.Protocol
}

// SplitURLPath returns the path of raw, or "/" when it has none.
func SplitURLPath(raw string) string {
	_, target := SplitURL(raw)
	path, _ := SplitTarget(target)
	if path == "" {
		return "/"
	}
	return path
}
