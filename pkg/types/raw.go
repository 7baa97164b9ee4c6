package types

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedRequest is returned for raw request text that cannot be parsed.
var ErrMalformedRequest = errors.New("malformed raw request")

// ParseRawRequest parses a request as captured by an intercepting proxy:
// a request line, header lines, a blank line and an optional body.
// Both CRLF and LF line endings are accepted. The request-target is kept
// verbatim, so an origin-form target resolves later through the Host header.
func ParseRawRequest(data []byte, secure bool) (*Request, error) {
	head, body, _ := bytes.Cut(data, []byte("\r\n\r\n"))
	if !bytes.Contains(data, []byte("\r\n\r\n")) {
		head, body, _ = bytes.Cut(data, []byte("\n\n"))
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedRequest)
	}

	parts := strings.Fields(lines[0])
	if len(parts) < 2 {
		return nil, fmt.Errorf("%w: bad request line %q", ErrMalformedRequest, lines[0])
	}
	req := &Request{
		Method:   parts[0],
		URL:      parts[1],
		Protocol: DefaultProtocol,
		Secure:   secure,
	}
	if len(parts) > 2 {
		req.Protocol = parts[2]
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("%w: bad header line %q", ErrMalformedRequest, line)
		}
		req.Headers = append(req.Headers, Header{
			Name:  strings.TrimSpace(name),
			Value: strings.TrimSpace(value),
		})
	}
	if len(body) > 0 {
		req.Body = bytes.Clone(body)
	}
	return req, nil
}
