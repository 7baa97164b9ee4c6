// Package requester sends mutated requests exactly as built, using fasthttp.
package requester

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// ErrRelativeURL is returned for a request without scheme and host.
var ErrRelativeURL = errors.New("request URL is not absolute")

// Client wraps fasthttp.Client. It never normalizes paths or header names,
// so payloads such as "/..;/admin" reach the target byte for byte.
type Client struct {
	client  *fasthttp.Client
	timeout time.Duration
	closed  atomic.Bool

	sent   atomic.Int64
	failed atomic.Int64
}

// ClientOptions configures the HTTP client
type ClientOptions struct {
	Timeout             time.Duration
	MaxConnsPerHost     int
	MaxIdleConnDuration time.Duration
	SkipTLSVerify       bool
	Dial                fasthttp.DialFunc // nil = TCP
}

// DefaultClientOptions returns sensible defaults
func DefaultClientOptions() *ClientOptions {
	return &ClientOptions{
		Timeout:             10 * time.Second,
		MaxConnsPerHost:     16,
		MaxIdleConnDuration: 10 * time.Second,
		SkipTLSVerify:       true,
	}
}

// NewClient creates a new HTTP client
func NewClient(opts *ClientOptions) *Client {
	if opts == nil {
		opts = DefaultClientOptions()
	}

	client := &fasthttp.Client{
		MaxConnsPerHost:               opts.MaxConnsPerHost,
		MaxIdleConnDuration:           opts.MaxIdleConnDuration,
		ReadTimeout:                   opts.Timeout,
		WriteTimeout:                  opts.Timeout,
		Dial:                          opts.Dial,
		DisablePathNormalizing:        true,
		DisableHeaderNamesNormalizing: true,
		NoDefaultUserAgentHeader:      true,
		TLSConfig: &tls.Config{
			InsecureSkipVerify: opts.SkipTLSVerify,
		},
	}

	return &Client{
		client:  client,
		timeout: opts.Timeout,
	}
}

// Send writes req and reads the full response. The context deadline, when
// earlier than the client timeout, bounds the exchange. After Close every
// call fails with types.ErrCapabilityLost.
func (c *Client) Send(ctx context.Context, req *types.Request) (*types.Response, error) {
	if c.closed.Load() {
		return nil, fmt.Errorf("send %s: %w", req.URL, types.ErrCapabilityLost)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Origin() == "" {
		return nil, fmt.Errorf("%w: %s", ErrRelativeURL, req.URL)
	}

	start := time.Now()
	deadline := start.Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	frequest := fasthttp.AcquireRequest()
	fresponse := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(frequest)
	defer fasthttp.ReleaseResponse(fresponse)

	fillRequest(frequest, req)

	c.sent.Add(1)
	if err := c.client.DoDeadline(frequest, fresponse, deadline); err != nil {
		c.failed.Add(1)
		return nil, fmt.Errorf("send %s %s: %w", req.Method, req.URL, err)
	}

	resp := &types.Response{
		StatusCode: fresponse.StatusCode(),
		Protocol:   string(fresponse.Header.Protocol()),
		Elapsed:    time.Since(start),
	}
	fresponse.Header.VisitAll(func(key, value []byte) {
		resp.Headers = append(resp.Headers, types.Header{Name: string(key), Value: string(value)})
	})

	// Copy body (important: must copy as buffer is reused)
	resp.Body = append([]byte(nil), fresponse.Body()...)
	return resp, nil
}

func fillRequest(dst *fasthttp.Request, req *types.Request) {
	dst.Header.DisableNormalizing()
	dst.URI().DisablePathNormalizing = true
	dst.SetRequestURI(req.URL)
	dst.Header.SetMethod(req.Method)
	dst.Header.SetProtocol(req.ProtocolOrDefault())

	for _, h := range req.Headers {
		switch {
		case strings.EqualFold(h.Name, "Host"):
			dst.UseHostHeader = true
			dst.Header.SetHost(h.Value)
		case strings.EqualFold(h.Name, "Content-Length"), strings.EqualFold(h.Name, "Transfer-Encoding"):
			// recomputed from the body
		default:
			dst.Header.Add(h.Name, h.Value)
		}
	}

	if len(req.Body) > 0 {
		dst.SetBody(req.Body)
	}
}

// Close turns the client into a lost capability and drops idle connections.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.client.CloseIdleConnections()
	}
}

// ClientStats holds send counters.
type ClientStats struct {
	Sent   int64
	Failed int64
}

// Stats returns current send counters
func (c *Client) Stats() ClientStats {
	return ClientStats{Sent: c.sent.Load(), Failed: c.failed.Load()}
}
