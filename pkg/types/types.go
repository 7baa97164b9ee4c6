// Package types defines the data structures shared by bypassfuzzer components.
package types

import (
	"errors"
	"strings"
	"sync/atomic"
	"time"
)

// ErrCapabilityLost is returned by a send capability that can no longer be used,
// for example after its owner unloaded it. Strategies stop as soon as they see it.
var ErrCapabilityLost = errors.New("send capability lost")

// DefaultProtocol is the request-line protocol used when none is set.
const DefaultProtocol = "HTTP/1.1"

// Header is a single header line. Order and duplicates are preserved.
type Header struct {
	Name  string
	Value string
}

// Response is the reply to one attempt.
type Response struct {
	StatusCode int           // HTTP status code
	Protocol   string        // Status-line protocol
	Headers    []Header      // Response headers in wire order
	Body       []byte        // Response body
	Elapsed    time.Duration // Time from send to full response
}

// HeaderValue returns the first header value matching name case-insensitively.
func (r *Response) HeaderValue(name string) (string, bool) {
	if r == nil {
		return "", false
	}
	return lookupHeader(r.Headers, name)
}

// ContentType returns the Content-Type header or "".
func (r *Response) ContentType() string {
	v, _ := r.HeaderValue("Content-Type")
	return v
}

var lastResultID atomic.Uint64

// AttackResult is the outcome of one completed attempt.
//
// Results are always handled by pointer. Side tables such as highlight colors
// and pattern retention key on ID, never on field equality.
type AttackResult struct {
	ID            uint64    // Process-wide, strictly increasing
	AttackType    string    // Strategy display name, e.g. "Header"
	Payload       string    // Human readable description of the mutation
	StatusCode    int       // 0 when no response was received
	ContentLength int       // Response body length in bytes
	ContentType   string    // Response Content-Type, possibly empty
	Timestamp     int64     // Unix milliseconds at creation
	Request       *Request  // The mutated request that was sent
	Response      *Response // nil when no response was received
}

// NewAttackResult builds a result for req/resp and stamps a fresh ID.
func NewAttackResult(attackType, payload string, req *Request, resp *Response) *AttackResult {
	r := &AttackResult{
		ID:         lastResultID.Add(1),
		AttackType: attackType,
		Payload:    payload,
		Timestamp:  time.Now().UnixMilli(),
		Request:    req,
		Response:   resp,
	}
	if resp != nil {
		r.StatusCode = resp.StatusCode
		r.ContentLength = len(resp.Body)
		r.ContentType = resp.ContentType()
	}
	return r
}

// Time returns Timestamp as a time.Time.
func (r *AttackResult) Time() time.Time {
	return time.UnixMilli(r.Timestamp)
}

// RunState is the lifecycle state of a fuzzing run.
type RunState int32

const (
	Idle RunState = iota
	Running
	Stopping
	Completed
)

func (s RunState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Completed:
		return "completed"
	default:
		return "unknown"
	}
}

func lookupHeader(headers []Header, name string) (string, bool) {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value, true
		}
	}
	return "", false
}
