package attack

import (
	"context"
	"errors"
	"time"

	"github.com/fluxfuzzer/bypassfuzzer/pkg/types"
)

// DefaultProtocolTimeout bounds each protocol attempt.
const DefaultProtocolTimeout = 5 * time.Second

// http2Settings is the base64url SETTINGS frame sent with the h2c upgrade.
const http2Settings = "AAMAAABkAARAAAAAAAIAAAAA"

// ProtocolVersions are the request-line versions tried, in order.
var ProtocolVersions = []string{"HTTP/2", "HTTP/1.1", "HTTP/1.0", "HTTP/0.9"}

// Protocol rewrites the request-line version. Downgrades can stall at the
// transport level, so every attempt runs under its own deadline and a
// timed-out attempt is skipped.
type Protocol struct {
	Timeout time.Duration
	Runner  Runner // nil runs the send inline under the deadline
}

func (Protocol) Tag() string { return TagProtocol }

func (p Protocol) Execute(ctx context.Context, env *Env) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultProtocolTimeout
	}

	muts := protocolMutations(env.Baseline)
	env.Log.Info("attack started", "attack", "Protocol", "requests", len(muts))

	count := 0
	for _, m := range muts {
		if env.Lost() || !env.ShouldContinue() {
			env.Log.Info("attack stopped", "attack", "Protocol", "completed", count, "total", len(muts))
			return
		}
		if env.Pacer != nil {
			if err := env.Pacer.Wait(ctx); err != nil {
				return
			}
		}

		resp, err := p.send(ctx, env.Sender, m.req, timeout)
		switch {
		case errors.Is(err, types.ErrCapabilityLost):
			env.lost.Store(true)
			env.Log.Error("send capability lost", err, "attack", "Protocol")
			return
		case ctx.Err() != nil:
			return
		case err != nil:
			env.Log.Warn("protocol attempt skipped", "payload", m.payload, "reason", err.Error())
			continue
		}
		env.Emit(types.NewAttackResult("Protocol", m.payload, m.req, resp))
		count++
	}
	env.Log.Info("attack completed", "attack", "Protocol", "sent", count)
}

// send performs one attempt within timeout. A response that arrives after
// the deadline is discarded.
func (p Protocol) send(ctx context.Context, s Sender, req *types.Request, timeout time.Duration) (*types.Response, error) {
	if p.Runner == nil {
		tctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return s.Send(tctx, req)
	}

	var (
		resp    *types.Response
		sendErr error
	)
	if err := p.Runner.Run(ctx, timeout, func(tctx context.Context) {
		resp, sendErr = s.Send(tctx, req)
	}); err != nil {
		return nil, err
	}
	return resp, sendErr
}

func protocolMutations(base *types.Request) []mutation {
	muts := make([]mutation, 0, len(ProtocolVersions))
	for _, v := range ProtocolVersions {
		req := base.WithProtocol(v)
		switch v {
		case "HTTP/2":
			if _, ok := req.HeaderValue("Upgrade"); !ok {
				req = req.WithAddedHeader("Upgrade", "h2c")
			}
			if _, ok := req.HeaderValue("HTTP2-Settings"); !ok {
				req = req.WithAddedHeader("HTTP2-Settings", http2Settings)
			}
		case "HTTP/1.0":
			if _, ok := req.HeaderValue("Connection"); !ok {
				req = req.WithAddedHeader("Connection", "close")
			}
		}
		muts = append(muts, mutation{payload: "Protocol: " + v, req: req})
	}
	return muts
}
