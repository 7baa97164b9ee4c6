package attack

import (
	"context"
	"net"
	"strings"
)

// TrailingDot sends the Host header as a fully qualified name.
type TrailingDot struct{}

func (TrailingDot) Tag() string { return TagTrailingDot }

func (TrailingDot) Execute(ctx context.Context, env *Env) {
	host := env.Baseline.Host()
	if host == "" {
		env.Log.Warn("no host to add a trailing dot to", "attack", "TrailingDot")
		return
	}
	value := trailingDotHost(host)
	env.runAll(ctx, "TrailingDot", []mutation{{
		payload: "Host: " + value,
		req:     env.Baseline.WithUpdatedHeader("Host", value),
	}}, 0)
}

// trailingDotHost turns "example.com:8443" into "example.com.:8443".
func trailingDotHost(host string) string {
	name, port, err := net.SplitHostPort(host)
	if err != nil {
		name, port = host, ""
	}
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	if port == "" {
		return name
	}
	return net.JoinHostPort(name, port)
}

// TrailingSlash toggles the slash at the end of the path.
type TrailingSlash struct{}

func (TrailingSlash) Tag() string { return TagTrailingSlash }

func (TrailingSlash) Execute(ctx context.Context, env *Env) {
	if env.skipRoot("TrailingSlash") {
		return
	}
	path, query := env.Baseline.Path(), env.Baseline.RawQuery()
	if strings.HasSuffix(path, "/") {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	} else {
		path += "/"
	}
	target := path
	if query != "" {
		target += "?" + query
	}
	env.runAll(ctx, "TrailingSlash", []mutation{{
		payload: path,
		req:     env.Baseline.WithTarget(target),
	}}, 0)
}
