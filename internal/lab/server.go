// Package lab serves a deliberately misconfigured target for practising
// access-control bypasses against.
package lab

import (
	"net"
	"net/url"
	"path"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/fluxfuzzer/bypassfuzzer/internal/logging"
)

// Config controls the lab target.
type Config struct {
	Protected string        // guarded path, "/admin" by default
	TrustedIP string        // address the guard trusts in forwarding headers
	Limit     int           // requests per Window before 429; 0 disables
	Window    time.Duration // rate window
}

// DefaultConfig returns the default lab setup.
func DefaultConfig() Config {
	return Config{
		Protected: "/admin",
		TrustedIP: "127.0.0.1",
		Window:    time.Second,
	}
}

// Headers the guard trusts for the client address.
var forwardedHeaders = []string{
	"X-Forwarded-For",
	"X-Real-IP",
	"X-Client-IP",
	"X-Originating-IP",
	"X-Custom-IP-Authorization",
	"True-Client-IP",
}

// Headers a fronting proxy would rewrite the target from.
var rewriteHeaders = []string{"X-Original-URL", "X-Rewrite-URL"}

// Headers that override the request method.
var overrideHeaders = []string{"X-HTTP-Method-Override", "X-HTTP-Method", "X-Method-Override"}

// Server is the lab target.
type Server struct {
	app     *fiber.App
	cfg     Config
	guarded string // normalized Protected
	log     *logging.Logger

	granted atomic.Int64
	denied  atomic.Int64
}

// New builds the server. log may be nil.
func New(cfg Config, log *logging.Logger) *Server {
	if cfg.Protected == "" {
		cfg.Protected = "/admin"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Second
	}
	if log == nil {
		log = logging.Nop()
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		StrictRouting:         true,
		CaseSensitive:         true,
	})

	s := &Server{app: app, cfg: cfg, guarded: normalize(cfg.Protected), log: log}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	if s.cfg.Limit > 0 {
		s.app.Use(limiter.New(limiter.Config{
			Max:        s.cfg.Limit,
			Expiration: s.cfg.Window,
		}))
	}

	s.app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("bypassfuzzer lab")
	})
	s.app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	s.app.All("/*", s.handleGuarded)
}

// handleGuarded denies the protected path unless the request slips past
// one of the guard's blind spots.
func (s *Server) handleGuarded(c *fiber.Ctx) error {
	for _, h := range rewriteHeaders {
		if v := c.Get(h); v != "" && normalize(v) == s.guarded {
			return s.grant(c, h)
		}
	}

	raw := string(c.Request().URI().PathOriginal())
	raw, _, _ = strings.Cut(raw, "?")
	if normalize(raw) != s.guarded {
		return fiber.ErrNotFound
	}

	if raw != s.cfg.Protected {
		return s.grant(c, "path")
	}
	if m := c.Method(); m != fiber.MethodGet && m != fiber.MethodHead {
		return s.grant(c, "method")
	}
	for _, h := range overrideHeaders {
		if v := c.Get(h); v != "" && !strings.EqualFold(v, fiber.MethodGet) {
			return s.grant(c, h)
		}
	}
	for _, h := range forwardedHeaders {
		if s.trusted(c.Get(h)) {
			return s.grant(c, h)
		}
	}

	s.denied.Add(1)
	return c.Status(fiber.StatusForbidden).SendString("Forbidden")
}

func (s *Server) trusted(value string) bool {
	for _, part := range strings.Split(value, ",") {
		if strings.TrimSpace(part) == s.cfg.TrustedIP {
			return true
		}
	}
	return false
}

func (s *Server) grant(c *fiber.Ctx, via string) error {
	s.granted.Add(1)
	s.log.Debug("lab access granted", "via", via, "method", c.Method(), "path", string(c.Request().RequestURI()))
	return c.JSON(fiber.Map{"access": "granted", "via": via})
}

// normalize resolves the path the way a lenient backend would: percent
// decoding, dropping ";params" from segments, collapsing dot segments and
// ignoring case and a trailing slash or dot.
func normalize(p string) string {
	if u, err := url.PathUnescape(p); err == nil {
		p = u
	}
	segs := strings.Split(p, "/")
	for i, seg := range segs {
		segs[i], _, _ = strings.Cut(seg, ";")
	}
	p = path.Clean("/" + strings.Join(segs, "/"))
	p = strings.TrimRight(p, "/.")
	if p == "" {
		p = "/"
	}
	return strings.ToLower(p)
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.log.Info("lab listening", "addr", addr, "protected", s.cfg.Protected)
	return s.app.Listen(addr)
}

// Listener serves on ln until Shutdown.
func (s *Server) Listener(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// Counts returns granted and denied totals for the guarded path.
func (s *Server) Counts() (granted, denied int64) {
	return s.granted.Load(), s.denied.Load()
}
