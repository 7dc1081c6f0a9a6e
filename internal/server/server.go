// Package server assembles the local HTTP server: the webhook endpoint, the
// login flow, a small moderation API, and the Graph call profile viewer.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fpang/social-graph-bridge/internal/config"
	"github.com/fpang/social-graph-bridge/internal/event"
	"github.com/fpang/social-graph-bridge/internal/facebook"
	"github.com/fpang/social-graph-bridge/internal/graph"
	"github.com/fpang/social-graph-bridge/internal/login"
	"github.com/fpang/social-graph-bridge/internal/profiler"
	"github.com/fpang/social-graph-bridge/internal/session"
	"github.com/fpang/social-graph-bridge/internal/webhook"
)

// Options configures the server.
type Options struct {
	Config     config.Config
	Dispatcher event.Dispatcher
	Sessions   session.Factory
	Sink       login.TokenSink

	RedirectURI string
	Scopes      []string

	// Stopwatch returns the stopwatch for one request's facade. Nil
	// disables profiling and the /debug/graph-profiles endpoint.
	Stopwatch func() profiler.Stopwatch

	// Transport overrides the Graph HTTP transport.
	Transport graph.Transport

	// Tracing wraps the router with otelhttp.
	Tracing bool

	// KeepProfiles is how many requests the profile viewer keeps.
	KeepProfiles int
}

// Server is the assembled HTTP handler.
type Server struct {
	opts      Options
	collector *Collector
	router    chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	if opts.KeepProfiles <= 0 {
		opts.KeepProfiles = 50
	}
	if opts.Sink == nil {
		opts.Sink = login.LogSink{}
	}
	if opts.Sessions == nil {
		opts.Sessions = session.NewMemoryStore().Session
	}

	s := &Server{opts: opts, collector: NewCollector(opts.KeepProfiles)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if opts.Tracing {
		r.Use(func(next http.Handler) http.Handler {
			return otelhttp.NewHandler(next, "graph-server")
		})
	}
	if opts.Stopwatch != nil {
		r.Use(s.collector.Middleware)
		r.Get("/debug/graph-profiles", s.handleProfiles)
	}

	r.Handle("/webhook", webhook.NewHandler(opts.Config.WebhookVerifyToken, opts.Config.AppSecret, opts.Dispatcher))

	lh := login.NewHandler(s.newService, opts.RedirectURI, opts.Scopes, opts.Sink)
	r.Group(func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler {
			return session.Middleware(opts.Sessions, next)
		})
		r.Get("/login", lh.Login)
		r.Get("/oauth/callback", lh.Callback)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(requireBearer)
		r.Get("/pages/{id}", s.handlePage)
		r.Get("/pages/{id}/token", s.handlePageToken)
		r.Get("/token", s.handleValidateToken)
		r.Post("/{kind}/{id}/{action}", s.handleModerate)
		r.Delete("/{kind}/{id}", s.handleDelete)
	})

	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Collector returns the profile collector.
func (s *Server) Collector() *Collector {
	return s.collector
}

// newService builds the facade for one request. Each request gets its own
// profiler state.
func (s *Server) newService(r *http.Request) (*facebook.Service, error) {
	var opts []facebook.Option
	if s.opts.Stopwatch != nil {
		opts = append(opts, facebook.WithStopwatch(s.opts.Stopwatch()))
	}
	if s.opts.Transport != nil {
		opts = append(opts, facebook.WithTransport(s.opts.Transport))
	}
	if sess, ok := session.FromContext(r.Context()); ok {
		opts = append(opts, facebook.WithPersistentData(session.NewPersistentData(sess)))
	}
	svc := facebook.New(s.opts.Config.Client(), opts...)
	trackService(r.Context(), svc)
	return svc, nil
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.collector.Recent())
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Info().
			Str("requestId", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("HTTP request")
	})
}
