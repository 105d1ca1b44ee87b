// router.go - chi router binding the REST/WS control plane to an Engine
//
// Constellation Studio - real-time video/audio processing graph engine
// License: GPLv3 or later

// Package webapi is the HTTP control-plane binding: a REST surface over
// internal/engine, a push event stream over WebSocket, and telemetry
// export/metrics endpoints. Single-tenant scope; there is no
// authorization layer.
package webapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/constellationstudio/engine/internal/engine"
)

// Server holds the router's collaborators: the engine it controls and the
// hub it broadcasts events through.
type Server struct {
	engine *engine.Engine
	hub    *hub
	log    zerolog.Logger
	mux    *chi.Mux
}

// Config configures rate limiting applied to mutating routes.
type Config struct {
	Logger            zerolog.Logger
	RateLimitRequests int           // requests per RateLimitWindow, per IP; 0 disables limiting
	RateLimitWindow   time.Duration
}

// NewServer builds the router and wires the engine's event stream into the
// websocket hub, returning an http.Handler ready to serve.
func NewServer(e *engine.Engine, cfg Config) *Server {
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = time.Minute
	}
	s := &Server{engine: e, hub: newHub(cfg.Logger), log: cfg.Logger}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)

	mutating := func(next http.Handler) http.Handler { return next }
	if cfg.RateLimitRequests > 0 {
		mutating = httprate.Limit(
			cfg.RateLimitRequests,
			cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			}),
		)
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/nodes", s.handleListNodes)
		api.With(mutating).Post("/nodes", s.handleCreateNode)
		api.Get("/nodes/{id}", s.handleGetNode)
		api.With(mutating).Delete("/nodes/{id}", s.handleDeleteNode)
		api.With(mutating).Put("/nodes/{id}/parameters", s.handleSetParameters)
		api.With(mutating).Post("/connections", s.handleConnect)
		api.With(mutating).Delete("/connections/{source}/{target}", s.handleDisconnect)
		api.With(mutating).Post("/engine/start", s.handleStart)
		api.With(mutating).Post("/engine/stop", s.handleStop)
		api.Get("/engine/status", s.handleStatus)
	})

	r.Route("/export", func(export chi.Router) {
		export.Get("/logs", s.handleExportLogs)
		export.Get("/traces", s.handleExportTraces)
		export.Get("/hardware", s.handleHardware)
		export.Get("/session", s.handleExportSessionStats)
	})

	r.Get("/ws", s.hub.serveWS)
	r.Handle("/metrics", promhttp.HandlerFor(e.Registry(), promhttp.HandlerOpts{}))

	s.mux = r
	return s
}

// EventSink returns the server's websocket hub so the caller can pass it as
// engine.Config.Events at construction time.
func (s *Server) EventSink() engine.EventSink { return s.hub }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("webapi: request")
	})
}
