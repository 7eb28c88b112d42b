package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	v1 "github.com/gosuda/boardsync/internal/api/v1"
	"github.com/gosuda/boardsync/internal/api/ws"
	"github.com/gosuda/boardsync/internal/config"
	"github.com/gosuda/boardsync/internal/server/middleware"
)

// Hub is everything the HTTP layer needs from the realtime hub.
// *realtime.Hub satisfies this interface.
type Hub interface {
	ws.Hub
	v1.HubAdmin
}

// Pinger reports whether a backing service is reachable.
// *postgres.Store satisfies this interface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP server that wires all application routes and middleware.
type Server struct {
	router     chi.Router
	httpServer *http.Server
	hub        Hub
	db         Pinger
	cfg        *config.Config
}

// New creates a Server with all routes wired. ctx bounds the background
// cleanup of rate limiter state. db may be nil, in which case /readyz only
// reports the process as up.
func New(ctx context.Context, cfg *config.Config, hub Hub, tokens middleware.TokenIdentifier, db Pinger) *Server {
	router := chi.NewRouter()

	// Global middleware stack.
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)

	s := &Server{
		router: router,
		hub:    hub,
		db:     db,
		cfg:    cfg,
		httpServer: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      router,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}

	// Admin API. Bearer tokens with the admin role and the service API key
	// are accepted.
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Logger)
		r.Use(middleware.Auth(tokens, cfg.Auth.AdminAPIKeyHash))
		r.Use(middleware.RequireAdmin())
		r.Use(middleware.RateLimit(ctx, 100, 200))

		apiConfig := huma.DefaultConfig("boardsync hub API", "1.0.0")
		apiConfig.Servers = []*huma.Server{
			{URL: "/api/v1"},
		}
		api := humachi.New(r, apiConfig)
		registerAPIRoutes(api, hub)
	})

	// WebSocket route. Clients authenticate in-band, so only the upgrade
	// rate is limited here.
	wsHandler := ws.NewHandler(hub, ws.Options{
		WriteTimeout:   cfg.Hub.WriteTimeout,
		PingInterval:   cfg.Hub.PingInterval,
		OriginPatterns: originPatterns(cfg.Server.CORSOrigins),
	})
	router.Group(func(r chi.Router) {
		r.Use(middleware.RateLimitByIP(ctx, float64(cfg.Server.WSRateLimit)/60, cfg.Server.WSBurst))
		registerWSRoutes(r, wsHandler)
	})

	// Health checks (unauthenticated).
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	router.Get("/readyz", s.ready)

	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("server: readiness check failed")
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
	}
	writeStatus(w, http.StatusOK, "ok")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(`{"status":"` + status + `"}`))
}

// originPatterns turns CORS origins into the host patterns the websocket
// upgrader matches against.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(o)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}

// Start begins listening for HTTP requests.
func (s *Server) Start(_ context.Context) error {
	log.Info().Str("addr", s.cfg.Server.Addr).Msg("server: listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server.Start: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server. Hijacked websocket connections
// are not tracked by net/http and are closed by the hub's own shutdown.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	return nil
}
