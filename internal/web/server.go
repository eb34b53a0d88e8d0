// Package web serves the tracking dashboard API: session status, an SSE
// event stream, a manual release endpoint, runtime tuning, an overlay
// snapshot and a websocket relay for movement commands.
package web

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/kozaktomas/face-tracker/internal/session"
	"github.com/kozaktomas/face-tracker/internal/web/middleware"
)

// Server exposes a running session over HTTP.
type Server struct {
	sess       *session.Session
	snapshots  SnapshotRenderer
	router     *chi.Mux
	httpServer *http.Server
	hub        *hub
	logger     *logrus.Entry
}

// SnapshotRenderer produces the overlay PNG for the snapshot endpoint.
type SnapshotRenderer interface {
	Render(snap session.Snapshot, deadZone float64) ([]byte, error)
}

// NewServer creates a dashboard server for a session. The renderer may be
// nil, which disables the snapshot endpoint.
func NewServer(addr string, sess *session.Session, snapshots SnapshotRenderer, logger *logrus.Logger) *Server {
	r := chi.NewRouter()

	s := &Server{
		sess:      sess,
		snapshots: snapshots,
		router:    r,
		hub:       newHub(logger.WithField("component", "relay")),
		logger:    logger.WithField("component", "web"),
	}

	// Every stream event feeds both the SSE subscribers and the
	// websocket relay.
	sess.Subscribe(s.hub.broadcast)

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // long timeout for SSE and the relay
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/events", s.handleEvents)
		r.Post("/release", s.handleRelease)
		r.Post("/tuning", s.handleTuning)
		r.Get("/snapshot", s.handleSnapshot)
	})
	s.router.Get("/ws", s.handleRelay)
}

// Start starts the HTTP server and blocks until shutdown.
func (s *Server) Start() error {
	s.logger.WithField("addr", s.httpServer.Addr).Info("starting dashboard server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dashboard server")
	s.hub.close()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
