package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/MikeSquared-Agency/studyplan/internal/metrics"
	"github.com/MikeSquared-Agency/studyplan/internal/processor"
	"github.com/MikeSquared-Agency/studyplan/internal/prompt"
)

// EventStatus reports the event transport's connection state.
type EventStatus interface {
	Connected() bool
}

type Options struct {
	Port        int
	APIToken    string
	CORSOrigins []string
	Model       string
	// Settings apply to chat requests that carry none.
	Settings prompt.Settings
	// SessionTTL and MaxSessions bound the live session registry. Zero
	// values use the defaults.
	SessionTTL  time.Duration
	MaxSessions int
	// Events is nil when no event transport is configured.
	Events EventStatus
}

type Server struct {
	router   *chi.Mux
	handler  http.Handler
	http     *http.Server
	opts     Options
	proc     *processor.Processor
	metrics  *metrics.Collector
	sessions *sessions
	logger   *slog.Logger
}

func NewServer(opts Options, proc *processor.Processor, m *metrics.Collector, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(instrument(m, logger))
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		opts:     opts,
		proc:     proc,
		metrics:  m,
		sessions: newSessions(opts.SessionTTL, opts.MaxSessions),
		logger:   logger,
	}

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, r, http.StatusMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	router.Get("/health", s.health)
	if m != nil {
		router.Method(http.MethodGet, "/metrics", m.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(opts.APIToken))
		r.Get("/status", s.status)
		r.Post("/chat", s.chat)
		r.Post("/sessions/{sessionID}/reset", s.resetSession)
		r.Get("/sessions/{sessionID}/roadmaps", s.listRoadmaps)
		r.Get("/roadmaps/{roadmapID}/progress", s.roadmapProgress)
		r.Patch("/items/{itemID}", s.updateItem)
	})

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
	}).Handler(router)

	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler { return s.handler }

func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.opts.Port),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.logger.Info("API server starting", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	persistence := "disabled"
	switch {
	case s.proc.Degraded():
		persistence = "degraded"
	case s.proc.PersistenceEnabled():
		persistence = "active"
	}

	events := "disabled"
	if s.opts.Events != nil {
		events = "disconnected"
		if s.opts.Events.Connected() {
			events = "connected"
		}
	}

	body := map[string]any{
		"service":     "studyplan",
		"persistence": persistence,
		"events":      events,
		"model":       s.opts.Model,
		"sessions":    s.sessions.len(),
	}
	if persistence == "active" {
		if err := s.proc.Ping(r.Context()); err != nil {
			body["store_error"] = err.Error()
		}
	}
	respondJSON(w, http.StatusOK, body)
}
