// Package demo simulates an ETP server so etp can run without one. The
// watched IP runs a workflow whose tasks advance on every tick; scenarios
// inject failures, flaky responses or a disappearing IP.
package demo

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is a simulated ETP REST API.
type Server struct {
	router chi.Router
	store  *store
	cfg    Config
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithRequestLogging logs every request with chi's logger middleware.
func WithRequestLogging() ServerOption {
	return func(s *Server) {
		s.router.Use(middleware.Logger)
	}
}

// NewServer creates a simulated server with seeded data.
func NewServer(cfg Config, opts ...ServerOption) *Server {
	if cfg.Scenario == "" {
		cfg.Scenario = ScenarioSuccess
	}
	if cfg.Preset == "" {
		cfg.Preset = PresetMedium
	}
	s := &Server{store: newStore(cfg), cfg: cfg}

	r := chi.NewRouter()
	s.router = r
	for _, opt := range opts {
		opt(s)
	}
	r.Use(middleware.Recoverer)
	r.Use(s.basicAuth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/information-packages/", s.handleListIPs)
		r.Get("/information-packages/{id}/", s.handleGetIP)
		r.Delete("/information-packages/{id}/", s.handleDeleteIP)
		r.Get("/information-packages/{id}/steps/", s.handleSteps)
		r.Get("/information-packages/{id}/events/", s.handleListEvents)
		r.Put("/information-packages/{id}/change-profile/", s.handleChangeProfile)
		r.Post("/information-packages/{id}/{action}/", s.handleIPAction)

		r.Post("/events/", s.handleAddEvent)

		for _, kind := range []string{"steps", "tasks"} {
			r.Get("/"+kind+"/{id}/", s.handleNodeDetail)
			r.Get("/"+kind+"/{id}/children/", s.handleChildren)
			r.Post("/"+kind+"/{id}/undo/", s.handleUndo)
			r.Post("/"+kind+"/{id}/retry/", s.handleRetry)
		}

		r.Get("/submission-agreements/", s.handleListSAs)
		r.Post("/submission-agreements/", s.handleCreateSA)
		r.Get("/submission-agreements/{id}/", s.handleGetSA)
		r.Get("/profiles/{id}/", s.handleGetProfile)
		r.Post("/profiles/", s.handleCreateProfile)
		r.Delete("/locks/{id}/", s.handleDeleteLock)
	})
	return s
}

// ServeHTTP implements http.Handler, delegating to the chi router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Tick advances the watched workflow once.
func (s *Server) Tick() {
	s.store.tick()
}

// Run ticks at the preset's interval until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	interval, err := TickInterval(s.cfg.Preset)
	if err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Scenario returns the scenario the server was created with.
func (s *Server) Scenario() Scenario {
	return s.cfg.Scenario
}

func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Username == "" && s.cfg.Password == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(s.cfg.Username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(s.cfg.Password)) != 1 {
			writeError(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}
		next.ServeHTTP(w, r)
	})
}
