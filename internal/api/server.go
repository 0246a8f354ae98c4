package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"discripper/internal/config"
	"discripper/internal/drives"
	"discripper/internal/jobs"
	"discripper/internal/logging"
	"discripper/internal/rename"
	"discripper/internal/services"
	"discripper/internal/store"
)

// Server exposes jobs, drives and batch renames over HTTP.
type Server struct {
	bind    string
	token   string
	logger  *slog.Logger
	jobs    *jobs.Manager
	drives  *drives.Registry
	renamer *rename.Engine
	now     func() time.Time

	listener net.Listener
	server   *http.Server
}

// New builds a server bound to cfg.API. Handler works without Start, which
// keeps the routes usable from tests.
func New(cfg *config.Config, manager *jobs.Manager, registry *drives.Registry, renamer *rename.Engine, logger *slog.Logger) *Server {
	s := &Server{
		bind:    strings.TrimSpace(cfg.API.Bind),
		token:   strings.TrimSpace(cfg.API.Token),
		logger:  logging.NewComponentLogger(logger, "api"),
		jobs:    manager,
		drives:  registry,
		renamer: renamer,
		now:     time.Now,
	}
	s.server = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestContext)

	r.Get("/api/health", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, StatusResponse{Success: true})
	})

	r.Group(func(r chi.Router) {
		r.Use(bearerAuth(s.token))

		r.Route("/api/jobs", func(r chi.Router) {
			r.Get("/", s.handleJobList)
			r.Get("/{id}", s.handleJob)
			r.Patch("/{id}/title", s.handleJobTitle)
			r.Post("/{id}/abandon", s.handleJobAbandon)
			r.Delete("/{id}", s.handleJobDelete)
		})
		r.Route("/api/drives", func(r chi.Router) {
			r.Get("/", s.handleDriveList)
			r.Post("/scan", s.handleDriveScan)
			r.Post("/{id}/eject", s.handleDriveEject)
		})
		r.Route("/api/rename", func(r chi.Router) {
			r.Post("/preview", s.handleRenamePreview)
			r.Post("/execute", s.handleRenameExecute)
			r.Post("/rollback", s.handleRenameRollback)
			r.Get("/batches", s.handleRenameBatches)
		})
		r.Get("/json", s.handleMode)
		r.Post("/json", s.handleMode)
	})
	return r
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	if s.bind == "" {
		return services.Wrap(services.ErrConfiguration, "api", "listen", "api.bind is empty", nil)
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server stopped", "api_serve_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening",
		logging.String("address", listener.Addr().String()),
		logging.Bool("auth", s.token != ""),
	)
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the listener down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	if s == nil || s.server == nil {
		return
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
}

// requestContext tags each request with a correlation id and logs it once
// served.
func (s *Server) requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := services.WithRequestID(r.Context(), id)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r.WithContext(ctx))
		logging.WithContext(ctx, s.logger).Debug("api request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("encode api response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "api request failed", "api_request_failed",
			logging.String("path", r.URL.Path),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.ErrorHint(err)),
		)
	}
	s.writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, store.ErrJobNotFound), errors.Is(err, store.ErrDriveNotFound), errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, services.ErrValidation), errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}
