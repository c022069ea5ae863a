package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ammar0144/reportq/pkg/report"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const shutdownTimeout = 30 * time.Second

// Config controls the report API server
type Config struct {
	Addr           string
	AllowedOrigins []string
}

// Server serves the report engine over HTTP
type Server struct {
	config Config
	engine *report.Engine
	logger *slog.Logger
	router *mux.Router
}

// NewServer creates a server and registers its routes
func NewServer(config Config, engine *report.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		config: config,
		engine: engine,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/health", s.health).Methods(http.MethodGet)

	s.router.HandleFunc("/entities", s.listEntities).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/{key}", s.getEntity).Methods(http.MethodGet)

	s.router.HandleFunc("/reports/run", s.runReport).Methods(http.MethodPost)

	defs := s.router.PathPrefix("/definitions").Subrouter()
	defs.HandleFunc("", s.listDefinitions).Methods(http.MethodGet)
	defs.HandleFunc("", s.saveDefinition).Methods(http.MethodPost)
	defs.HandleFunc("/{id}", s.getDefinition).Methods(http.MethodGet)
	defs.HandleFunc("/{id}", s.deleteDefinition).Methods(http.MethodDelete)
	defs.HandleFunc("/{id}/run", s.runDefinition).Methods(http.MethodPost)

	s.router.HandleFunc("/cache/clear", s.clearCache).Methods(http.MethodPost)
	s.router.HandleFunc("/cache/stats", s.cacheStats).Methods(http.MethodGet)

	s.router.Use(s.logging)
}

// Handler returns the routed handler wrapped with CORS
func (s *Server) Handler() http.Handler {
	origins := s.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(s.router)
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("report API listening", slog.String("addr", s.config.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down report API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", wrapped.statusCode),
			slog.Duration("took", time.Since(start)))
	})
}
