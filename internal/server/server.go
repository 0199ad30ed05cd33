// Package server exposes the classification engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ziadkadry99/bookkeeper/internal/audit"
	"github.com/ziadkadry99/bookkeeper/internal/engine"
	"github.com/ziadkadry99/bookkeeper/internal/logging"
	"github.com/ziadkadry99/bookkeeper/internal/metrics"
)

// DefaultPort is the port the server listens on when none is configured.
const DefaultPort = 10087

// DefaultMaxUploadBytes bounds a single request body.
const DefaultMaxUploadBytes = 16 << 20

// Config holds server configuration.
type Config struct {
	Port           int
	AllowAll       bool // allow all CORS origins (dev mode)
	MaxUploadBytes int64
	Version        string
}

// Server serves bill classification, training and index statistics.
type Server struct {
	cfg        Config
	engine     *engine.Engine
	audit      *audit.Store
	metrics    *metrics.Metrics
	log        *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server around eng. auditStore, m and logger may be nil.
func New(cfg Config, eng *engine.Engine, auditStore *audit.Store, m *metrics.Metrics, logger *zap.Logger) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		cfg:     cfg,
		engine:  eng,
		audit:   auditStore,
		metrics: m,
		log:     logging.OrNop(logger).Named("server"),
	}

	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiActor)

	// CORS
	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	// Health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/status", s.handleStatus)
		r.Get("/categories", s.handleCategories)
		r.Get("/stats", s.handleStats)
		r.Post("/predict", s.handlePredict)
		r.Post("/upload", s.handleUpload)
		r.Post("/merge", s.handleMerge)
		r.Post("/export", s.handleExport)
		r.Post("/report", s.handleReport)

		if s.audit != nil {
			audit.RegisterRoutes(r, s.audit)
		}
	})

	// Retraining reloads the whole dataset and may outlive the request
	// timeout above.
	r.Post("/train", s.handleTrain)
	r.Get("/ws/train", s.handleTrainSocket)

	return r
}

// apiActor attributes audit entries written during a request to the API.
func apiActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), audit.ActorAPI)))
	})
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// ServerConfig returns the server configuration.
func (s *Server) ServerConfig() Config { return s.cfg }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.log.Info("bookkeeper server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
