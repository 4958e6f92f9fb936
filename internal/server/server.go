// Package server exposes the reconciliation engine as a JSON API.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/audit"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/query"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/reconcile"
	"github.com/mfirdausazizi/scurrydb-sub002/internal/schema"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/access"
	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"
)

// Catalog resolves connection references. *config.Config implements it.
type Catalog interface {
	Connection(ref string) (core.ConnectionConfig, error)
	ConnectionNames() []string
}

// Config holds configuration for the API server.
type Config struct {
	Addr              string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration

	// MaxConnections caps concurrent client connections. Zero means no cap.
	MaxConnections int

	Catalog   Catalog
	Runner    *query.Runner
	Reconcile *reconcile.Service
	Schema    *schema.Introspector

	// Audit enables GET /api/audit when set.
	Audit *audit.SQLiteStore

	// DefaultPermission is the most a caller may do. A permission in the request body
	// can only narrow it.
	DefaultPermission access.Permission

	// Background runs alongside the server until shutdown (e.g. a config watcher).
	Background []func(ctx context.Context) error

	Logger *slog.Logger
}

// Server is the API server.
type Server struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.RWMutex
	catalog Catalog
}

// New creates a server.
func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 10 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	return &Server{cfg: cfg, logger: logger, catalog: cfg.Catalog}
}

// SetCatalog swaps the connection catalog, e.g. after a config reload.
func (s *Server) SetCatalog(c Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = c
}

func (s *Server) connections() Catalog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
	)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/query", s.handleQuery)
		r.Post("/check", s.handleCheck)
		r.Post("/classify", s.handleClassify)
		r.Get("/connections", s.handleConnections)
		r.Get("/connections/{id}/tables", s.handleTables)
		r.Post("/compare", s.handleCompare)
		r.Post("/sync/preview", s.handleSyncPreview)
		r.Post("/sync/apply", s.handleSyncApply)
		if s.cfg.Audit != nil {
			r.Get("/audit", s.handleAudit)
		}
	})

	return r
}

// Serve starts the server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}
	return s.ServeListener(ctx, ln)
}

// ServeListener serves on ln until the context is cancelled.
func (s *Server) ServeListener(ctx context.Context, ln net.Listener) error {
	if s.cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConnections)
	}
	s.logger.Info("starting API server", "addr", ln.Addr().String(), "max_connections", s.cfg.MaxConnections)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	for _, fn := range s.cfg.Background {
		eg.Go(func() error {
			return fn(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}
