package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"

	"github.com/YuminosukeSato/cropadvisor/pkg/artifact"
	"github.com/YuminosukeSato/cropadvisor/pkg/config"
	"github.com/YuminosukeSato/cropadvisor/pkg/errors"
	"github.com/YuminosukeSato/cropadvisor/pkg/log"
)

// NewRouter wires the endpoints, the JSON 404/405 handlers, /metrics and the
// middleware chain. metrics may be nil.
func NewRouter(h *Handlers, metrics *Metrics, logger log.Logger) http.Handler {
	if logger == nil {
		logger = log.Nop()
	}
	router := mux.NewRouter()

	router.Handle("/", adapt(h.Home)).Methods(http.MethodGet, http.MethodHead)
	router.Handle("/predict-crop", adapt(h.PredictCrop)).Methods(http.MethodPost)
	router.Handle("/analyze-crop", adapt(h.AnalyzeCrop)).Methods(http.MethodPost)
	router.Handle("/predict-yield", adapt(h.PredictYield)).Methods(http.MethodPost)
	router.Handle("/health", adapt(h.Health)).Methods(http.MethodGet, http.MethodHead)
	router.Handle("/crops", adapt(h.Crops)).Methods(http.MethodGet, http.MethodHead)
	if metrics != nil {
		router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet, http.MethodHead)
	}

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &apiError{status: http.StatusNotFound, message: msgNotFound})
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, &apiError{status: http.StatusMethodNotAllowed, message: msgMethod})
	})

	// The router only runs its own middleware on matched routes, so the
	// chain wraps it from outside to cover 404 and 405 as well.
	var handler http.Handler = router
	handler = recoveryMiddleware(logger, metrics)(handler)
	handler = accessMiddleware(router, logger, metrics)(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func adapt(fn endpointFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, apiErr := fn(r)
		if apiErr != nil {
			writeError(w, apiErr)
			return
		}
		writeJSON(w, res.status, res.body)
	})
}

// Server runs the HTTP API until its context is cancelled.
type Server struct {
	cfg     config.Config
	logger  log.Logger
	metrics *Metrics
	http    *http.Server
}

// NewServer builds a server for set. The artifact status is published as a
// gauge before the first request.
func NewServer(cfg config.Config, set *artifact.Set, logger log.Logger) *Server {
	if logger == nil {
		logger = log.Nop()
	}
	metrics := NewMetrics()
	if set != nil {
		metrics.SetArtifacts(set.Status())
	}
	handlers := NewHandlers(set, logger, metrics)

	return &Server{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		http: &http.Server{
			Addr:              cfg.ListenAddr(),
			Handler:           NewRouter(handlers, metrics, logger),
			ReadTimeout:       cfg.ReadTimeout,
			ReadHeaderTimeout: cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
	}
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", s.http.Addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then drains in-flight
// requests for at most the shutdown timeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server listening", log.AddressKey, ln.Addr().String())
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "serve")
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout())
		defer cancel()

		s.logger.Info("shutting down server")
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return errors.Wrap(err, "shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	s.logger.Info("server stopped gracefully")
	return nil
}

func (s *Server) shutdownTimeout() time.Duration {
	if s.cfg.ShutdownTimeout > 0 {
		return s.cfg.ShutdownTimeout
	}
	return config.Default().ShutdownTimeout
}
