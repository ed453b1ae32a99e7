// Package server assembles the HTTP surface of the weights service. It
// runs two listeners: the service port carrying the authenticated API,
// and a management port carrying health probes and metrics so that
// operational endpoints stay reachable independently of API traffic and
// its rate limit.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"github.com/weightworks/weights-service/pkg/auth"
	werr "github.com/weightworks/weights-service/pkg/errors"
	"github.com/weightworks/weights-service/pkg/metrics"
	"github.com/weightworks/weights-service/pkg/weights"
)

// Server owns the two HTTP listeners of the service.
type Server struct {
	config  Config
	service *http.Server
	mgmt    *http.Server
}

// New assembles a Server from its parts. The middleware order on the
// service port, outermost first, is: request id, logging, metrics, rate
// limit, CORS, authentication. Authentication sits innermost so that
// every limited or rejected request is still counted and logged.
func New(cfg Config, verifier *auth.Verifier, handler *weights.Handler, m *metrics.Metrics, ready HealthChecker) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, werr.Wrap(err, werr.CodeValidation, "server: invalid configuration")
	}

	mux := http.NewServeMux()
	handler.Register(mux)

	// The route capture shim sits directly on the mux: the auth layer
	// replaces the request, so the matched pattern would never reach the
	// metrics middleware on the request itself.
	var inner http.Handler = mux
	if m != nil {
		inner = m.CaptureRoute(inner)
	}

	var api http.Handler = auth.HTTPMiddleware(verifier)(inner)

	if len(cfg.CORSAllowedOrigins) > 0 {
		api = cors.New(cors.Options{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			AllowedMethods: []string{
				http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
			},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(api)
	}

	if cfg.RateLimitRequests > 0 {
		limit := rate.Every(cfg.RateLimitWindow / time.Duration(cfg.RateLimitRequests))
		limiter := rate.NewLimiter(limit, cfg.RateLimitRequests)
		api = rateLimitMiddleware(limiter)(api)
	}

	if m != nil {
		api = m.Middleware(api)
	}
	api = loggingMiddleware(api)
	api = requestIDMiddleware(api)

	var metricsHandler http.Handler
	if m != nil {
		metricsHandler = m.Handler()
	}

	return &Server{
		config: cfg,
		service: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.ServicePort)),
			Handler:      api,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		mgmt: &http.Server{
			Addr:         net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.ManagementPort)),
			Handler:      newManagementHandler(ready, metricsHandler),
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}, nil
}

// Run starts both listeners and blocks until ctx is canceled or a
// listener fails. On cancellation both listeners are shut down
// gracefully within the configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 2)

	go func() {
		slog.Info("service listener starting", "addr", s.service.Addr)
		if err := s.service.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: service listener failed: %w", err)
		}
	}()
	go func() {
		slog.Info("management listener starting", "addr", s.mgmt.Addr)
		if err := s.mgmt.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server: management listener failed: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		s.shutdown(context.Background())
		return err
	case <-ctx.Done():
		slog.Info("shutdown requested")
		s.shutdown(context.Background())
		return nil
	}
}

// shutdown gracefully stops both listeners.
func (s *Server) shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.service.Shutdown(ctx); err != nil {
		slog.Warn("service listener shutdown failed", "error", err)
	}
	if err := s.mgmt.Shutdown(ctx); err != nil {
		slog.Warn("management listener shutdown failed", "error", err)
	}
}
