package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ochronus/goseedr/internal/app"
	"github.com/ochronus/goseedr/internal/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Server represents the HTTP server
type Server struct {
	container *app.Container
	config    *config.Config
	handler   *Handler
	logger    *logrus.Logger
	router    *gin.Engine
	srv       *http.Server
}

// ServerOption customizes the server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	gatherer prometheus.Gatherer
}

// WithGatherer sets the registry exposed on /metrics (default: prometheus.DefaultGatherer).
func WithGatherer(g prometheus.Gatherer) ServerOption {
	return func(o *serverOptions) {
		o.gatherer = g
	}
}

// NewServer creates a new HTTP server
func NewServer(container *app.Container, opts ...ServerOption) *Server {
	cfg := container.Config
	options := serverOptions{gatherer: prometheus.DefaultGatherer}
	for _, opt := range opts {
		opt(&options)
	}

	// Set gin mode based on log level
	if cfg.Loglevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(container.Logger))
	router.Use(metricsMiddleware())

	handler := NewHandler(container)

	// Register routes
	router.POST("/transmission/rpc", handler.RPCPost)
	router.GET("/transmission/rpc", handler.RPCGet)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(options.gatherer, promhttp.HandlerOpts{})))

	return &Server{
		container: container,
		config:    cfg,
		handler:   handler,
		logger:    container.Logger,
		router:    router,
	}
}

// Handler returns the router wrapped in OpenTelemetry instrumentation.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.router, "goseedr-bridge",
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/metrics"
		}),
	)
}

// Start starts the HTTP server with a background context.
func (s *Server) Start() error {
	return s.StartWithContext(context.Background())
}

// StartWithContext starts the HTTP server and shuts down gracefully when the context is canceled.
func (s *Server) StartWithContext(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Bridge.BindAddress, s.config.Bridge.Port)
	s.logger.Infof("Starting Transmission bridge at http://%s", addr)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

// GetRouter returns the underlying gin router (useful for testing)
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}
