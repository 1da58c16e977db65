package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yago-123/meet-punch/pkg/logging"
	"github.com/yago-123/meet-punch/pkg/rendez/store"
)

const (
	ServerReadTimeout  = 5 * time.Second
	ServerWriteTimeout = 5 * time.Second
	ServerIdleTimeout  = 10 * time.Second
	MaxHeaderBytes     = 1 << 20
)

// StatusServer exposes health, the waiting pool and Prometheus metrics over HTTP. It only reads the pool
type StatusServer struct {
	handlers   *Handler
	gatherer   prometheus.Gatherer
	httpServer *http.Server
	logger     logr.Logger
}

func NewStatusServer(p store.Pool, gatherer prometheus.Gatherer, logger logr.Logger) *StatusServer {
	return &StatusServer{
		handlers: NewHandler(p),
		gatherer: gatherer,
		logger:   logger,
	}
}

// Router builds the gin engine serving the status routes
func (s *StatusServer) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/health", s.handlers.HealthHandler)
	r.GET("/pool", s.handlers.PoolHandler)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	return r
}

// Start binds addr and serves in the background. Binding errors are returned, later serve errors are logged
func (s *StatusServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.httpServer = &http.Server{
		Addr:           addr,
		Handler:        s.Router(),
		ReadTimeout:    ServerReadTimeout,
		WriteTimeout:   ServerWriteTimeout,
		IdleTimeout:    ServerIdleTimeout,
		MaxHeaderBytes: MaxHeaderBytes,
	}

	s.logger.Info("Status API listening", logging.KeyLocalAddr, ln.Addr().String())

	go func() {
		if errServe := s.httpServer.Serve(ln); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			s.logger.Error(errServe, "Status API stopped")
		}
	}()

	return nil
}

func (s *StatusServer) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *StatusServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.V(1).Info("Status request", "method", c.Request.Method, "path", c.Request.URL.Path,
			"status", c.Writer.Status(), "duration", time.Since(start).String())
	}
}
