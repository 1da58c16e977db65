package transport

import (
	"github.com/go-logr/logr"

	"github.com/yago-123/meet-punch/pkg/metrics"
)

type config struct {
	logger  logr.Logger
	metrics *metrics.Metrics
}

func newDefaultConfig() *config {
	return &config{
		logger: logr.Discard(),
	}
}

type Option func(*config)

// WithLogger sets the logger to use for logging. Dropped sends and failed receives are logged at V(1)
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithMetrics sets where send and receive outcomes are counted. Defaults to metrics.Default()
func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}
