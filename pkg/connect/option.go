package connect

import (
	"time"

	"github.com/go-logr/logr"

	"github.com/yago-123/meet-punch/pkg/metrics"
)

type config struct {
	waitInterval time.Duration
	stunServers  []string
	logger       logr.Logger
	metrics      *metrics.Metrics
}

func newDefaultConfig() *config {
	return &config{
		logger: logr.Discard(),
	}
}

type Option func(*config)

// WithWaitInterval repeats the registration every interval while waiting for the peer. 0 registers once
func WithWaitInterval(interval time.Duration) Option {
	return func(cfg *config) {
		cfg.waitInterval = interval
	}
}

// WithSTUNServers enables public endpoint discovery through the given STUN servers (host:port). The result is only
// logged, pairing relies on the address the meet server observes
func WithSTUNServers(servers ...string) Option {
	return func(cfg *config) {
		cfg.stunServers = servers
	}
}

// WithLogger sets the logger to use for logging. The logger must implement the logr.Logger interface
func WithLogger(logger logr.Logger) Option {
	return func(cfg *config) {
		cfg.logger = logger
	}
}

// WithMetrics sets where the resulting transport counts its traffic
func WithMetrics(m *metrics.Metrics) Option {
	return func(cfg *config) {
		cfg.metrics = m
	}
}
