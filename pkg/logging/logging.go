// Package logging builds the logr.Logger used across the module, backed by logrus
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/bombsimon/logrusr/v4"
	"github.com/go-logr/logr"
	"github.com/sirupsen/logrus"
)

// Common keys for consistent structured logging
const (
	KeyComponent = "component"
	KeyEndpoint  = "endpoint"
	KeyPeer      = "peer"
	KeyLocalAddr = "localAddr"
	KeyPoolSize  = "poolSize"
)

// NewLogger creates a logger writing to stderr with the given level and format.
// Supported levels: debug, info, warn, error. Supported formats: text, json
func NewLogger(level, format string) logr.Logger {
	return NewLoggerWithWriter(level, format, os.Stderr)
}

// NewLoggerWithWriter creates a logger writing to w
func NewLoggerWithWriter(level, format string, w io.Writer) logr.Logger {
	return logrusr.New(NewLogrus(level, format, w))
}

// NewLogrus returns the configured logrus backend, for callers that want the logrus API directly
func NewLogrus(level, format string, w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(parseLevel(level))

	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logger
}

func parseLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "warn", "warning":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}
