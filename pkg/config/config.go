// Package config holds the explicit configuration passed into the meet server, the peer transport and the session
// bootstrap. Nothing in the core reads process-wide constants.
package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yago-123/meet-punch/pkg/peer"
)

const (
	DefaultPort      = 4000
	DefaultMeetIP    = "176.246.73.156"
	DefaultMeetPort  = 5000
	DefaultTickRate  = 60.0
	DefaultListenIP  = "0.0.0.0"
	LocalMeetIP      = "127.0.0.1"
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config is the complete configuration of a meet server or a peer
type Config struct {
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
	Peer   PeerConfig   `yaml:"peer"`
}

// LogConfig selects verbosity and output format of the logrus backend
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// ServerConfig configures the meet server
type ServerConfig struct {
	ListenIP   string `yaml:"listen_ip"`
	ListenPort int    `yaml:"listen_port"`
	// StatusAddr enables the HTTP status API when not empty, e.g. "127.0.0.1:8080"
	StatusAddr string `yaml:"status_addr"`
}

// PeerConfig configures the peer side: its game socket, where the meet server lives and the game cadence
type PeerConfig struct {
	DefaultPort int     `yaml:"default_port"`
	MeetIP      string  `yaml:"meet_ip"`
	MeetPort    int     `yaml:"meet_port"`
	TickRate    float64 `yaml:"tick_rate"`

	// RetryInterval is how often the registration datagram is re-sent while waiting for a match. Zero sends it once
	RetryInterval time.Duration `yaml:"retry_interval"`
	// WaitTimeout bounds the wait for a match. Zero waits forever
	WaitTimeout time.Duration `yaml:"wait_timeout"`
	STUNServers []string      `yaml:"stun_servers"`
}

// Default returns the configuration the game ships with
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
		Server: ServerConfig{
			ListenIP:   DefaultListenIP,
			ListenPort: DefaultMeetPort,
		},
		Peer: PeerConfig{
			DefaultPort: DefaultPort,
			MeetIP:      DefaultMeetIP,
			MeetPort:    DefaultMeetPort,
			TickRate:    DefaultTickRate,
		},
	}
}

// Load reads and validates a YAML configuration file. Fields missing from the file keep their defaults
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse parses YAML configuration on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	var errs []string

	if !isValidLogLevel(c.Log.Level) {
		errs = append(errs, fmt.Sprintf("invalid log level: %s", c.Log.Level))
	}
	if !isValidLogFormat(c.Log.Format) {
		errs = append(errs, fmt.Sprintf("invalid log format: %s", c.Log.Format))
	}

	if net.ParseIP(c.Server.ListenIP) == nil {
		errs = append(errs, fmt.Sprintf("invalid server listen ip: %q", c.Server.ListenIP))
	}
	if !isValidPort(c.Server.ListenPort) {
		errs = append(errs, fmt.Sprintf("invalid server listen port: %d", c.Server.ListenPort))
	}

	if !isValidPort(c.Peer.DefaultPort) {
		errs = append(errs, fmt.Sprintf("invalid peer port: %d", c.Peer.DefaultPort))
	}
	if c.Peer.MeetIP == "" {
		errs = append(errs, "meet server address is required")
	}
	if c.Peer.MeetPort <= 0 || c.Peer.MeetPort > 65535 {
		errs = append(errs, fmt.Sprintf("invalid meet server port: %d", c.Peer.MeetPort))
	}
	if c.Peer.TickRate <= 0 {
		errs = append(errs, fmt.Sprintf("tick rate must be positive, got %v", c.Peer.TickRate))
	}
	if c.Peer.RetryInterval < 0 {
		errs = append(errs, "retry interval must not be negative")
	}
	if c.Peer.WaitTimeout < 0 {
		errs = append(errs, "wait timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// MeetServer resolves the configured meet server address
func (c *Config) MeetServer() (peer.Endpoint, error) {
	return peer.Resolve(net.JoinHostPort(c.Peer.MeetIP, fmt.Sprint(c.Peer.MeetPort)))
}

// TickInterval is the period of one game-logic update at the configured tick rate
func (c *Config) TickInterval() time.Duration {
	return time.Duration(float64(time.Second) / c.Peer.TickRate)
}

// isValidPort accepts 0 as "pick any free port"
func isValidPort(port int) bool {
	return port >= 0 && port <= 65535
}

func isValidLogLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

func isValidLogFormat(format string) bool {
	switch strings.ToLower(format) {
	case "text", "json":
		return true
	}
	return false
}
