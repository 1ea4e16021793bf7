// Package config loads the wanode configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/opd-ai/wacore/limits"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full configuration.
type Config struct {
	Log       Logging   `yaml:"log"`
	Store     Store     `yaml:"store"`
	Transport Transport `yaml:"transport"`
}

// Logging selects the logrus level and formatter.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Store selects where device keys are kept.
type Store struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Transport configures the connection to a peer.
type Transport struct {
	Endpoint         string        `yaml:"endpoint"`
	Origin           string        `yaml:"origin"`
	MaxFrameSize     int           `yaml:"max_frame_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: Logging{
			Level:  "info",
			Format: "text",
		},
		Store: Store{
			Backend: BackendMemory,
		},
		Transport: Transport{
			Endpoint:         "wss://web.whatsapp.com/ws/chat",
			Origin:           "https://web.whatsapp.com",
			MaxFrameSize:     limits.MaxFrameSize,
			HandshakeTimeout: 20 * time.Second,
		},
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q (want text or json)", ErrInvalidConfig, c.Log.Format)
	}

	switch c.Store.Backend {
	case BackendMemory:
	case BackendBolt, BackendSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("%w: store.path is required for the %s backend", ErrInvalidConfig, c.Store.Backend)
		}
	default:
		return fmt.Errorf("%w: store.backend %q", ErrInvalidConfig, c.Store.Backend)
	}

	if c.Transport.MaxFrameSize <= 0 || c.Transport.MaxFrameSize > limits.MaxFrameSize {
		return fmt.Errorf("%w: transport.max_frame_size must be in 1..%d", ErrInvalidConfig, limits.MaxFrameSize)
	}
	if c.Transport.HandshakeTimeout <= 0 {
		return fmt.Errorf("%w: transport.handshake_timeout must be positive", ErrInvalidConfig)
	}
	return nil
}

// Apply configures logger, or the standard logger when nil.
func (l Logging) Apply(logger *logrus.Logger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	level, err := logrus.ParseLevel(l.Level)
	if err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalidConfig, err)
	}
	logger.SetLevel(level)

	switch l.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalidConfig, l.Format)
	}
	return nil
}
