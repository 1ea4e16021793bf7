package main

import (
	"flag"
	"time"

	"github.com/opd-ai/wacore/config"
)

// commonFlags are accepted by every command and override the config file.
type commonFlags struct {
	fs *flag.FlagSet

	configPath       string
	logLevel         string
	logFormat        string
	storeBackend     string
	storePath        string
	endpoint         string
	origin           string
	maxFrameSize     int
	handshakeTimeout time.Duration
}

func registerCommonFlags(fs *flag.FlagSet) *commonFlags {
	c := &commonFlags{fs: fs}
	fs.StringVar(&c.configPath, "config", "", "path to YAML config file")
	fs.StringVar(&c.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.StringVar(&c.logFormat, "log-format", "", "log format (text, json)")
	fs.StringVar(&c.storeBackend, "store", "", "store backend (memory, bolt, sqlite)")
	fs.StringVar(&c.storePath, "store-path", "", "store file for the bolt and sqlite backends")
	fs.StringVar(&c.endpoint, "endpoint", "", "websocket endpoint for dial")
	fs.StringVar(&c.origin, "origin", "", "Origin header for dial")
	fs.IntVar(&c.maxFrameSize, "max-frame-size", 0, "largest frame accepted, in bytes")
	fs.DurationVar(&c.handshakeTimeout, "handshake-timeout", 0, "handshake deadline")
	return c
}

func (c *commonFlags) isSet(name string) bool {
	found := false
	c.fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// load reads the config file (or defaults), applies flag overrides,
// validates, and configures logging.
func (c *commonFlags) load() (*config.Config, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}

	if c.isSet("log-level") {
		cfg.Log.Level = c.logLevel
	}
	if c.isSet("log-format") {
		cfg.Log.Format = c.logFormat
	}
	if c.isSet("store") {
		cfg.Store.Backend = c.storeBackend
	}
	if c.isSet("store-path") {
		cfg.Store.Path = c.storePath
	}
	if c.isSet("endpoint") {
		cfg.Transport.Endpoint = c.endpoint
	}
	if c.isSet("origin") {
		cfg.Transport.Origin = c.origin
	}
	if c.isSet("max-frame-size") {
		cfg.Transport.MaxFrameSize = c.maxFrameSize
	}
	if c.isSet("handshake-timeout") {
		cfg.Transport.HandshakeTimeout = c.handshakeTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Log.Apply(nil); err != nil {
		return nil, err
	}
	return cfg, nil
}
