package server

import (
	"net/http"
	"net/url"
	"time"
)

// SessionConfig holds configuration for live sessions.
type SessionConfig struct {
	// ReadTimeout is the maximum time to wait for a message or a pong.
	// Default: 60 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	// Default: 10 seconds.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between pings. It must be shorter than
	// ReadTimeout. Default: 30 seconds.
	HeartbeatInterval time.Duration

	// MaxMessageSize is the maximum size of an incoming message.
	// Default: 64KB.
	MaxMessageSize int64
}

// DefaultSessionConfig returns a SessionConfig with sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    64 * 1024,
	}
}

// Config holds the server configuration.
type Config struct {
	// Address is the listen address. Default: "localhost:3000".
	Address string

	// Live enables the live session route. DefaultConfig enables it.
	Live bool

	ReadHeaderTimeout time.Duration
	IdleTimeout       time.Duration

	// ShutdownTimeout bounds graceful shutdown. Default: 10 seconds.
	ShutdownTimeout time.Duration

	Session SessionConfig

	// CheckOrigin validates the Origin of WebSocket upgrades.
	// Default: SameOriginCheck.
	CheckOrigin func(r *http.Request) bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:           "localhost:3000",
		Live:              true,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		Session:           DefaultSessionConfig(),
		CheckOrigin:       SameOriginCheck,
	}
}

// withDefaults returns a copy of c with zero fields set to their defaults.
func (c *Config) withDefaults() *Config {
	d := DefaultConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.Address == "" {
		out.Address = d.Address
	}
	if out.ReadHeaderTimeout == 0 {
		out.ReadHeaderTimeout = d.ReadHeaderTimeout
	}
	if out.IdleTimeout == 0 {
		out.IdleTimeout = d.IdleTimeout
	}
	if out.ShutdownTimeout == 0 {
		out.ShutdownTimeout = d.ShutdownTimeout
	}
	if out.Session.ReadTimeout == 0 {
		out.Session.ReadTimeout = d.Session.ReadTimeout
	}
	if out.Session.WriteTimeout == 0 {
		out.Session.WriteTimeout = d.Session.WriteTimeout
	}
	if out.Session.HeartbeatInterval == 0 {
		out.Session.HeartbeatInterval = d.Session.HeartbeatInterval
	}
	if out.Session.MaxMessageSize == 0 {
		out.Session.MaxMessageSize = d.Session.MaxMessageSize
	}
	if out.CheckOrigin == nil {
		out.CheckOrigin = d.CheckOrigin
	}
	return &out
}

// SameOriginCheck accepts upgrades without an Origin header or whose Origin
// host matches the request host.
func SameOriginCheck(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return r.Host != "" && u.Host == r.Host
}
