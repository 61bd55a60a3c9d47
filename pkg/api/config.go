package api

import (
	"net"
	"strconv"
	"time"
)

// Default API server settings.
const (
	DefaultAddress      = "127.0.0.1"
	DefaultPort         = 8080
	DefaultReadTimeout  = 10 * time.Second
	DefaultWriteTimeout = 10 * time.Second
	DefaultIdleTimeout  = time.Minute
)

// Config configures the control API server.
//
// The API is unauthenticated, so it listens on loopback unless Address says
// otherwise.
type Config struct {
	// Enabled is a pointer so that an omitted key keeps the API on.
	Enabled *bool `mapstructure:"enabled" yaml:"enabled"`

	// Address is the interface to bind. Default: 127.0.0.1
	Address string `mapstructure:"address" validate:"omitempty,ip|hostname" yaml:"address"`

	// Port is the TCP port. Default: 8080
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`

	// ReadTimeout covers reading the whole request. Default: 10s
	ReadTimeout time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout covers writing a response. Event streams lift it.
	// Default: 10s
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout bounds keep-alive connections. Default: 60s
	IdleTimeout time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// IsEnabled reports whether the API should be served. Unset means yes.
func (c *Config) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}

// ListenAddr returns the host:port to bind.
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// ApplyDefaults fills unset fields. Out-of-range values are left for
// validation to reject.
func (c *Config) ApplyDefaults() {
	if c.Address == "" {
		c.Address = DefaultAddress
	}
	if c.Port <= 0 {
		c.Port = DefaultPort
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
}
