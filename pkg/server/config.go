package server

import (
	"time"

	werr "github.com/weightworks/weights-service/pkg/errors"
)

// Default server settings. The service listens on two ports: the service
// port carries the API, the management port carries health probes and
// metrics so they stay reachable when the API is rate limited.
const (
	DefaultServicePort    = 8080
	DefaultManagementPort = 8081

	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = time.Minute
	DefaultShutdownTimeout = 15 * time.Second

	// DefaultRateLimit allows 50 requests per 5-second window.
	DefaultRateLimitRequests = 50
	DefaultRateLimitWindow   = 5 * time.Second
)

// Config holds the HTTP server settings.
type Config struct {
	// Host is the interface to bind. Empty binds all interfaces.
	Host string `yaml:"host" json:"host,omitempty" env:"SERVER_HOST"`

	// ServicePort is the port serving the API.
	ServicePort int `yaml:"service_port" json:"service_port" env:"SERVER_SERVICE_PORT" envDefault:"8080"`

	// ManagementPort is the port serving health probes and metrics.
	ManagementPort int `yaml:"management_port" json:"management_port" env:"SERVER_MANAGEMENT_PORT" envDefault:"8081"`

	// ReadTimeout bounds reading the full request including the body.
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout,omitempty" env:"SERVER_READ_TIMEOUT" envDefault:"10s"`

	// WriteTimeout bounds writing the response.
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout,omitempty" env:"SERVER_WRITE_TIMEOUT" envDefault:"10s"`

	// IdleTimeout bounds keep-alive connections between requests.
	IdleTimeout time.Duration `yaml:"idle_timeout" json:"idle_timeout,omitempty" env:"SERVER_IDLE_TIMEOUT" envDefault:"1m"`

	// ShutdownTimeout bounds graceful shutdown on termination.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout,omitempty" env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"15s"`

	// RateLimitRequests is the number of requests allowed per window.
	// Zero disables rate limiting.
	RateLimitRequests int `yaml:"rate_limit_requests" json:"rate_limit_requests,omitempty" env:"SERVER_RATE_LIMIT_REQUESTS" envDefault:"50"`

	// RateLimitWindow is the window the request allowance applies to.
	RateLimitWindow time.Duration `yaml:"rate_limit_window" json:"rate_limit_window,omitempty" env:"SERVER_RATE_LIMIT_WINDOW" envDefault:"5s"`

	// CORSAllowedOrigins lists origins allowed for cross-origin requests.
	// Empty disables CORS handling.
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins" json:"cors_allowed_origins,omitempty" env:"SERVER_CORS_ALLOWED_ORIGINS"`
}

// Validate checks the configuration and applies defaults for zero-valued
// fields.
func (c *Config) Validate() error {
	if c.ServicePort == 0 {
		c.ServicePort = DefaultServicePort
	}
	if c.ManagementPort == 0 {
		c.ManagementPort = DefaultManagementPort
	}
	if c.ServicePort < 1 || c.ServicePort > 65535 {
		return werr.Newf(werr.CodeValidationRange,
			"server: service_port must be between 1 and 65535, got %d", c.ServicePort)
	}
	if c.ManagementPort < 1 || c.ManagementPort > 65535 {
		return werr.Newf(werr.CodeValidationRange,
			"server: management_port must be between 1 and 65535, got %d", c.ManagementPort)
	}
	if c.ServicePort == c.ManagementPort {
		return werr.New(werr.CodeValidation,
			"server: service_port and management_port must differ")
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
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	if c.RateLimitRequests < 0 {
		return werr.New(werr.CodeValidationRange,
			"server: rate_limit_requests must not be negative")
	}
	if c.RateLimitRequests > 0 && c.RateLimitWindow == 0 {
		c.RateLimitWindow = DefaultRateLimitWindow
	}
	return nil
}
