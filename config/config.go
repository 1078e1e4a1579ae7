package config

import (
	"fmt"
	"time"

	"github.com/velomail/imapkit/internal/logger"
	"github.com/velomail/imapkit/internal/tracing"
)

// ConnectionConfig describes one IMAP account connection. It is read-only
// after construction; Connections never mutate it.
type ConnectionConfig struct {
	Host     string `env:"IMAP_HOST"`
	Port     int    `env:"IMAP_PORT" envDefault:"993"`
	Username string `env:"IMAP_USERNAME"`
	Password string `env:"IMAP_PASSWORD"`
	UseTLS   bool   `env:"IMAP_TLS" envDefault:"true"`

	ConnectTimeout time.Duration `env:"IMAP_CONNECT_TIMEOUT" envDefault:"30s"`

	// Retry policy for Connect. Auth rejections are never retried.
	MaxRetries         int           `env:"IMAP_MAX_RETRIES" envDefault:"3"`
	InitialRetryDelay  time.Duration `env:"IMAP_INITIAL_RETRY_DELAY" envDefault:"1s"`
	ExponentialBackoff bool          `env:"IMAP_EXPONENTIAL_BACKOFF" envDefault:"true"`
	MaxRetryDelay      time.Duration `env:"IMAP_MAX_RETRY_DELAY" envDefault:"30s"`

	KeepaliveInterval   time.Duration `env:"IMAP_KEEPALIVE_INTERVAL" envDefault:"5m"`
	HealthCheckInterval time.Duration `env:"IMAP_HEALTH_CHECK_INTERVAL" envDefault:"1m"`
	MonitoringEnabled   bool          `env:"IMAP_MONITORING_ENABLED" envDefault:"true"`

	// UsePool opts the connection into session reuse via the pool passed at
	// construction (or the process default pool).
	UsePool bool `env:"IMAP_USE_POOL" envDefault:"false"`
}

// Address returns the host:port dial target.
func (c *ConnectionConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// PoolKey identifies the pool stack this connection draws from.
func (c *ConnectionConfig) PoolKey() string {
	return fmt.Sprintf("%s:%d:%s", c.Host, c.Port, c.Username)
}

// Validate checks the required fields and ranges.
func (c *ConnectionConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("host is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("maxRetries must be at least 1")
	}
	return nil
}

// PoolConfig bounds the process-wide connection pool.
type PoolConfig struct {
	MaxConnectionsPerKey int `env:"IMAP_POOL_MAX_PER_KEY" envDefault:"10"`

	// MaxIdleTime is how long a parked session stays eligible for reuse.
	// Older handles are discarded on checkout rather than probed.
	MaxIdleTime time.Duration `env:"IMAP_POOL_MAX_IDLE_TIME" envDefault:"5m"`
}

// Config is the top-level library configuration.
type Config struct {
	Connection *ConnectionConfig
	Pool       *PoolConfig
	Logger     *logger.Config
	Tracing    *tracing.JaegerConfig
}
