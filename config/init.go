package config

import (
	"log"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/velomail/imapkit/internal/logger"
	"github.com/velomail/imapkit/internal/tracing"
)

func InitConfig() (*Config, error) {
	config := &Config{
		Connection: &ConnectionConfig{},
		Pool:       &PoolConfig{},
		Logger:     &logger.Config{},
		Tracing:    &tracing.JaegerConfig{},
	}

	err := godotenv.Load()
	if err != nil {
		log.Print("Unable to load .env file")
	}

	err = env.Parse(config)
	if err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConnectionConfig returns a config with the documented defaults,
// for callers that construct configs in code rather than the environment.
func DefaultConnectionConfig(host, username, password string) *ConnectionConfig {
	cfg := &ConnectionConfig{
		Host:     host,
		Username: username,
		Password: password,
	}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *ConnectionConfig) {
	cfg.Port = 993
	cfg.UseTLS = true
	cfg.ConnectTimeout = defaultConnectTimeout
	cfg.MaxRetries = defaultMaxRetries
	cfg.InitialRetryDelay = defaultInitialRetryDelay
	cfg.ExponentialBackoff = true
	cfg.MaxRetryDelay = defaultMaxRetryDelay
	cfg.KeepaliveInterval = defaultKeepaliveInterval
	cfg.HealthCheckInterval = defaultHealthCheckInterval
	cfg.MonitoringEnabled = true
}
