package config

import "time"

const (
	defaultConnectTimeout      = 30 * time.Second
	defaultMaxRetries          = 3
	defaultInitialRetryDelay   = 1 * time.Second
	defaultMaxRetryDelay       = 30 * time.Second
	defaultKeepaliveInterval   = 5 * time.Minute
	defaultHealthCheckInterval = 1 * time.Minute
)
