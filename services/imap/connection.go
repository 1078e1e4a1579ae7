// Package imap manages IMAP-over-TLS sessions: connection lifecycle with
// retry and backoff, a keyed pool with health-verified reuse, background
// health monitoring, and per-connection operation metrics.
package imap

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jpillora/backoff"
	"github.com/pkg/errors"

	"github.com/velomail/imapkit/config"
	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/interfaces"
	"github.com/velomail/imapkit/internal/logger"
	"github.com/velomail/imapkit/internal/tracing"
)

// State is the connection lifecycle phase. A Connection is in exactly one
// state at any moment; all operation methods require StateAuthenticated.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateAuthenticated
	StateBroken
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateAuthenticated:
		return "authenticated"
	case StateBroken:
		return "broken"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

const (
	probeTimeout  = 10 * time.Second
	logoutTimeout = 5 * time.Second
)

// Connection is a single authenticated IMAP session with reliability
// features layered on top of the wire codec. At most one command is in
// flight per Connection; concurrency is achieved by holding several
// Connections, typically via the Pool.
type Connection struct {
	ID  string
	cfg *config.ConnectionConfig
	log logger.Logger

	pool *Pool // nil when pooling is disabled

	mu          sync.Mutex
	session     Session
	state       State
	connectedAt time.Time

	metrics *ConnectionMetrics

	monitorCancel context.CancelFunc
	monitorDone   chan struct{}
}

// NewConnection builds an unconnected Connection. When cfg.UsePool is set
// the process default pool is used; use NewConnectionWithPool to supply an
// explicit one.
func NewConnection(cfg *config.ConnectionConfig, log logger.Logger) *Connection {
	var pool *Pool
	if cfg.UsePool {
		pool = DefaultPool(log)
	}
	return NewConnectionWithPool(cfg, pool, log)
}

func NewConnectionWithPool(cfg *config.ConnectionConfig, pool *Pool, log logger.Logger) *Connection {
	return &Connection{
		ID:      uuid.NewString(),
		cfg:     cfg,
		log:     log,
		pool:    pool,
		state:   StateIdle,
		metrics: newConnectionMetrics(),
	}
}

// Config returns the immutable connection configuration.
func (c *Connection) Config() *config.ConnectionConfig {
	return c.cfg
}

// Metrics returns a snapshot of the connection counters.
func (c *Connection) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// State returns the current lifecycle phase.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAuthenticated reports whether operations may be issued right now.
func (c *Connection) IsAuthenticated() bool {
	return c.State() == StateAuthenticated
}

// Connect establishes (or adopts from the pool) an authenticated session.
// Transport failures are retried with backoff up to MaxRetries times after
// the initial attempt; a rejected LOGIN is surfaced immediately and never
// retried. Safe to call on a Broken connection to re-establish it.
func (c *Connection) Connect(ctx context.Context) error {
	span, ctx := tracing.StartSpanFromContext(ctx, "Connection.Connect")
	defer span.Finish()
	tracing.TagComponentConnection(span)
	span.SetTag(tracing.SpanTagHost, c.cfg.Host)
	span.SetTag(tracing.SpanTagUser, c.cfg.Username)

	if err := c.cfg.Validate(); err != nil {
		verr := imapkit_errors.NewValidationError("invalid connection config: %v", err)
		tracing.TraceErr(span, verr)
		return verr
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateAuthenticated {
		return nil
	}
	c.state = StateConnecting

	// Pooled sessions are adopted only after a verification probe; anything
	// short of an OK response discards the handle.
	if c.pool != nil {
		if sess, ok := c.pool.Checkout(c.cfg.PoolKey()); ok {
			if err := probeSession(sess); err == nil {
				c.log.Infof("[%s] adopted pooled session for %s", c.ID, c.cfg.PoolKey())
				c.adoptSessionLocked(sess)
				return nil
			}
			c.log.Warnf("[%s] pooled session failed verification, discarding", c.ID)
			go quietLogout(sess)
		}
	}

	sess, err := c.dialWithRetryLocked(ctx)
	if err != nil {
		c.state = StateBroken
		tracing.TraceErr(span, err)
		return err
	}

	c.adoptSessionLocked(sess)
	c.log.Infof("[%s] connected to %s as %s", c.ID, c.cfg.Address(), c.cfg.Username)
	return nil
}

// retryBackoff builds the delay engine for the connect loop: delays grow
// from InitialRetryDelay, doubling when exponential backoff is enabled,
// capped at MaxRetryDelay.
func retryBackoff(cfg *config.ConnectionConfig) *backoff.Backoff {
	factor := 2.0
	if !cfg.ExponentialBackoff {
		factor = 1.0
	}
	return &backoff.Backoff{
		Min:    cfg.InitialRetryDelay,
		Max:    cfg.MaxRetryDelay,
		Factor: factor,
		Jitter: false,
	}
}

// dialWithRetryLocked runs the dial/login loop under the connection mutex:
// one initial attempt plus up to MaxRetries retries.
func (c *Connection) dialWithRetryLocked(ctx context.Context) (Session, error) {
	b := retryBackoff(c.cfg)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, imapkit_errors.NewConnectionError(err, "connect cancelled")
		}
		if attempt > 0 {
			delay := b.ForAttempt(float64(attempt - 1))
			c.log.Warnf("[%s] connect attempt %d/%d failed, retrying in %v: %v",
				c.ID, attempt, c.cfg.MaxRetries+1, delay, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, imapkit_errors.NewConnectionError(ctx.Err(), "connect cancelled during backoff")
			}
		}

		c.metrics.recordAttempt()

		sess, err := dialSession(c.cfg)
		if err != nil {
			lastErr = imapkit_errors.NewConnectionError(err, "failed to connect to %s", c.cfg.Address())
			c.metrics.recordConnectFailure(lastErr)
			continue
		}

		sess.SetTimeout(c.cfg.ConnectTimeout)

		caps, err := sess.Capability()
		if err != nil {
			lastErr = imapkit_errors.NewConnectionError(err, "capability check failed")
			c.metrics.recordConnectFailure(lastErr)
			go quietLogout(sess)
			continue
		}
		c.log.Debugf("[%s] server capabilities: %v", c.ID, caps)

		if err := sess.Login(c.cfg.Username, c.cfg.Password); err != nil {
			// A rejected LOGIN will not improve on retry.
			authErr := imapkit_errors.NewAuthError(err, "login rejected for %s", c.cfg.Username)
			c.metrics.recordConnectFailure(authErr)
			go quietLogout(sess)
			return nil, authErr
		}

		sess.SetTimeout(0)
		c.metrics.recordConnectSuccess()
		return sess, nil
	}

	return nil, errors.Wrapf(lastErr, "exhausted %d connect attempts", c.cfg.MaxRetries+1)
}

func (c *Connection) adoptSessionLocked(sess Session) {
	c.session = sess
	c.connectedAt = time.Now()
	c.state = StateAuthenticated
	c.startHealthMonitorLocked()
}

// Disconnect ends the session: the handle is returned to the pool when still
// healthy, logged out otherwise. The health monitor is stopped first. The
// Connection is not reusable until Connect is called again.
func (c *Connection) Disconnect() error {
	c.stopHealthMonitor()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		c.state = StateClosed
		return nil
	}

	sess := c.session
	healthy := c.state == StateAuthenticated

	c.metrics.recordUptime(c.connectedAt)
	c.session = nil
	c.connectedAt = time.Time{}
	c.state = StateClosed

	if c.pool != nil && healthy {
		if c.pool.Return(c.cfg.PoolKey(), sess) {
			c.log.Debugf("[%s] session returned to pool %s", c.ID, c.cfg.PoolKey())
			return nil
		}
		c.log.Debugf("[%s] pool full for %s, logging out", c.ID, c.cfg.PoolKey())
	}

	return logoutWithTimeout(sess, c.log, c.ID)
}

// Reconnect drops the current session and dials fresh. Used by the health
// monitor; callers may also invoke it after observing a Broken state.
func (c *Connection) Reconnect(ctx context.Context) error {
	c.metrics.recordReconnectAttempt()

	c.mu.Lock()
	if c.session != nil {
		go quietLogout(c.session)
		c.metrics.recordUptime(c.connectedAt)
		c.session = nil
		c.connectedAt = time.Time{}
	}
	c.state = StateBroken
	c.mu.Unlock()

	return c.Connect(ctx)
}

// IsConnected sends a NOOP probe and reports whether the server answered OK.
// A failed probe marks the Connection Broken.
func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated || c.session == nil {
		return false
	}

	if err := probeSession(c.session); err != nil {
		c.log.Warnf("[%s] liveness probe failed: %v", c.ID, err)
		c.state = StateBroken
		return false
	}
	return true
}

// HealthCheck returns a point-in-time health snapshot. The only side effect
// is the NOOP probe behind IsConnected.
func (c *Connection) HealthCheck() interfaces.ConnectionHealth {
	connected := c.IsConnected()
	snap := c.metrics.Snapshot()

	c.mu.Lock()
	var age time.Duration
	if !c.connectedAt.IsZero() {
		age = time.Since(c.connectedAt)
	}
	c.mu.Unlock()

	return interfaces.ConnectionHealth{
		Connected:           connected,
		SessionAge:          age,
		TotalOperations:     snap.TotalOperations,
		FailedOperations:    snap.FailedOperations,
		SuccessRate:         snap.SuccessRate(),
		AverageResponseTime: snap.AverageResponseTime,
		LastError:           snap.LastError,
	}
}

// command wraps one IMAP verb: state precondition, socket timeout, latency
// metrics, and broken-state detection on transport errors. The mutex is held
// for the duration, which is what enforces one command in flight.
func (c *Connection) command(ctx context.Context, name string, fn func(Session) error) error {
	span, _ := tracing.StartSpanFromContext(ctx, "Connection."+name)
	defer span.Finish()
	tracing.TagComponentConnection(span)

	if err := ctx.Err(); err != nil {
		return imapkit_errors.NewConnectionError(err, "%s cancelled", name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateAuthenticated || c.session == nil {
		tracing.TraceErr(span, imapkit_errors.ErrNotConnected)
		return imapkit_errors.ErrNotConnected
	}

	sess := c.session
	sess.SetTimeout(c.cfg.ConnectTimeout)
	start := time.Now()
	err := fn(sess)
	elapsed := time.Since(start)
	sess.SetTimeout(0)

	c.metrics.recordOperation(elapsed, err)

	if err != nil {
		if imapkit_errors.IsConnectionError(err) {
			c.state = StateBroken
		}
		tracing.TraceErr(span, err)
	}
	return err
}

func probeSession(sess Session) error {
	sess.SetTimeout(probeTimeout)
	err := sess.Noop()
	sess.SetTimeout(0)
	return err
}

// logoutWithTimeout performs LOGOUT in a goroutine and abandons it if the
// server does not answer within logoutTimeout.
func logoutWithTimeout(sess Session, log logger.Logger, id string) error {
	sess.SetTimeout(logoutTimeout)

	done := make(chan error, 1)
	go func() {
		done <- sess.Logout()
	}()

	select {
	case err := <-done:
		if err != nil {
			log.Warnf("[%s] error during logout: %v", id, err)
			return err
		}
		return nil
	case <-time.After(logoutTimeout + time.Second):
		log.Warnf("[%s] logout timed out", id)
		return imapkit_errors.NewConnectionError(nil, "logout timed out")
	}
}

func quietLogout(sess Session) {
	sess.SetTimeout(logoutTimeout)
	_ = sess.Logout()
}
