package imap

import (
	"context"
	"time"

	"github.com/velomail/imapkit/internal/tracing"
)

// startHealthMonitorLocked launches the per-connection watchdog goroutine.
// Caller holds c.mu. Idempotent: a running monitor is left alone.
func (c *Connection) startHealthMonitorLocked() {
	if !c.cfg.MonitoringEnabled || c.monitorCancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.monitorCancel = cancel
	c.monitorDone = make(chan struct{})

	go c.runHealthChecks(ctx, c.monitorDone)
}

// stopHealthMonitor cancels the watchdog and waits for it to exit, so no
// probe races with teardown.
func (c *Connection) stopHealthMonitor() {
	c.mu.Lock()
	cancel := c.monitorCancel
	done := c.monitorDone
	c.monitorCancel = nil
	c.monitorDone = nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// runHealthChecks probes the connection at HealthCheckInterval and drives a
// reconnect when the probe fails. Reconnect failures are logged and retried
// on the next tick; the loop itself never gives up.
func (c *Connection) runHealthChecks(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer tracing.RecoverAndLog(c.log)

	ticker := time.NewTicker(c.cfg.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.checkAndRecover(ctx)
		}
	}
}

func (c *Connection) checkAndRecover(ctx context.Context) {
	if c.State() == StateClosed {
		return
	}
	if c.IsConnected() {
		return
	}

	c.log.Warnf("[%s] health check failed, reconnecting to %s", c.ID, c.cfg.Address())

	reconnectCtx, cancel := context.WithTimeout(ctx, c.cfg.ConnectTimeout*time.Duration(c.cfg.MaxRetries+1))
	defer cancel()

	if err := c.Reconnect(reconnectCtx); err != nil {
		c.log.Errorf("[%s] reconnect failed: %v", c.ID, err)
		return
	}
	c.log.Infof("[%s] reconnected to %s", c.ID, c.cfg.Address())
}
