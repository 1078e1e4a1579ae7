package imap

import (
	"sync"
	"time"

	"github.com/velomail/imapkit/config"
	"github.com/velomail/imapkit/interfaces"
	"github.com/velomail/imapkit/internal/logger"
)

// Pool parks authenticated sessions keyed by host:port:username so that a
// Disconnect/Connect cycle against the same account skips the dial and LOGIN
// round trips. Reuse is last-in-first-out: the most recently parked handle is
// the one least likely to have been idled out by the server.
type Pool struct {
	cfg *config.PoolConfig
	log logger.Logger

	mu   sync.Mutex
	idle map[string][]pooledSession
}

type pooledSession struct {
	session  Session
	parkedAt time.Time
}

func NewPool(cfg *config.PoolConfig, log logger.Logger) *Pool {
	return &Pool{
		cfg:  cfg,
		log:  log,
		idle: make(map[string][]pooledSession),
	}
}

var (
	defaultPool     *Pool
	defaultPoolOnce sync.Once
)

// DefaultPool returns the process-wide pool, created on first use with
// default bounds.
func DefaultPool(log logger.Logger) *Pool {
	defaultPoolOnce.Do(func() {
		defaultPool = NewPool(&config.PoolConfig{
			MaxConnectionsPerKey: 10,
			MaxIdleTime:          5 * time.Minute,
		}, log)
	})
	return defaultPool
}

// Checkout pops the most recently parked session for key. Handles parked
// longer than MaxIdleTime are dropped on the way; the caller still verifies
// the returned session with a probe before adopting it.
func (p *Pool) Checkout(key string) (Session, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	stack := p.idle[key]
	cutoff := time.Now().Add(-p.cfg.MaxIdleTime)

	for len(stack) > 0 {
		last := len(stack) - 1
		candidate := stack[last]
		stack = stack[:last]

		if candidate.parkedAt.Before(cutoff) {
			p.log.Debugf("pool: dropping stale session for %s (parked %v)", key, candidate.parkedAt)
			go quietLogout(candidate.session)
			continue
		}

		p.storeStackLocked(key, stack)
		return candidate.session, true
	}

	p.storeStackLocked(key, stack)
	return nil, false
}

// Return parks a healthy session for reuse. It reports false when the stack
// for key is full, in which case the caller owns the logout.
func (p *Pool) Return(key string, sess Session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	stack := p.idle[key]
	if len(stack) >= p.cfg.MaxConnectionsPerKey {
		return false
	}

	p.idle[key] = append(stack, pooledSession{session: sess, parkedAt: time.Now()})
	return true
}

// Clear logs out and drops every parked session.
func (p *Pool) Clear() {
	p.mu.Lock()
	drained := p.idle
	p.idle = make(map[string][]pooledSession)
	p.mu.Unlock()

	for key, stack := range drained {
		for _, ps := range stack {
			go quietLogout(ps.session)
		}
		p.log.Debugf("pool: cleared %d sessions for %s", len(stack), key)
	}
}

// Stats reports current occupancy.
func (p *Pool) Stats() interfaces.PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := interfaces.PoolStats{MaxPerKey: p.cfg.MaxConnectionsPerKey}
	for _, stack := range p.idle {
		if len(stack) == 0 {
			continue
		}
		stats.ActiveKeys++
		stats.PooledTotal += len(stack)
	}
	return stats
}

func (p *Pool) storeStackLocked(key string, stack []pooledSession) {
	if len(stack) == 0 {
		delete(p.idle, key)
		return
	}
	p.idle[key] = stack
}
