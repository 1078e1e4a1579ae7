package imap

import (
	"context"
	"sync"
	"time"

	cronv3 "github.com/robfig/cron/v3"

	"github.com/velomail/imapkit/internal/logger"
	"github.com/velomail/imapkit/internal/tracing"
)

// Supervisor sweeps a set of registered connections on a cron schedule and
// reconnects the ones that went dark. It complements the per-connection
// watchdog: connections created with MonitoringEnabled=false can still be
// kept alive centrally by registering them here.
type Supervisor struct {
	log  logger.Logger
	cron *cronv3.Cron

	mu          sync.Mutex
	connections map[string]*Connection
	jobID       cronv3.EntryID
	started     bool
}

func NewSupervisor(log logger.Logger) *Supervisor {
	return &Supervisor{
		log:         log,
		connections: make(map[string]*Connection),
	}
}

// Register adds a connection to the sweep set. Safe while running.
func (s *Supervisor) Register(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[conn.ID] = conn
}

// Unregister removes a connection from the sweep set.
func (s *Supervisor) Unregister(conn *Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.connections, conn.ID)
}

// Start schedules the sweep at the given interval.
func (s *Supervisor) Start(interval time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	c := cronv3.New(
		cronv3.WithChain(
			cronv3.SkipIfStillRunning(cronv3.DefaultLogger),
			cronv3.Recover(cronv3.DefaultLogger),
		),
	)

	id, err := c.AddFunc("@every "+interval.String(), func() {
		defer tracing.RecoverAndLog(s.log)
		s.sweep()
	})
	if err != nil {
		return err
	}

	c.Start()
	s.cron = c
	s.jobID = id
	s.started = true
	s.log.Infof("supervisor started, sweeping every %v", interval)
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cron := s.cron
	s.cron = nil
	s.started = false
	s.mu.Unlock()

	if cron == nil {
		return
	}
	<-cron.Stop().Done()
	s.log.Info("supervisor stopped")
}

func (s *Supervisor) sweep() {
	span, ctx := tracing.StartTracerSpan(context.Background(), "Supervisor.sweep")
	defer span.Finish()
	tracing.TagComponentSupervisor(span)

	s.mu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for _, conn := range s.connections {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		if conn.State() == StateClosed {
			continue
		}
		if conn.IsConnected() {
			continue
		}

		s.log.Warnf("[%s] supervisor found dead connection to %s, reconnecting", conn.ID, conn.cfg.Address())
		if err := conn.Reconnect(ctx); err != nil {
			tracing.TraceErr(span, err)
			s.log.Errorf("[%s] supervisor reconnect failed: %v", conn.ID, err)
		}
	}
}
