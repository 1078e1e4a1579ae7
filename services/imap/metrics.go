package imap

import (
	"sync"
	"time"
)

// ConnectionMetrics tracks counters and latency observations for one
// Connection. Mutated only by the owning Connection's operation path and its
// health monitor; external readers must use Snapshot.
type ConnectionMetrics struct {
	mu sync.Mutex

	connectionAttempts    uint64
	successfulConnections uint64
	failedConnections     uint64
	reconnectionAttempts  uint64

	totalOperations  uint64
	failedOperations uint64

	lastConnectionTime  time.Time
	lastError           error
	averageResponseTime time.Duration
	cumulativeUptime    time.Duration
}

// MetricsSnapshot is the read-only view handed to external observers.
type MetricsSnapshot struct {
	ConnectionAttempts    uint64        `json:"connectionAttempts"`
	SuccessfulConnections uint64        `json:"successfulConnections"`
	FailedConnections     uint64        `json:"failedConnections"`
	ReconnectionAttempts  uint64        `json:"reconnectionAttempts"`
	TotalOperations       uint64        `json:"totalOperations"`
	FailedOperations      uint64        `json:"failedOperations"`
	LastConnectionTime    time.Time     `json:"lastConnectionTime"`
	LastError             string        `json:"lastError,omitempty"`
	AverageResponseTime   time.Duration `json:"averageResponseTime"`
	CumulativeUptime      time.Duration `json:"cumulativeUptime"`
}

func newConnectionMetrics() *ConnectionMetrics {
	return &ConnectionMetrics{}
}

// recordAttempt counts a connection attempt before its outcome is known, so
// successfulConnections + failedConnections never exceeds connectionAttempts.
func (m *ConnectionMetrics) recordAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectionAttempts++
}

func (m *ConnectionMetrics) recordConnectSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successfulConnections++
	m.lastConnectionTime = time.Now()
}

func (m *ConnectionMetrics) recordConnectFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failedConnections++
	m.lastError = err
}

func (m *ConnectionMetrics) recordReconnectAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnectionAttempts++
}

// recordOperation folds one command outcome into the counters. The running
// mean covers successful operations only.
func (m *ConnectionMetrics) recordOperation(elapsed time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalOperations++
	if err != nil {
		m.failedOperations++
		m.lastError = err
		return
	}

	succeeded := m.totalOperations - m.failedOperations
	if succeeded == 1 {
		m.averageResponseTime = elapsed
		return
	}
	// Arithmetic mean updated incrementally: avg += (x - avg) / n.
	m.averageResponseTime += (elapsed - m.averageResponseTime) / time.Duration(succeeded)
}

func (m *ConnectionMetrics) recordUptime(sessionStart time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !sessionStart.IsZero() {
		m.cumulativeUptime += time.Since(sessionStart)
	}
}

func (m *ConnectionMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		ConnectionAttempts:    m.connectionAttempts,
		SuccessfulConnections: m.successfulConnections,
		FailedConnections:     m.failedConnections,
		ReconnectionAttempts:  m.reconnectionAttempts,
		TotalOperations:       m.totalOperations,
		FailedOperations:      m.failedOperations,
		LastConnectionTime:    m.lastConnectionTime,
		AverageResponseTime:   m.averageResponseTime,
		CumulativeUptime:      m.cumulativeUptime,
	}
	if m.lastError != nil {
		snap.LastError = m.lastError.Error()
	}
	return snap
}

// SuccessRate returns the percentage of operations that succeeded, 0 when no
// operations were issued.
func (s MetricsSnapshot) SuccessRate() float64 {
	if s.TotalOperations == 0 {
		return 0
	}
	return float64(s.TotalOperations-s.FailedOperations) / float64(s.TotalOperations) * 100
}
