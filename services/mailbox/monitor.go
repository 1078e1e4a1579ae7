package mailbox

import (
	"sync"
	"time"
)

const recentRecordLimit = 100

// operationRecord is one completed public operation.
type operationRecord struct {
	Operation     string        `json:"operation"`
	ExecutionTime time.Duration `json:"executionTime"`
	Success       bool          `json:"success"`
	Timestamp     time.Time     `json:"timestamp"`
}

type operationCounters struct {
	Total    uint64        `json:"total"`
	Failures uint64        `json:"failures"`
	MeanTime time.Duration `json:"meanTime"`
}

// Statistics is the service-level observability snapshot.
type Statistics struct {
	Uptime        time.Duration            `json:"uptime"`
	TotalsByOp    map[string]uint64        `json:"totalsByOperation"`
	ErrorsByOp    map[string]uint64        `json:"errorsByOperation"`
	MeanTimeByOp  map[string]time.Duration `json:"meanTimeByOperation"`
	RecentRecords []operationRecord        `json:"recentRecords"`
}

// operationMonitor retains the tail of recent operations plus per-operation
// counters and running means. Guarded by its own mutex so recording never
// contends with the IMAP command path.
type operationMonitor struct {
	mu        sync.Mutex
	startedAt time.Time
	records   []operationRecord
	counters  map[string]*operationCounters
}

func newOperationMonitor() *operationMonitor {
	return &operationMonitor{
		startedAt: time.Now(),
		counters:  make(map[string]*operationCounters),
	}
}

func (m *operationMonitor) record(operation string, elapsed time.Duration, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records = append(m.records, operationRecord{
		Operation:     operation,
		ExecutionTime: elapsed,
		Success:       success,
		Timestamp:     time.Now(),
	})
	if len(m.records) > recentRecordLimit {
		m.records = m.records[len(m.records)-recentRecordLimit:]
	}

	c := m.counters[operation]
	if c == nil {
		c = &operationCounters{}
		m.counters[operation] = c
	}
	c.Total++
	if !success {
		c.Failures++
	}
	c.MeanTime += (elapsed - c.MeanTime) / time.Duration(c.Total)
}

func (m *operationMonitor) statistics() Statistics {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := Statistics{
		Uptime:       time.Since(m.startedAt),
		TotalsByOp:   make(map[string]uint64, len(m.counters)),
		ErrorsByOp:   make(map[string]uint64, len(m.counters)),
		MeanTimeByOp: make(map[string]time.Duration, len(m.counters)),
	}
	for op, c := range m.counters {
		stats.TotalsByOp[op] = c.Total
		stats.ErrorsByOp[op] = c.Failures
		stats.MeanTimeByOp[op] = c.MeanTime
	}
	stats.RecentRecords = append(stats.RecentRecords, m.records...)
	return stats
}
