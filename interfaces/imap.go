package interfaces

import (
	"context"
	"time"

	"github.com/emersion/go-imap"
)

// IMAPCommands is the capability surface a mailbox service drives. It
// enumerates exactly the verbs the engine issues; every method is
// instrumented by the implementation (metrics, timeouts, broken-state
// detection). Satisfied by the Connection in services/imap.
type IMAPCommands interface {
	// Session probes.
	Noop() error
	Capability() (map[string]bool, error)

	// Mailbox state.
	Select(ctx context.Context, name string, readOnly bool) (*imap.MailboxStatus, error)
	Close(ctx context.Context) error
	Check(ctx context.Context) error
	Status(ctx context.Context, name string, items []imap.StatusItem) (*imap.MailboxStatus, error)
	Expunge(ctx context.Context) ([]uint32, error)

	// Folder management.
	List(ctx context.Context, ref, pattern string) ([]*imap.MailboxInfo, error)
	Lsub(ctx context.Context, ref, pattern string) ([]*imap.MailboxInfo, error)
	Create(ctx context.Context, name string) error
	Rename(ctx context.Context, existing, newName string) error
	DeleteMailbox(ctx context.Context, name string) error
	Subscribe(ctx context.Context, name string) error
	Unsubscribe(ctx context.Context, name string) error

	// Message operations.
	Search(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error)
	UIDSearch(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(ctx context.Context, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error)
	UIDFetch(ctx context.Context, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error)
	Store(ctx context.Context, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}) error
	UIDStore(ctx context.Context, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}) error
	Copy(ctx context.Context, seqSet *imap.SeqSet, dest string) error
	UIDCopy(ctx context.Context, seqSet *imap.SeqSet, dest string) error
	Append(ctx context.Context, mailbox string, flags []string, date time.Time, msg imap.Literal) error

	// State introspection.
	IsAuthenticated() bool
}

// ConnectionHealth is the point-in-time snapshot returned by HealthCheck.
type ConnectionHealth struct {
	Connected           bool          `json:"connected"`
	SessionAge          time.Duration `json:"sessionAge"`
	TotalOperations     uint64        `json:"totalOperations"`
	FailedOperations    uint64        `json:"failedOperations"`
	SuccessRate         float64       `json:"successRate"` // percentage
	AverageResponseTime time.Duration `json:"averageResponseTime"`
	LastError           string        `json:"lastError,omitempty"`
}

// PoolStats describes the pool's current occupancy.
type PoolStats struct {
	MaxPerKey    int `json:"maxPerKey"`
	ActiveKeys   int `json:"activeKeys"`
	PooledTotal  int `json:"pooledTotal"`
}
