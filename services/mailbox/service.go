// Package mailbox implements the high-level operation engine: selection
// management, search, fetch-and-parse, flag stores, composite moves, batched
// uploads and sweeps, all expressed as structured operation results.
package mailbox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/emersion/go-imap"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/interfaces"
	"github.com/velomail/imapkit/internal/logger"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/internal/tracing"
)

// Service drives mailbox operations over one Connection. Not safe for
// concurrent use: currentSelection tracks the session's selected mailbox and
// is only coherent when callers serialize access.
type Service struct {
	conn interfaces.IMAPCommands
	log  logger.Logger

	currentSelection string
	monitor          *operationMonitor
}

func NewService(conn interfaces.IMAPCommands, log logger.Logger) *Service {
	return &Service{
		conn:    conn,
		log:     log,
		monitor: newOperationMonitor(),
	}
}

// CurrentSelection returns the currently selected mailbox, "" when none.
func (s *Service) CurrentSelection() string {
	return s.currentSelection
}

// Statistics returns the service-level operation counters and recent tail.
func (s *Service) Statistics() Statistics {
	return s.monitor.statistics()
}

// begin opens a result and its span; the returned finish closes both and
// records the monitor entry.
func (s *Service) begin(ctx context.Context, operation string) (*models.OperationResult, func(*models.OperationResult), context.Context) {
	span, ctx := tracing.StartSpanFromContext(ctx, "Service."+operation)
	tracing.TagComponentMailbox(span)
	if s.currentSelection != "" {
		tracing.TagMailbox(span, s.currentSelection)
	}

	result := models.NewOperationResult(operation)
	start := time.Now()

	finish := func(r *models.OperationResult) {
		r.ExecutionTime = time.Since(start)
		if !r.Success && r.ErrorMessage != "" {
			tracing.TraceErr(span, imapkit_errors.NewOperationError(nil, "%s", r.ErrorMessage))
		}
		span.Finish()
		s.monitor.record(operation, r.ExecutionTime, r.Success)
	}
	return result, finish, ctx
}

// fail finalizes a result for an error, returning the error only when it is
// a precondition or connection failure. Server-level NO/BAD is reported in
// the result and does not propagate as a Go error.
func (s *Service) fail(result *models.OperationResult, err error) (*models.OperationResult, error) {
	result.Fail(err)
	switch {
	case errors.Is(err, imapkit_errors.ErrNotConnected),
		errors.Is(err, imapkit_errors.ErrNoMailboxSelected),
		errors.Is(err, imapkit_errors.ErrEmptyMessageSet),
		errors.Is(err, imapkit_errors.ErrProtectedMailbox),
		imapkit_errors.IsValidationError(err),
		imapkit_errors.IsConnectionError(err),
		imapkit_errors.IsAuthError(err):
		return result, err
	}
	return result, nil
}

// requireAuthenticated is the shared precondition for every operation.
func (s *Service) requireAuthenticated() error {
	if !s.conn.IsAuthenticated() {
		return imapkit_errors.ErrNotConnected
	}
	return nil
}

func (s *Service) requireSelection() error {
	if err := s.requireAuthenticated(); err != nil {
		return err
	}
	if s.currentSelection == "" {
		return imapkit_errors.ErrNoMailboxSelected
	}
	return nil
}

// Select makes name the current mailbox. Selecting the already-selected
// mailbox is a no-op that reports success without a server round trip.
func (s *Service) Select(ctx context.Context, name string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "select")
	defer func() { finish(result) }()

	if err := validateMailboxName(name); err != nil {
		return s.fail(result, err)
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}

	if s.currentSelection == name {
		result.Metadata["alreadySelected"] = true
		return result, nil
	}

	status, err := s.conn.Select(ctx, name, false)
	if err != nil {
		if imapkit_errors.IsConnectionError(err) {
			return s.fail(result, err)
		}
		selErr := imapkit_errors.NewMailboxError(err, "cannot select %s", name).WithServerResponse(err.Error())
		result.Fail(selErr)
		return result, selErr
	}

	s.currentSelection = name
	result.MessageCount = int(status.Messages)
	result.Metadata["uidValidity"] = status.UidValidity
	result.Metadata["uidNext"] = status.UidNext
	result.Metadata["recent"] = status.Recent
	result.Metadata["unseen"] = status.Unseen
	return result, nil
}

// CloseMailbox issues CLOSE and clears the selection. Idempotent when
// nothing is selected.
func (s *Service) CloseMailbox(ctx context.Context) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "close")
	defer func() { finish(result) }()

	if s.currentSelection == "" {
		result.Metadata["noSelection"] = true
		return result, nil
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}

	err := s.conn.Close(ctx)
	s.currentSelection = ""
	if err != nil {
		return s.fail(result, imapkit_errors.NewOperationError(err, "close failed"))
	}
	return result, nil
}

// Check issues a CHECK checkpoint against the selected mailbox.
func (s *Service) Check(ctx context.Context) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "check")
	defer func() { finish(result) }()

	if err := s.requireSelection(); err != nil {
		return s.fail(result, err)
	}
	if err := s.conn.Check(ctx); err != nil {
		return s.fail(result, imapkit_errors.NewOperationError(err, "check failed"))
	}
	return result, nil
}

// Status issues STATUS for the given items and returns the parsed key/value
// pairs in the result metadata. With no items, all five standard items are
// requested.
func (s *Service) Status(ctx context.Context, name string, items ...imap.StatusItem) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "status")
	defer func() { finish(result) }()

	if err := validateMailboxName(name); err != nil {
		return s.fail(result, err)
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}
	if len(items) == 0 {
		items = []imap.StatusItem{imap.StatusMessages, imap.StatusRecent, imap.StatusUidNext, imap.StatusUidValidity, imap.StatusUnseen}
	}

	status, err := s.conn.Status(ctx, name, items)
	if err != nil {
		return s.fail(result, imapkit_errors.NewMailboxError(err, "status failed for %s", name))
	}

	for _, item := range items {
		switch item {
		case imap.StatusMessages:
			result.Metadata["MESSAGES"] = status.Messages
		case imap.StatusRecent:
			result.Metadata["RECENT"] = status.Recent
		case imap.StatusUidNext:
			result.Metadata["UIDNEXT"] = status.UidNext
		case imap.StatusUidValidity:
			result.Metadata["UIDVALIDITY"] = status.UidValidity
		case imap.StatusUnseen:
			result.Metadata["UNSEEN"] = status.Unseen
		}
	}
	result.MessageCount = int(status.Messages)
	return result, nil
}

// Expunge permanently removes \Deleted messages from the selection.
func (s *Service) Expunge(ctx context.Context) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "expunge")
	defer func() { finish(result) }()

	if err := s.requireSelection(); err != nil {
		return s.fail(result, err)
	}

	expunged, err := s.conn.Expunge(ctx)
	if err != nil {
		return s.fail(result, imapkit_errors.NewOperationError(err, "expunge failed"))
	}
	result.MessageCount = len(expunged)
	result.AffectedMessages = formatIDs(expunged)
	return result, nil
}

func formatIDs(ids []uint32) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, strconv.FormatUint(uint64(id), 10))
	}
	return out
}
