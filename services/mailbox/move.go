package mailbox

import (
	"context"
	"strings"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/enum"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/messageset"
)

// Copy copies the set to dest, followed by a CHECK barrier. When the server
// answers TRYCREATE the destination is created and the copy retried once.
func (s *Service) Copy(ctx context.Context, set *messageset.MessageSet, dest string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "copy")
	defer func() { finish(result) }()

	if err := s.copyPreflight(set, dest); err != nil {
		return s.fail(result, err)
	}

	if err := s.copyWithTryCreate(ctx, set, dest, result); err != nil {
		return s.fail(result, err)
	}
	if cerr := s.conn.Check(ctx); cerr != nil {
		result.AddWarning("checkpoint after copy failed: " + cerr.Error())
	}
	result.MessageCount = set.EstimatedCount()
	result.Metadata["destination"] = dest
	return result, nil
}

func (s *Service) copyPreflight(set *messageset.MessageSet, dest string) error {
	if set == nil {
		return imapkit_errors.ErrEmptyMessageSet
	}
	if err := validateMailboxName(dest); err != nil {
		return err
	}
	return s.requireSelection()
}

// copyWithTryCreate issues COPY/UID COPY and applies the TRYCREATE recovery.
func (s *Service) copyWithTryCreate(ctx context.Context, set *messageset.MessageSet, dest string, result *models.OperationResult) error {
	err := s.issueCopy(ctx, set, dest)
	if err == nil {
		return nil
	}
	if imapkit_errors.IsConnectionError(err) || !isTryCreate(err) {
		return imapkit_errors.NewOperationError(err, "copy to %s failed", dest)
	}

	s.log.Infof("destination %s missing, creating and retrying copy", dest)
	if cerr := s.conn.Create(ctx, dest); cerr != nil {
		return imapkit_errors.NewMailboxError(cerr, "cannot create missing destination %s", dest)
	}
	result.AddWarning("destination " + dest + " did not exist and was created")

	if err = s.issueCopy(ctx, set, dest); err != nil {
		return imapkit_errors.NewOperationError(err, "copy to %s failed after create", dest)
	}
	return nil
}

func (s *Service) issueCopy(ctx context.Context, set *messageset.MessageSet, dest string) error {
	if set.IsUID() {
		return s.conn.UIDCopy(ctx, set.ToSeqSet(), dest)
	}
	return s.conn.Copy(ctx, set.ToSeqSet(), dest)
}

// isTryCreate detects the server hint that the COPY/APPEND destination does
// not exist.
func isTryCreate(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToUpper(err.Error()), "TRYCREATE")
}

// Move is the composite: copy to dest, mark the source copies \Deleted,
// EXPUNGE, then CHECK as a barrier. Copy failure aborts before the source is
// touched; later substep failures degrade to warnings on a successful result
// since the messages are already at the destination.
func (s *Service) Move(ctx context.Context, set *messageset.MessageSet, dest string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "move")
	defer func() { finish(result) }()

	if err := s.copyPreflight(set, dest); err != nil {
		return s.fail(result, err)
	}

	if err := s.copyWithTryCreate(ctx, set, dest, result); err != nil {
		return s.fail(result, err)
	}

	var err error
	if set.IsUID() {
		err = s.conn.UIDStore(ctx, set.ToSeqSet(), enum.FlagAdd.StoreItem(), flagValues([]enum.Flag{enum.FlagDeleted}))
	} else {
		err = s.conn.Store(ctx, set.ToSeqSet(), enum.FlagAdd.StoreItem(), flagValues([]enum.Flag{enum.FlagDeleted}))
	}
	if err != nil {
		result.AddWarning("messages copied to " + dest + " but not removed from source: " + err.Error())
		result.Metadata["destination"] = dest
		result.MessageCount = set.EstimatedCount()
		return result, nil
	}

	if _, err := s.conn.Expunge(ctx); err != nil {
		result.AddWarning("expunge after move failed: " + err.Error())
	}
	if err := s.conn.Check(ctx); err != nil {
		result.AddWarning("checkpoint after move failed: " + err.Error())
	}

	result.MessageCount = set.EstimatedCount()
	result.Metadata["destination"] = dest
	return result, nil
}

// Trash moves the set to the trash mailbox.
func (s *Service) Trash(ctx context.Context, set *messageset.MessageSet, trashMailbox string) (*models.OperationResult, error) {
	result, err := s.Move(ctx, set, trashMailbox)
	result.Operation = "trash"
	return result, err
}

// Delete trashes the set and then expunges the trash, making the removal
// permanent. Idempotent for messages already flagged \Deleted.
func (s *Service) Delete(ctx context.Context, set *messageset.MessageSet, trashMailbox string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "delete")
	defer func() { finish(result) }()

	moved, err := s.Move(ctx, set, trashMailbox)
	if err != nil || !moved.Success {
		result.Fail(imapkit_errors.NewOperationError(err, "%s", moved.ErrorMessage))
		result.Warnings = moved.Warnings
		return result, err
	}
	result.Warnings = moved.Warnings
	result.MessageCount = moved.MessageCount

	if sel, serr := s.Select(ctx, trashMailbox); serr != nil || !sel.Success {
		result.AddWarning("cannot select " + trashMailbox + " to expunge: " + sel.ErrorMessage)
		return result, nil
	}
	if _, eerr := s.conn.Expunge(ctx); eerr != nil {
		result.AddWarning("expunge of " + trashMailbox + " failed: " + eerr.Error())
		return result, nil
	}
	if cerr := s.conn.Check(ctx); cerr != nil {
		result.AddWarning("checkpoint after delete failed: " + cerr.Error())
	}
	return result, nil
}

// Restore moves messages out of the trash into safeMailbox and clears the
// \Deleted flag there. Each selection is validated separately.
func (s *Service) Restore(ctx context.Context, set *messageset.MessageSet, trashMailbox, safeMailbox string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "restore")
	defer func() { finish(result) }()

	if set == nil {
		return s.fail(result, imapkit_errors.ErrEmptyMessageSet)
	}
	if err := validateMailboxName(safeMailbox); err != nil {
		return s.fail(result, err)
	}

	if sel, err := s.Select(ctx, trashMailbox); err != nil || !sel.Success {
		result.Fail(imapkit_errors.NewMailboxError(err, "cannot select %s: %s", trashMailbox, sel.ErrorMessage))
		return result, err
	}

	moved, err := s.Move(ctx, set, safeMailbox)
	if err != nil || !moved.Success {
		result.Fail(imapkit_errors.NewOperationError(err, "restore move failed: %s", moved.ErrorMessage))
		return result, err
	}
	result.Warnings = moved.Warnings
	result.MessageCount = moved.MessageCount

	if sel, err := s.Select(ctx, safeMailbox); err != nil || !sel.Success {
		result.AddWarning("restored but cannot select " + safeMailbox + " to clear \\Deleted: " + sel.ErrorMessage)
		return result, nil
	}

	// The restored copies have fresh UIDs in safeMailbox, so clear the flag
	// across the whole mailbox rather than chase the new IDs.
	all := messageset.AllMessages(set.IsUID())
	var serr error
	if all.IsUID() {
		serr = s.conn.UIDStore(ctx, all.ToSeqSet(), enum.FlagRemove.StoreItem(), flagValues([]enum.Flag{enum.FlagDeleted}))
	} else {
		serr = s.conn.Store(ctx, all.ToSeqSet(), enum.FlagRemove.StoreItem(), flagValues([]enum.Flag{enum.FlagDeleted}))
	}
	if serr != nil {
		result.AddWarning("restored but \\Deleted flag not cleared in " + safeMailbox + ": " + serr.Error())
		return result, nil
	}

	if cerr := s.conn.Check(ctx); cerr != nil {
		result.AddWarning("checkpoint after restore failed: " + cerr.Error())
	}
	result.Metadata["restoredTo"] = safeMailbox
	return result, nil
}
