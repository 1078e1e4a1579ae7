package mailbox

import (
	"context"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/enum"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/messageset"
)

// AddFlag sets one flag on every message in the set via `+FLAGS`.
func (s *Service) AddFlag(ctx context.Context, set *messageset.MessageSet, flag enum.Flag) (*models.OperationResult, error) {
	return s.store(ctx, "addFlag", set, enum.FlagAdd, []enum.Flag{flag})
}

// RemoveFlag clears one flag on every message in the set via `-FLAGS`.
func (s *Service) RemoveFlag(ctx context.Context, set *messageset.MessageSet, flag enum.Flag) (*models.OperationResult, error) {
	return s.store(ctx, "removeFlag", set, enum.FlagRemove, []enum.Flag{flag})
}

// SetFlags replaces the full flag set on every message via `FLAGS`.
func (s *Service) SetFlags(ctx context.Context, set *messageset.MessageSet, flags []enum.Flag) (*models.OperationResult, error) {
	return s.store(ctx, "setFlags", set, enum.FlagSet, flags)
}

// MarkSeen and MarkUnseen are the common special cases.
func (s *Service) MarkSeen(ctx context.Context, set *messageset.MessageSet) (*models.OperationResult, error) {
	return s.AddFlag(ctx, set, enum.FlagSeen)
}

func (s *Service) MarkUnseen(ctx context.Context, set *messageset.MessageSet) (*models.OperationResult, error) {
	return s.RemoveFlag(ctx, set, enum.FlagSeen)
}

// store issues STORE or UID STORE depending on the set's addressing mode,
// followed by a CHECK barrier.
func (s *Service) store(ctx context.Context, operation string, set *messageset.MessageSet, cmd enum.FlagCommand, flags []enum.Flag) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, operation)
	defer func() { finish(result) }()

	if set == nil {
		return s.fail(result, imapkit_errors.ErrEmptyMessageSet)
	}
	if len(flags) == 0 && cmd != enum.FlagSet {
		return s.fail(result, imapkit_errors.NewValidationError("no flags given for %s", operation))
	}
	if err := s.requireSelection(); err != nil {
		return s.fail(result, err)
	}

	value := flagValues(flags)
	var err error
	if set.IsUID() {
		err = s.conn.UIDStore(ctx, set.ToSeqSet(), cmd.StoreItem(), value)
	} else {
		err = s.conn.Store(ctx, set.ToSeqSet(), cmd.StoreItem(), value)
	}
	if err != nil {
		return s.fail(result, imapkit_errors.NewOperationError(err, "%s failed for %s", operation, set.String()))
	}

	if cerr := s.conn.Check(ctx); cerr != nil {
		result.AddWarning("checkpoint after " + operation + " failed: " + cerr.Error())
	}

	result.MessageCount = set.EstimatedCount()
	result.Metadata["flags"] = enum.FlagStrings(flags)
	result.Metadata["command"] = cmd.String()
	for _, w := range set.Warnings() {
		result.AddWarning(w)
	}
	return result, nil
}

// flagValues renders flags as the codec's STORE value list.
func flagValues(flags []enum.Flag) []interface{} {
	out := make([]interface{}, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.String())
	}
	return out
}

// BulkAddFlags applies each flag in turn and aggregates outcomes.
func (s *Service) BulkAddFlags(ctx context.Context, set *messageset.MessageSet, flags []enum.Flag) (*models.BulkResult, error) {
	return s.bulkFlags(ctx, "bulkAddFlags", set, enum.FlagAdd, flags)
}

// BulkRemoveFlags clears each flag in turn and aggregates outcomes.
func (s *Service) BulkRemoveFlags(ctx context.Context, set *messageset.MessageSet, flags []enum.Flag) (*models.BulkResult, error) {
	return s.bulkFlags(ctx, "bulkRemoveFlags", set, enum.FlagRemove, flags)
}

func (s *Service) bulkFlags(ctx context.Context, operation string, set *messageset.MessageSet, cmd enum.FlagCommand, flags []enum.Flag) (*models.BulkResult, error) {
	bulk := models.NewBulkResult(operation, 1)
	startRecord := s.recordBulk(operation)
	defer func() { startRecord(bulk) }()

	for _, flag := range flags {
		if err := ctx.Err(); err != nil {
			bulk.Warnings = append(bulk.Warnings, "cancelled before all flags were applied")
			break
		}
		bulk.TotalMessages++
		bulk.BatchesProcessed++

		res, err := s.store(ctx, operation, set, cmd, []enum.Flag{flag})
		if err != nil {
			bulk.RecordError(err)
			continue
		}
		if !res.Success {
			bulk.RecordError(imapkit_errors.NewOperationError(nil, "%s", res.ErrorMessage))
			continue
		}
		bulk.SuccessfulMessages++
	}
	return bulk.Finalize(), nil
}
