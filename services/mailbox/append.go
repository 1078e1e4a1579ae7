package mailbox

import (
	"bytes"
	"context"
	"strconv"
	"time"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/enum"
	"github.com/velomail/imapkit/internal/models"
)

// DefaultUploadBatchSize bounds how many APPENDs run between progress
// observations and cancellation checks in UploadEml.
const DefaultUploadBatchSize = 100

// Append uploads one raw message into mailbox with the given flags and
// internal date. A zero date lets the server assign the arrival time.
func (s *Service) Append(ctx context.Context, mailboxName string, flags []enum.Flag, date time.Time, raw []byte) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "append")
	defer func() { finish(result) }()

	if err := validateMailboxName(mailboxName); err != nil {
		return s.fail(result, err)
	}
	if len(raw) == 0 {
		return s.fail(result, imapkit_errors.NewValidationError("append payload is empty"))
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}

	err := s.conn.Append(ctx, mailboxName, enum.FlagStrings(flags), date, bytes.NewReader(raw))
	if err != nil {
		if imapkit_errors.IsConnectionError(err) {
			return s.fail(result, err)
		}
		if isTryCreate(err) {
			if cerr := s.conn.Create(ctx, mailboxName); cerr == nil {
				result.AddWarning("mailbox " + mailboxName + " did not exist and was created")
				err = s.conn.Append(ctx, mailboxName, enum.FlagStrings(flags), date, bytes.NewReader(raw))
			}
		}
		if err != nil {
			return s.fail(result, imapkit_errors.NewOperationError(err, "append to %s failed", mailboxName))
		}
	}

	result.MessageCount = 1
	result.Metadata["octets"] = len(raw)
	result.Metadata["mailbox"] = mailboxName
	return result, nil
}

// UploadEml appends many messages in batches, counting per-message outcomes.
// Messages must carry their raw bytes and a parseable date. Cancellation is
// honored between individual APPENDs.
func (s *Service) UploadEml(ctx context.Context, messages []*models.EmailMessage, flags []enum.Flag, mailboxName string, batchSize int) (*models.BulkResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultUploadBatchSize
	}
	bulk := models.NewBulkResult("uploadEml", batchSize)
	record := s.recordBulk("uploadEml")
	defer func() { record(bulk) }()

	if err := validateMailboxName(mailboxName); err != nil {
		bulk.Errors = append(bulk.Errors, err.Error())
		return bulk.Finalize(), err
	}
	if err := s.requireAuthenticated(); err != nil {
		bulk.Errors = append(bulk.Errors, err.Error())
		return bulk.Finalize(), err
	}

	bulk.TotalMessages = len(messages)
	flagStrings := enum.FlagStrings(flags)

	for i, msg := range messages {
		if err := ctx.Err(); err != nil {
			bulk.Warnings = append(bulk.Warnings, "upload cancelled after "+strconv.Itoa(i)+" messages")
			break
		}

		if len(msg.Raw) == 0 {
			bulk.RecordError(imapkit_errors.NewValidationError("message %d has no raw payload", i))
			continue
		}
		date := time.Time{}
		if msg.SentAt != nil {
			date = *msg.SentAt
		}
		if date.IsZero() {
			bulk.RecordError(imapkit_errors.NewValidationError("message %d has no date", i))
			continue
		}

		if err := s.conn.Append(ctx, mailboxName, flagStrings, date, bytes.NewReader(msg.Raw)); err != nil {
			bulk.RecordError(imapkit_errors.NewOperationError(err, "append of message %d failed", i))
			if imapkit_errors.IsConnectionError(err) {
				bulk.Warnings = append(bulk.Warnings, "upload aborted on broken connection")
				break
			}
			continue
		}
		bulk.SuccessfulMessages++

		if (i+1)%batchSize == 0 {
			bulk.BatchesProcessed++
			s.log.Infof("uploaded %d/%d messages to %s", i+1, len(messages), mailboxName)
		}
	}
	if rem := bulk.SuccessfulMessages + bulk.FailedMessages; rem > 0 && rem%batchSize != 0 {
		bulk.BatchesProcessed++
	}

	return bulk.Finalize(), nil
}
