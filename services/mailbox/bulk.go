package mailbox

import (
	"context"
	"strconv"
	"time"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/internal/tracing"
	"github.com/velomail/imapkit/messageset"
	"github.com/velomail/imapkit/search"
)

// MovePair binds one message set to its destination (or trash) mailbox for
// the bulk drivers.
type MovePair struct {
	Set  *messageset.MessageSet
	Dest string
}

// Processor consumes one fetched message during SearchAndProcess. A returned
// error (or panic, which is recovered) counts the message as failed without
// stopping the sweep.
type Processor func(*models.EmailMessage) error

// recordBulk times a bulk driver and records it with the monitor.
func (s *Service) recordBulk(operation string) func(*models.BulkResult) {
	start := time.Now()
	return func(b *models.BulkResult) {
		b.ExecutionTime = time.Since(start)
		s.monitor.record(operation, b.ExecutionTime, b.Success)
	}
}

// BulkMove runs Move for each pair, aggregating per-set outcomes.
func (s *Service) BulkMove(ctx context.Context, pairs []MovePair) (*models.BulkResult, error) {
	return s.bulkPairs(ctx, "bulkMove", pairs, s.Move)
}

// BulkDelete runs Delete for each pair, treating each destination as trash.
func (s *Service) BulkDelete(ctx context.Context, pairs []MovePair) (*models.BulkResult, error) {
	return s.bulkPairs(ctx, "bulkDelete", pairs, s.Delete)
}

func (s *Service) bulkPairs(ctx context.Context, operation string, pairs []MovePair,
	op func(context.Context, *messageset.MessageSet, string) (*models.OperationResult, error)) (*models.BulkResult, error) {

	bulk := models.NewBulkResult(operation, 1)
	record := s.recordBulk(operation)
	defer func() { record(bulk) }()

	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			bulk.Warnings = append(bulk.Warnings, "cancelled before all sets were processed")
			break
		}

		count := 1
		if pair.Set != nil {
			count = pair.Set.EstimatedCount()
		}
		bulk.TotalMessages += count
		bulk.BatchesProcessed++

		res, err := op(ctx, pair.Set, pair.Dest)
		if err != nil {
			bulk.FailedMessages += count
			bulk.Errors = append(bulk.Errors, err.Error())
			if imapkit_errors.IsConnectionError(err) {
				bulk.Warnings = append(bulk.Warnings, "aborted on broken connection")
				break
			}
			continue
		}
		if !res.Success {
			bulk.FailedMessages += count
			bulk.Errors = append(bulk.Errors, res.ErrorMessage)
			continue
		}
		bulk.SuccessfulMessages += count
		bulk.Warnings = append(bulk.Warnings, res.Warnings...)
	}
	return bulk.Finalize(), nil
}

// SearchAndProcess sweeps the selected mailbox: UID SEARCH for the criteria,
// fetch the matches in batches of batchSize as full messages, and hand each
// parsed message to processor. Processor failures and panics count toward
// the failed tally but never abort the sweep; cancellation is honored
// between batches.
func (s *Service) SearchAndProcess(ctx context.Context, criteria search.Criteria, processor Processor, batchSize int) (*models.BulkResult, error) {
	if batchSize <= 0 {
		batchSize = DefaultUploadBatchSize
	}
	bulk := models.NewBulkResult("searchAndProcess", batchSize)
	record := s.recordBulk("searchAndProcess")
	defer func() { record(bulk) }()

	span, ctx := tracing.StartSpanFromContext(ctx, "Service.searchAndProcess")
	defer span.Finish()
	tracing.TagComponentMailbox(span)

	searchRes, err := s.UIDSearch(ctx, criteria)
	if err != nil || !searchRes.Success {
		if err == nil {
			err = imapkit_errors.NewOperationError(nil, "%s", searchRes.ErrorMessage)
		}
		tracing.TraceErr(span, err)
		bulk.Errors = append(bulk.Errors, err.Error())
		return bulk.Finalize(), err
	}
	if searchRes.MessageCount == 0 {
		return bulk.Finalize(), nil
	}

	uids := make([]uint32, 0, searchRes.MessageCount)
	for _, raw := range searchRes.AffectedMessages {
		if id, perr := parseUint32(raw); perr == nil {
			uids = append(uids, id)
		}
	}

	set, err := messageset.FromUIDs(uids)
	if err != nil {
		tracing.TraceErr(span, err)
		bulk.Errors = append(bulk.Errors, err.Error())
		return bulk.Finalize(), err
	}

	batches, err := set.Batches(batchSize)
	if err != nil {
		tracing.TraceErr(span, err)
		bulk.Errors = append(bulk.Errors, err.Error())
		return bulk.Finalize(), err
	}

	bulk.TotalMessages = len(uids)
	for _, batch := range batches {
		if cerr := ctx.Err(); cerr != nil {
			bulk.Warnings = append(bulk.Warnings, "sweep cancelled between batches")
			break
		}
		bulk.BatchesProcessed++

		fetched, ferr := s.UIDFetch(ctx, batch, "RFC822")
		if ferr != nil {
			bulk.FailedMessages += batch.EstimatedCount()
			bulk.Errors = append(bulk.Errors, ferr.Error())
			if imapkit_errors.IsConnectionError(ferr) {
				bulk.Warnings = append(bulk.Warnings, "sweep aborted on broken connection")
				break
			}
			continue
		}
		if !fetched.Success {
			bulk.FailedMessages += batch.EstimatedCount()
			bulk.Errors = append(bulk.Errors, fetched.ErrorMessage)
			continue
		}

		for _, msg := range fetched.Messages() {
			if perr := s.processOne(processor, msg); perr != nil {
				bulk.RecordError(perr)
				continue
			}
			bulk.SuccessfulMessages++
		}
	}
	return bulk.Finalize(), nil
}

// processOne shields the sweep from a panicking processor.
func (s *Service) processOne(processor Processor, msg *models.EmailMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("processor panicked on message uid=%d: %v", msg.UID, r)
			err = imapkit_errors.NewOperationError(nil, "processor panic: %v", r)
		}
	}()
	return processor(msg)
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, imapkit_errors.NewValidationError("invalid id %q", s)
	}
	return uint32(n), nil
}
