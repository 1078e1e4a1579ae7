package mailbox

import (
	"context"

	"github.com/emersion/go-imap"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/messageset"
)

// Fetch retrieves the given part (default whole message) for a sequence-
// numbered set, parses each payload and returns the messages in the result.
// Malformed payloads are logged, counted as warnings and skipped; the fetch
// fails only when the server returned payloads and none could be parsed.
func (s *Service) Fetch(ctx context.Context, set *messageset.MessageSet, part string) (*models.OperationResult, error) {
	return s.fetch(ctx, "fetch", set, part, false)
}

// UIDFetch is Fetch for a UID set.
func (s *Service) UIDFetch(ctx context.Context, set *messageset.MessageSet, part string) (*models.OperationResult, error) {
	return s.fetch(ctx, "uidFetch", set, part, true)
}

func (s *Service) fetch(ctx context.Context, operation string, set *messageset.MessageSet, part string, uid bool) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, operation)
	defer func() { finish(result) }()

	if err := s.checkSet(set, uid); err != nil {
		return s.fail(result, err)
	}
	if err := s.requireSelection(); err != nil {
		return s.fail(result, err)
	}

	section, err := bodySection(part)
	if err != nil {
		return s.fail(result, imapkit_errors.NewValidationError("invalid fetch part %q: %v", part, err))
	}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchUid, imap.FetchRFC822Size}

	var messages []*imap.Message
	if uid {
		messages, err = s.conn.UIDFetch(ctx, set.ToSeqSet(), items)
	} else {
		messages, err = s.conn.Fetch(ctx, set.ToSeqSet(), items)
	}
	if err != nil {
		return s.fail(result, imapkit_errors.NewOperationError(err, "%s failed for %s", operation, set.String()))
	}

	parsed := make([]*models.EmailMessage, 0, len(messages))
	for _, msg := range messages {
		email, perr := parseEmailMessage(msg, section, s.currentSelection)
		if perr != nil {
			s.log.Warnf("skipping malformed message %d in %s: %v", msg.SeqNum, s.currentSelection, perr)
			result.AddWarning(perr.Error())
			continue
		}
		parsed = append(parsed, email)
	}

	if len(messages) > 0 && len(parsed) == 0 {
		return s.fail(result, imapkit_errors.NewOperationError(nil, "all %d fetched messages were malformed", len(messages)))
	}

	result.MessageCount = len(parsed)
	result.SetMessages(parsed)
	result.AffectedMessages = affectedFromMessages(parsed, uid)
	return result, nil
}

// checkSet validates the set/verb pairing and propagates set warnings.
func (s *Service) checkSet(set *messageset.MessageSet, uid bool) error {
	if set == nil {
		return imapkit_errors.ErrEmptyMessageSet
	}
	if set.IsUID() != uid {
		if uid {
			return imapkit_errors.NewValidationError("UID operation requires a UID message set, got sequence numbers")
		}
		return imapkit_errors.NewValidationError("sequence operation requires a sequence-number set, got UIDs")
	}
	if mb := set.Mailbox(); mb != "" && s.currentSelection != "" && mb != s.currentSelection {
		s.log.Warnf("message set tagged for %s used against selection %s", mb, s.currentSelection)
	}
	return nil
}

// bodySection maps the requested part to a codec body section. The empty
// part and the RFC822 alias both mean the full raw message.
func bodySection(part string) (*imap.BodySectionName, error) {
	switch part {
	case "", "RFC822", "BODY[]":
		return &imap.BodySectionName{}, nil
	case "RFC822.PEEK", "BODY.PEEK[]":
		return &imap.BodySectionName{Peek: true}, nil
	}
	return imap.ParseBodySectionName(imap.FetchItem(part))
}

func affectedFromMessages(msgs []*models.EmailMessage, uid bool) []string {
	ids := make([]uint32, 0, len(msgs))
	for _, m := range msgs {
		if uid && m.HasUID() {
			ids = append(ids, m.UID)
		} else {
			ids = append(ids, m.SequenceNumber)
		}
	}
	return formatIDs(ids)
}
