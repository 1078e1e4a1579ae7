package mailbox

import (
	"bytes"
	"io"
	"net/mail"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"

	"github.com/velomail/imapkit/internal/enum"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/internal/utils"
)

// parseEmailMessage decodes one FETCH response into an EmailMessage. MIME
// decoding is enmime's job; the session-scoped fields (flags, sequence
// number, UID, size, mailbox) are overlaid from the fetch metadata.
func parseEmailMessage(msg *imap.Message, section *imap.BodySectionName, mailbox string) (*models.EmailMessage, error) {
	body := msg.GetBody(section)
	if body == nil {
		return nil, errors.Errorf("message %d has no body for section %s", msg.SeqNum, section.FetchItem())
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading body of message %d", msg.SeqNum)
	}
	if len(raw) == 0 {
		return nil, errors.Errorf("message %d has empty payload", msg.SeqNum)
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing message %d", msg.SeqNum)
	}

	email := &models.EmailMessage{
		MessageID: utils.NormalizeMessageID(env.GetHeader("Message-Id")),
		Subject:   env.GetHeader("Subject"),
		Raw:       raw,
		BodyText:  env.Text,
		BodyHTML:  env.HTML,
		Headers:   make(map[string][]string),

		Flags:          enum.FlagsFromStrings(msg.Flags),
		SequenceNumber: msg.SeqNum,
		UID:            msg.Uid,
		Size:           uint32(len(raw)),
		Mailbox:        mailbox,
	}

	for _, key := range env.GetHeaderKeys() {
		email.Headers[key] = env.GetHeaderValues(key)
	}

	if from, err := env.AddressList("From"); err == nil && len(from) > 0 {
		email.FromAddress = from[0].Address
		email.FromName = from[0].Name
	}
	email.ToAddresses = addressStrings(env, "To")
	email.CcAddresses = addressStrings(env, "Cc")
	email.BccAddresses = addressStrings(env, "Bcc")

	if dateHeader := env.GetHeader("Date"); dateHeader != "" {
		if sent, err := mail.ParseDate(dateHeader); err == nil {
			email.SentAt = &sent
			email.Date = utils.FormatISO8601(sent)
		} else {
			email.Date = dateHeader
		}
	}

	for _, part := range env.Attachments {
		email.Attachments = append(email.Attachments, attachmentFromPart(part, "attachment"))
	}
	for _, part := range env.Inlines {
		email.Attachments = append(email.Attachments, attachmentFromPart(part, "inline"))
	}

	return email, nil
}

func addressStrings(env *enmime.Envelope, header string) []string {
	list, err := env.AddressList(header)
	if err != nil || len(list) == 0 {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, addr := range list {
		out = append(out, addr.Address)
	}
	return out
}

func attachmentFromPart(part *enmime.Part, disposition string) models.Attachment {
	if part.Disposition != "" {
		disposition = part.Disposition
	}
	return models.Attachment{
		Filename:         part.FileName,
		ContentType:      part.ContentType,
		Content:          part.Content,
		ContentID:        part.ContentID,
		Disposition:      disposition,
		TransferEncoding: part.Header.Get("Content-Transfer-Encoding"),
		Size:             len(part.Content),
	}
}
