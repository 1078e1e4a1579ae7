package models

import (
	"time"

	"github.com/velomail/imapkit/internal/enum"
)

// EmailMessage is a parsed message as fetched from the server.
// MIME decoding is delegated to enmime; the IMAP layer overlays the
// session-scoped fields (SequenceNumber, UID, Flags, Size, Mailbox).
type EmailMessage struct {
	MessageID string `json:"messageId"` // RFC 5322 Message-ID without angle brackets
	Subject   string `json:"subject"`

	FromAddress  string   `json:"fromAddress"`
	FromName     string   `json:"fromName"`
	ToAddresses  []string `json:"toAddresses"`
	CcAddresses  []string `json:"ccAddresses,omitempty"`
	BccAddresses []string `json:"bccAddresses,omitempty"`

	// Date is the RFC 5322 Date header normalized to ISO-8601.
	Date   string     `json:"date"`
	SentAt *time.Time `json:"sentAt,omitempty"`

	Raw      []byte `json:"-"`
	BodyText string `json:"bodyText"`
	BodyHTML string `json:"bodyHtml"`

	Attachments []Attachment        `json:"attachments,omitempty"`
	Flags       []enum.Flag         `json:"flags,omitempty"`
	Headers     map[string][]string `json:"headers,omitempty"`

	// Session-scoped addressing, set by the fetch path.
	Size           uint32 `json:"size"`
	SequenceNumber uint32 `json:"sequenceNumber"`
	UID            uint32 `json:"uid"`
	Mailbox        string `json:"mailbox"`
}

// Attachment is a decoded MIME part carried by an EmailMessage.
type Attachment struct {
	Filename         string `json:"filename"`
	ContentType      string `json:"contentType"`
	Content          []byte `json:"-"`
	ContentID        string `json:"contentId,omitempty"`
	Disposition      string `json:"disposition,omitempty"`
	TransferEncoding string `json:"transferEncoding,omitempty"`
	Size             int    `json:"size"`
}

// HasFlag reports whether the message carries the given flag.
func (m *EmailMessage) HasFlag(flag enum.Flag) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// HasUID reports whether the server assigned a UID to this fetch result.
func (m *EmailMessage) HasUID() bool {
	return m.UID > 0
}
