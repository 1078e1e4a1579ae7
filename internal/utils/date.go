package utils

import (
	"strings"
	"time"
)

// IMAP date literals per RFC 3501 (DD-Mon-YYYY, English month abbreviations).
// Rendering always zero-pads the day; parsing stays lenient because servers
// emit both forms.
const (
	imapDateFormatLayout = "02-Jan-2006"
	imapDateParseLayout  = "2-Jan-2006"
)

// FormatIMAPDate renders t as an IMAP SEARCH date literal.
func FormatIMAPDate(t time.Time) string {
	return t.Format(imapDateFormatLayout)
}

// ParseIMAPDate parses an IMAP date literal.
func ParseIMAPDate(s string) (time.Time, error) {
	return time.Parse(imapDateParseLayout, strings.TrimSpace(s))
}

// FormatISO8601 normalizes t to ISO-8601 with seconds resolution, UTC.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z07:00")
}

func Now() time.Time {
	return time.Now().UTC()
}

func NowPtr() *time.Time {
	now := Now()
	return &now
}
