package utils

import "strings"

// NormalizeMessageID strips whitespace and angle brackets from a Message-ID
// header value, yielding the bare local@domain form.
func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}
