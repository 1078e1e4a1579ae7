package mailbox

import (
	"strings"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/utils"
)

// protectedMailboxes are default folders DeleteFolder refuses to remove.
// Comparison is case-insensitive for INBOX per RFC 3501, exact for the rest.
var protectedMailboxes = []string{
	"INBOX",
	"Sent",
	"Drafts",
	"Trash",
	"Junk",
	"Spam",
	"Archive",
}

// validateMailboxName applies the name deny-list: empty names, NUL bytes,
// CR/LF (would break the wire protocol), and path traversal via "..".
// Hierarchy separators inside a name are legal (e.g. "Projects/2026").
func validateMailboxName(name string) error {
	if name == "" {
		return imapkit_errors.NewValidationError("mailbox name is empty")
	}
	if strings.ContainsAny(name, "\x00\r\n") {
		return imapkit_errors.NewValidationError("mailbox name %q contains control characters", name)
	}
	if name == ".." || strings.HasPrefix(name, "../") || strings.HasSuffix(name, "/..") || strings.Contains(name, "/../") {
		return imapkit_errors.NewValidationError("mailbox name %q contains path traversal", name)
	}
	return nil
}

// isProtectedMailbox reports whether name is a default folder we refuse to
// delete.
func isProtectedMailbox(name string) bool {
	if strings.EqualFold(name, "INBOX") {
		return true
	}
	return utils.IsStringInSlice(name, protectedMailboxes)
}
