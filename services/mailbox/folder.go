package mailbox

import (
	"context"

	"github.com/emersion/go-imap"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/models"
)

// FolderInfo describes one mailbox from a LIST/LSUB response.
type FolderInfo struct {
	Name       string   `json:"name"`
	Delimiter  string   `json:"delimiter"`
	Attributes []string `json:"attributes"`
}

// ListFolders returns every mailbox matching pattern ("*" when empty).
func (s *Service) ListFolders(ctx context.Context, pattern string) ([]FolderInfo, error) {
	return s.listFolders(ctx, "listFolders", pattern, s.conn.List)
}

// ListSubscribed returns the subscribed mailboxes matching pattern.
func (s *Service) ListSubscribed(ctx context.Context, pattern string) ([]FolderInfo, error) {
	return s.listFolders(ctx, "listSubscribed", pattern, s.conn.Lsub)
}

func (s *Service) listFolders(ctx context.Context, operation, pattern string,
	verb func(context.Context, string, string) ([]*imap.MailboxInfo, error)) ([]FolderInfo, error) {

	result, finish, ctx := s.begin(ctx, operation)
	defer func() { finish(result) }()

	if err := s.requireAuthenticated(); err != nil {
		result.Fail(err)
		return nil, err
	}
	if pattern == "" {
		pattern = "*"
	}

	boxes, err := verb(ctx, "", pattern)
	if err != nil {
		opErr := imapkit_errors.NewOperationError(err, "%s failed", operation)
		result.Fail(opErr)
		return nil, opErr
	}

	folders := make([]FolderInfo, 0, len(boxes))
	for _, mb := range boxes {
		folders = append(folders, FolderInfo{
			Name:       mb.Name,
			Delimiter:  mb.Delimiter,
			Attributes: mb.Attributes,
		})
	}
	result.MessageCount = len(folders)
	return folders, nil
}

// CreateFolder creates a mailbox. Creating a folder that already exists is
// surfaced as a mailbox error from the server.
func (s *Service) CreateFolder(ctx context.Context, name string) (*models.OperationResult, error) {
	return s.folderOp(ctx, "createFolder", name, func(ctx context.Context) error {
		return s.conn.Create(ctx, name)
	})
}

// RenameFolder renames a mailbox.
func (s *Service) RenameFolder(ctx context.Context, existing, newName string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "renameFolder")
	defer func() { finish(result) }()

	if err := validateMailboxName(existing); err != nil {
		return s.fail(result, err)
	}
	if err := validateMailboxName(newName); err != nil {
		return s.fail(result, err)
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}

	if err := s.conn.Rename(ctx, existing, newName); err != nil {
		return s.fail(result, imapkit_errors.NewMailboxError(err, "rename %s to %s failed", existing, newName))
	}
	if s.currentSelection == existing {
		s.currentSelection = newName
	}
	result.Metadata["renamedTo"] = newName
	return result, nil
}

// DeleteFolder removes a mailbox. Default folders (INBOX, Sent, Trash and
// the other well-known names) are refused before any command is issued.
func (s *Service) DeleteFolder(ctx context.Context, name string) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, "deleteFolder")
	defer func() { finish(result) }()

	if err := validateMailboxName(name); err != nil {
		return s.fail(result, err)
	}
	if isProtectedMailbox(name) {
		return s.fail(result, imapkit_errors.ErrProtectedMailbox)
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}

	if err := s.conn.DeleteMailbox(ctx, name); err != nil {
		return s.fail(result, imapkit_errors.NewMailboxError(err, "delete of %s failed", name))
	}
	if s.currentSelection == name {
		s.currentSelection = ""
	}
	return result, nil
}

// Subscribe adds the mailbox to the subscription list.
func (s *Service) Subscribe(ctx context.Context, name string) (*models.OperationResult, error) {
	return s.folderOp(ctx, "subscribe", name, func(ctx context.Context) error {
		return s.conn.Subscribe(ctx, name)
	})
}

// Unsubscribe removes the mailbox from the subscription list.
func (s *Service) Unsubscribe(ctx context.Context, name string) (*models.OperationResult, error) {
	return s.folderOp(ctx, "unsubscribe", name, func(ctx context.Context) error {
		return s.conn.Unsubscribe(ctx, name)
	})
}

func (s *Service) folderOp(ctx context.Context, operation, name string, fn func(context.Context) error) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, operation)
	defer func() { finish(result) }()

	if err := validateMailboxName(name); err != nil {
		return s.fail(result, err)
	}
	if err := s.requireAuthenticated(); err != nil {
		return s.fail(result, err)
	}
	if err := fn(ctx); err != nil {
		return s.fail(result, imapkit_errors.NewMailboxError(err, "%s failed for %s", operation, name))
	}
	result.Metadata["mailbox"] = name
	return result, nil
}

// UnseenCount returns the UNSEEN counter for a mailbox without selecting it.
func (s *Service) UnseenCount(ctx context.Context, name string) (uint32, error) {
	result, err := s.Status(ctx, name, imap.StatusUnseen)
	if err != nil {
		return 0, err
	}
	if !result.Success {
		return 0, imapkit_errors.NewMailboxError(nil, "%s", result.ErrorMessage)
	}
	unseen, _ := result.Metadata["UNSEEN"].(uint32)
	return unseen, nil
}
