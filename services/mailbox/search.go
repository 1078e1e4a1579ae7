package mailbox

import (
	"context"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/search"
)

// Search issues SEARCH against the selected mailbox and returns the matching
// sequence numbers. An empty match is a success with MessageCount zero.
func (s *Service) Search(ctx context.Context, criteria search.Criteria) (*models.OperationResult, error) {
	return s.search(ctx, "search", criteria, false)
}

// UIDSearch issues UID SEARCH and returns the matching UIDs.
func (s *Service) UIDSearch(ctx context.Context, criteria search.Criteria) (*models.OperationResult, error) {
	return s.search(ctx, "uidSearch", criteria, true)
}

func (s *Service) search(ctx context.Context, operation string, criteria search.Criteria, uid bool) (*models.OperationResult, error) {
	result, finish, ctx := s.begin(ctx, operation)
	defer func() { finish(result) }()

	if err := s.requireSelection(); err != nil {
		return s.fail(result, err)
	}

	built, err := criteria.Build()
	if err != nil {
		return s.fail(result, imapkit_errors.NewValidationError("%v", err))
	}

	var ids []uint32
	if uid {
		ids, err = s.conn.UIDSearch(ctx, built)
	} else {
		ids, err = s.conn.Search(ctx, built)
	}
	if err != nil {
		return s.fail(result, imapkit_errors.NewOperationError(err, "%s failed for %s", operation, criteria.String()))
	}

	result.MessageCount = len(ids)
	result.AffectedMessages = formatIDs(ids)
	result.Metadata["criteria"] = criteria.String()
	return result, nil
}
