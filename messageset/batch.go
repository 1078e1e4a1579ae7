package messageset

import (
	imapkit_errors "github.com/velomail/imapkit/errors"
)

// Batches partitions the set into sub-sets of at most n ids, expanding closed
// ranges into their individual ids first. Open ranges are opaque to batching:
// they are passed through as one extra batch with a warning.
func (s *MessageSet) Batches(n int) ([]*MessageSet, error) {
	if n <= 0 {
		return nil, imapkit_errors.NewValidationError("batch size must be positive, got %d", n)
	}
	s.parse()
	if s.estimated > MaxExpansion {
		return nil, imapkit_errors.NewValidationError(
			"set addresses %d messages, expansion limit is %d", s.estimated, MaxExpansion)
	}

	var open []Range
	for _, r := range s.ranges {
		if r.Open() {
			open = append(open, r)
		}
	}
	ids := expandClosed(s.ids, s.ranges)

	var batches []*MessageSet
	for i := 0; i < len(ids); i += n {
		end := i + n
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.rebuild(ids[i:end])
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}

	if len(open) > 0 {
		rangeSet := s.clone()
		rangeSet.spec = joinRanges(open)
		rangeSet.warnings = append(rangeSet.warnings, "open ranges are not split, emitted as one batch")
		batches = append(batches, rangeSet)
	}
	return batches, nil
}

// SplitBySize is the strict variant of Batches: it refuses sets containing
// open ranges instead of passing them through.
func (s *MessageSet) SplitBySize(n int) ([]*MessageSet, error) {
	if s.HasOpenRange() {
		return nil, imapkit_errors.NewValidationError("cannot split a set containing an open range")
	}
	return s.Batches(n)
}

func joinRanges(ranges []Range) string {
	parts := make([]string, 0, len(ranges))
	for _, r := range ranges {
		parts = append(parts, r.String())
	}
	out := parts[0]
	for _, p := range parts[1:] {
		out += "," + p
	}
	return out
}
