package messageset

import (
	"fmt"
	"sort"
	"strings"

	imapkit_errors "github.com/velomail/imapkit/errors"
)

// Union concatenates two sets of the same addressing type. The result is not
// re-optimized; call Normalize to collapse overlaps. Mailbox tags that
// disagree produce a warning and the left tag wins.
func (s *MessageSet) Union(other *MessageSet) (*MessageSet, error) {
	if s.uid != other.uid {
		return nil, imapkit_errors.ErrMixedSetTypes
	}

	out := s.clone()
	out.spec = s.spec + "," + other.spec
	out.warnings = append(out.warnings, other.warnings...)
	if s.mailbox != "" && other.mailbox != "" && s.mailbox != other.mailbox {
		out.warnings = append(out.warnings,
			fmt.Sprintf("union of sets from mailboxes %q and %q, keeping %q", s.mailbox, other.mailbox, s.mailbox))
	}
	if strings.Count(out.spec, ",")+1 > MaxComponents {
		return nil, imapkit_errors.NewValidationError(
			"union exceeds the %d component limit", MaxComponents)
	}
	return out, nil
}

// Intersect returns the ids present in both sets. Closed ranges are expanded
// into their individual ids first; operands containing an open range are
// refused, their extent is only known server-side.
func (s *MessageSet) Intersect(other *MessageSet) (*MessageSet, error) {
	left, right, err := s.algebraOperands(other)
	if err != nil {
		return nil, err
	}

	inRight := make(map[uint32]struct{}, len(right))
	for _, id := range right {
		inRight[id] = struct{}{}
	}
	var ids []uint32
	for _, id := range left {
		if _, ok := inRight[id]; ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, imapkit_errors.ErrEmptyResult
	}
	return s.rebuild(ids)
}

// Subtract returns the ids of s not present in other. Same open-range policy
// as Intersect.
func (s *MessageSet) Subtract(other *MessageSet) (*MessageSet, error) {
	left, right, err := s.algebraOperands(other)
	if err != nil {
		return nil, err
	}

	inRight := make(map[uint32]struct{}, len(right))
	for _, id := range right {
		inRight[id] = struct{}{}
	}
	var ids []uint32
	for _, id := range left {
		if _, ok := inRight[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, imapkit_errors.ErrEmptyResult
	}
	return s.rebuild(ids)
}

func (s *MessageSet) algebraOperands(other *MessageSet) (left, right []uint32, err error) {
	if s.uid != other.uid {
		return nil, nil, imapkit_errors.ErrMixedSetTypes
	}
	if left, err = s.ExpandedIDs(); err != nil {
		return nil, nil, err
	}
	if right, err = other.ExpandedIDs(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

func (s *MessageSet) rebuild(ids []uint32) (*MessageSet, error) {
	spec, err := canonicalize(ids)
	if err != nil {
		return nil, err
	}
	out := s.clone()
	out.spec = spec
	return out, nil
}

// Normalize re-optimizes the whole set: individual ids and ranges are merged
// into maximal non-overlapping components. Open ranges absorb everything at
// or above their start. Normalization preserves membership and is idempotent.
func (s *MessageSet) Normalize() *MessageSet {
	s.parse()

	type interval struct {
		start uint32
		end   uint32 // 0 = open
	}
	intervals := make([]interval, 0, len(s.ids)+len(s.ranges))
	for _, id := range s.ids {
		intervals = append(intervals, interval{start: id, end: id})
	}
	for _, r := range s.ranges {
		intervals = append(intervals, interval{start: r.Start, end: r.End})
	}
	sort.Slice(intervals, func(i, j int) bool { return intervals[i].start < intervals[j].start })

	var merged []interval
	for _, iv := range intervals {
		if len(merged) == 0 {
			merged = append(merged, iv)
			continue
		}
		last := &merged[len(merged)-1]
		if last.end == 0 {
			// Open range swallows everything above its start.
			continue
		}
		if iv.start <= last.end+1 {
			if iv.end == 0 || iv.end > last.end {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}

	parts := make([]string, 0, len(merged))
	for _, iv := range merged {
		switch {
		case iv.end == iv.start:
			parts = append(parts, fmt.Sprintf("%d", iv.start))
		case iv.end == 0:
			parts = append(parts, fmt.Sprintf("%d:*", iv.start))
		default:
			parts = append(parts, fmt.Sprintf("%d:%d", iv.start, iv.end))
		}
	}

	out := s.clone()
	out.spec = strings.Join(parts, ",")
	return out
}

// Equal compares canonical forms and addressing type; mailbox tags and
// warnings do not participate.
func (s *MessageSet) Equal(other *MessageSet) bool {
	return s.uid == other.uid && s.Normalize().spec == other.Normalize().spec
}
