// Package messageset provides an immutable value type for addressing sets of
// IMAP messages, either by UID or by sequence number. Sets render to the
// canonical RFC 3501 sequence-set form (e.g. "1:3,5,10:*") and bridge to the
// wire codec via ToSeqSet.
package messageset

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/emersion/go-imap"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/models"
)

// MaxComponents bounds the number of comma-separated components a set may
// carry. Longer sets must be split by the caller; the limit keeps a single
// command line within what servers commonly accept. It is never silently
// truncated.
const MaxComponents = 1000

// Range is one N:M component. End == 0 means the open form N:*.
type Range struct {
	Start uint32
	End   uint32
}

// Open reports whether the range is open-ended (N:*).
func (r Range) Open() bool {
	return r.End == 0
}

func (r Range) String() string {
	if r.Open() {
		return fmt.Sprintf("%d:*", r.Start)
	}
	return fmt.Sprintf("%d:%d", r.Start, r.End)
}

// MessageSet is an immutable set of message identifiers. The zero value is
// not usable; construct through the package functions.
type MessageSet struct {
	spec     string
	uid      bool
	mailbox  string
	warnings []string

	parseOnce sync.Once
	ids       []uint32
	ranges    []Range
	estimated int
}

// FromUIDs builds a set from UIDs. Duplicates are removed, ids sorted
// ascending, and consecutive runs collapsed into ranges.
func FromUIDs(ids []uint32) (*MessageSet, error) {
	spec, err := canonicalize(ids)
	if err != nil {
		return nil, err
	}
	return &MessageSet{spec: spec, uid: true}, nil
}

// FromSequenceNumbers builds a set from sequence numbers. Sequence numbers
// are positional and unstable across expunges; UIDs are preferred, so the
// set carries a warning.
func FromSequenceNumbers(ids []uint32) (*MessageSet, error) {
	spec, err := canonicalize(ids)
	if err != nil {
		return nil, err
	}
	return &MessageSet{
		spec:     spec,
		uid:      false,
		warnings: []string{"sequence-number set: identifiers are not stable across sessions, prefer UIDs"},
	}, nil
}

// FromEmailMessages builds a set from fetched messages, preferring UIDs.
// If any message lacks a UID the whole set falls back to sequence numbers
// with a warning. The mailbox tag is taken from the messages when uniform.
func FromEmailMessages(msgs []*models.EmailMessage) (*MessageSet, error) {
	if len(msgs) == 0 {
		return nil, imapkit_errors.ErrEmptyMessageSet
	}

	allUIDs := true
	for _, m := range msgs {
		if m.UID == 0 {
			allUIDs = false
			break
		}
	}

	ids := make([]uint32, 0, len(msgs))
	var set *MessageSet
	var err error
	if allUIDs {
		for _, m := range msgs {
			ids = append(ids, m.UID)
		}
		set, err = FromUIDs(ids)
	} else {
		for _, m := range msgs {
			if m.SequenceNumber > 0 {
				ids = append(ids, m.SequenceNumber)
			}
		}
		if len(ids) == 0 {
			return nil, imapkit_errors.NewValidationError("messages carry neither UIDs nor sequence numbers")
		}
		set, err = FromSequenceNumbers(ids)
		if err == nil {
			set.warnings = append(set.warnings, "some messages lack UIDs, fell back to sequence numbers")
		}
	}
	if err != nil {
		return nil, err
	}

	mailbox := msgs[0].Mailbox
	for _, m := range msgs[1:] {
		if m.Mailbox != mailbox {
			mailbox = ""
			break
		}
	}
	set.mailbox = mailbox
	return set, nil
}

// FromRange builds a single-range set. end == 0 denotes the open form
// start:*; otherwise end must be >= start.
func FromRange(start, end uint32, isUID bool) (*MessageSet, error) {
	if start == 0 {
		return nil, imapkit_errors.NewValidationError("range start must be a positive integer")
	}
	if end != 0 && end < start {
		return nil, imapkit_errors.NewValidationError("range end %d is below start %d", end, start)
	}
	if end == start {
		return &MessageSet{spec: strconv.FormatUint(uint64(start), 10), uid: isUID}, nil
	}
	return &MessageSet{spec: Range{Start: start, End: end}.String(), uid: isUID}, nil
}

// AllMessages is the full-mailbox set 1:*.
func AllMessages(isUID bool) *MessageSet {
	set, _ := FromRange(1, 0, isUID)
	return set
}

// Parse accepts a raw comma-separated mix of N and N:M components. Each
// component is validated independently; components are not re-optimized
// across one another until Normalize is called.
func Parse(spec string, isUID bool) (*MessageSet, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, imapkit_errors.ErrEmptyMessageSet
	}

	components := strings.Split(spec, ",")
	if len(components) > MaxComponents {
		return nil, imapkit_errors.NewValidationError(
			"message set has %d components, limit is %d", len(components), MaxComponents)
	}
	for _, comp := range components {
		if _, _, err := parseComponent(comp); err != nil {
			return nil, err
		}
	}
	return &MessageSet{spec: spec, uid: isUID}, nil
}

// canonicalize sorts, dedups, and collapses consecutive runs.
func canonicalize(ids []uint32) (string, error) {
	if len(ids) == 0 {
		return "", imapkit_errors.ErrEmptyMessageSet
	}

	seen := make(map[uint32]struct{}, len(ids))
	sorted := make([]uint32, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			return "", imapkit_errors.NewValidationError("message ids must be positive integers")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var parts []string
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[j]+1 {
			j++
		}
		if j == i {
			parts = append(parts, strconv.FormatUint(uint64(sorted[i]), 10))
		} else {
			parts = append(parts, fmt.Sprintf("%d:%d", sorted[i], sorted[j]))
		}
		i = j + 1
	}

	if len(parts) > MaxComponents {
		return "", imapkit_errors.NewValidationError(
			"message set has %d components, limit is %d", len(parts), MaxComponents)
	}
	return strings.Join(parts, ","), nil
}

// parseComponent parses a single N or N:M component. A returned End of 0
// with ok range means the open form; a bare id comes back as (id, id).
func parseComponent(comp string) (start, end uint32, err error) {
	comp = strings.TrimSpace(comp)
	if comp == "" {
		return 0, 0, imapkit_errors.NewValidationError("empty message set component")
	}

	colon := strings.IndexByte(comp, ':')
	if colon < 0 {
		id, perr := parseID(comp)
		if perr != nil {
			return 0, 0, perr
		}
		return id, id, nil
	}

	start, err = parseID(comp[:colon])
	if err != nil {
		return 0, 0, err
	}
	endTok := comp[colon+1:]
	if endTok == "*" {
		return start, 0, nil
	}
	end, err = parseID(endTok)
	if err != nil {
		return 0, 0, err
	}
	if end < start {
		return 0, 0, imapkit_errors.NewValidationError("range %q runs backwards", comp)
	}
	return start, end, nil
}

func parseID(tok string) (uint32, error) {
	tok = strings.TrimSpace(tok)
	n, err := strconv.ParseUint(tok, 10, 32)
	if err != nil || n == 0 {
		return 0, imapkit_errors.NewValidationError("invalid message id %q", tok)
	}
	return uint32(n), nil
}

// parse populates the memoized derived views. The set is immutable, so the
// one-shot guard is safe.
func (s *MessageSet) parse() {
	s.parseOnce.Do(func() {
		for _, comp := range strings.Split(s.spec, ",") {
			start, end, err := parseComponent(comp)
			if err != nil {
				// Constructors validated every component already.
				continue
			}
			switch {
			case end == start && !strings.Contains(comp, ":"):
				s.ids = append(s.ids, start)
				s.estimated++
			case end == 0:
				s.ranges = append(s.ranges, Range{Start: start})
				s.estimated++ // conservative lower bound for an open range
			default:
				s.ranges = append(s.ranges, Range{Start: start, End: end})
				s.estimated += int(end-start) + 1
			}
		}
	})
}

// String returns the canonical id-string, which is also the wire form.
func (s *MessageSet) String() string {
	return s.spec
}

// IsUID reports whether the set addresses UIDs (true) or sequence numbers.
func (s *MessageSet) IsUID() bool {
	return s.uid
}

// Mailbox returns the optional mailbox context tag.
func (s *MessageSet) Mailbox() string {
	return s.mailbox
}

// WithMailbox returns a copy tagged with the given mailbox name.
func (s *MessageSet) WithMailbox(mailbox string) *MessageSet {
	out := s.clone()
	out.mailbox = mailbox
	return out
}

// Warnings returns observations accumulated during construction and algebra.
func (s *MessageSet) Warnings() []string {
	return s.warnings
}

// ParsedIDs returns the individual (non-range) ids, ascending.
func (s *MessageSet) ParsedIDs() []uint32 {
	s.parse()
	out := make([]uint32, len(s.ids))
	copy(out, s.ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MaxExpansion bounds how many ids a set may be expanded into for algebra
// and batching. Larger sets must be narrowed server-side first.
const MaxExpansion = 1 << 20

// ExpandedIDs returns every id the set addresses, ascending and deduplicated,
// with closed ranges expanded into their individual ids. Open ranges have no
// client-side extent and are refused.
func (s *MessageSet) ExpandedIDs() ([]uint32, error) {
	s.parse()
	if s.HasOpenRange() {
		return nil, imapkit_errors.NewValidationError(
			"cannot expand an open range, its extent is only known server-side")
	}
	if s.estimated > MaxExpansion {
		return nil, imapkit_errors.NewValidationError(
			"set addresses %d messages, expansion limit is %d", s.estimated, MaxExpansion)
	}
	return expandClosed(s.ids, s.ranges), nil
}

// expandClosed flattens ids plus the closed ranges into one ascending,
// deduplicated id list. Open ranges are skipped; callers decide their fate.
func expandClosed(ids []uint32, ranges []Range) []uint32 {
	out := make([]uint32, 0, len(ids))
	out = append(out, ids...)
	for _, r := range ranges {
		if r.Open() {
			continue
		}
		for id := r.Start; ; id++ {
			out = append(out, id)
			if id == r.End {
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	dedup := out[:0]
	for i, id := range out {
		if i == 0 || id != out[i-1] {
			dedup = append(dedup, id)
		}
	}
	return dedup
}

// Ranges returns the range components.
func (s *MessageSet) Ranges() []Range {
	s.parse()
	out := make([]Range, len(s.ranges))
	copy(out, s.ranges)
	return out
}

// HasRanges reports whether the set contains any N:M component.
func (s *MessageSet) HasRanges() bool {
	s.parse()
	return len(s.ranges) > 0
}

// HasOpenRange reports whether the set contains an N:* component.
func (s *MessageSet) HasOpenRange() bool {
	s.parse()
	for _, r := range s.ranges {
		if r.Open() {
			return true
		}
	}
	return false
}

// EstimatedCount is the number of messages the set addresses. Open ranges
// contribute 1 as a conservative lower bound.
func (s *MessageSet) EstimatedCount() int {
	s.parse()
	return s.estimated
}

// LastID returns the highest concrete id, or ok=false when the set ends in
// an open range.
func (s *MessageSet) LastID() (uint32, bool) {
	s.parse()
	if s.HasOpenRange() {
		return 0, false
	}
	var last uint32
	for _, id := range s.ids {
		if id > last {
			last = id
		}
	}
	for _, r := range s.ranges {
		if r.End > last {
			last = r.End
		}
	}
	return last, true
}

// Contains reports membership. An open range matches any id at or above its
// start.
func (s *MessageSet) Contains(id uint32) bool {
	s.parse()
	for _, known := range s.ids {
		if known == id {
			return true
		}
	}
	for _, r := range s.ranges {
		if id >= r.Start && (r.Open() || id <= r.End) {
			return true
		}
	}
	return false
}

// ToSeqSet bridges to the codec's sequence-set form.
func (s *MessageSet) ToSeqSet() *imap.SeqSet {
	s.parse()
	seqSet := new(imap.SeqSet)
	for _, id := range s.ids {
		seqSet.AddNum(id)
	}
	for _, r := range s.ranges {
		seqSet.AddRange(r.Start, r.End)
	}
	return seqSet
}

func (s *MessageSet) clone() *MessageSet {
	out := &MessageSet{spec: s.spec, uid: s.uid, mailbox: s.mailbox}
	out.warnings = append(out.warnings, s.warnings...)
	return out
}
