package enum

import "github.com/emersion/go-imap"

// Flag is one of the six IMAP system flags.
type Flag string

const (
	FlagSeen     Flag = imap.SeenFlag
	FlagAnswered Flag = imap.AnsweredFlag
	FlagFlagged  Flag = imap.FlaggedFlag
	FlagDeleted  Flag = imap.DeletedFlag
	FlagDraft    Flag = imap.DraftFlag
	FlagRecent   Flag = imap.RecentFlag
)

func (f Flag) String() string {
	return string(f)
}

// IsSystemFlag reports whether f is one of the RFC 3501 system flags.
func (f Flag) IsSystemFlag() bool {
	switch f {
	case FlagSeen, FlagAnswered, FlagFlagged, FlagDeleted, FlagDraft, FlagRecent:
		return true
	}
	return false
}

// FlagStrings converts a flag list to the raw string form the codec expects.
func FlagStrings(flags []Flag) []string {
	out := make([]string, 0, len(flags))
	for _, f := range flags {
		out = append(out, f.String())
	}
	return out
}

// FlagsFromStrings converts raw server flags, dropping nothing.
func FlagsFromStrings(raw []string) []Flag {
	out := make([]Flag, 0, len(raw))
	for _, s := range raw {
		out = append(out, Flag(s))
	}
	return out
}
