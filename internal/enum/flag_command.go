package enum

import "github.com/emersion/go-imap"

// FlagCommand selects the STORE verb variant.
type FlagCommand string

const (
	FlagAdd    FlagCommand = "add"    // +FLAGS
	FlagRemove FlagCommand = "remove" // -FLAGS
	FlagSet    FlagCommand = "set"    // FLAGS
)

func (c FlagCommand) String() string {
	return string(c)
}

// StoreItem maps the command to the codec's STORE item, always using the
// .SILENT form since results are confirmed by a follow-up FETCH when needed.
func (c FlagCommand) StoreItem() imap.StoreItem {
	switch c {
	case FlagRemove:
		return imap.FormatFlagsOp(imap.RemoveFlags, true)
	case FlagSet:
		return imap.FormatFlagsOp(imap.SetFlags, true)
	default:
		return imap.FormatFlagsOp(imap.AddFlags, true)
	}
}
