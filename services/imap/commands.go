package imap

import (
	"context"
	"time"

	"github.com/emersion/go-imap"
)

// The verb methods below satisfy interfaces.IMAPCommands. Each one runs
// through command(), so every issued verb carries the same timeout, metrics
// and broken-state handling. Verbs the codec streams over channels are
// collected into slices here; callers never see channel plumbing.

func (c *Connection) Noop() error {
	return c.command(context.Background(), "Noop", func(s Session) error {
		return s.Noop()
	})
}

func (c *Connection) Capability() (map[string]bool, error) {
	var caps map[string]bool
	err := c.command(context.Background(), "Capability", func(s Session) error {
		var err error
		caps, err = s.Capability()
		return err
	})
	return caps, err
}

func (c *Connection) Select(ctx context.Context, name string, readOnly bool) (*imap.MailboxStatus, error) {
	var status *imap.MailboxStatus
	err := c.command(ctx, "Select", func(s Session) error {
		var err error
		status, err = s.Select(name, readOnly)
		return err
	})
	return status, err
}

func (c *Connection) Close(ctx context.Context) error {
	return c.command(ctx, "Close", func(s Session) error {
		return s.Close()
	})
}

func (c *Connection) Check(ctx context.Context) error {
	return c.command(ctx, "Check", func(s Session) error {
		return s.Check()
	})
}

func (c *Connection) Status(ctx context.Context, name string, items []imap.StatusItem) (*imap.MailboxStatus, error) {
	var status *imap.MailboxStatus
	err := c.command(ctx, "Status", func(s Session) error {
		var err error
		status, err = s.Status(name, items)
		return err
	})
	return status, err
}

func (c *Connection) Expunge(ctx context.Context) ([]uint32, error) {
	var expunged []uint32
	err := c.command(ctx, "Expunge", func(s Session) error {
		ch := make(chan uint32, 64)
		done := make(chan error, 1)
		go func() {
			done <- s.Expunge(ch)
		}()
		for seq := range ch {
			expunged = append(expunged, seq)
		}
		return <-done
	})
	return expunged, err
}

func (c *Connection) List(ctx context.Context, ref, pattern string) ([]*imap.MailboxInfo, error) {
	return c.listMailboxes(ctx, "List", ref, pattern, Session.List)
}

func (c *Connection) Lsub(ctx context.Context, ref, pattern string) ([]*imap.MailboxInfo, error) {
	return c.listMailboxes(ctx, "Lsub", ref, pattern, Session.Lsub)
}

func (c *Connection) listMailboxes(ctx context.Context, name, ref, pattern string,
	verb func(Session, string, string, chan *imap.MailboxInfo) error) ([]*imap.MailboxInfo, error) {

	var boxes []*imap.MailboxInfo
	err := c.command(ctx, name, func(s Session) error {
		ch := make(chan *imap.MailboxInfo, 32)
		done := make(chan error, 1)
		go func() {
			done <- verb(s, ref, pattern, ch)
		}()
		for mb := range ch {
			boxes = append(boxes, mb)
		}
		return <-done
	})
	return boxes, err
}

func (c *Connection) Create(ctx context.Context, name string) error {
	return c.command(ctx, "Create", func(s Session) error {
		return s.Create(name)
	})
}

func (c *Connection) Rename(ctx context.Context, existing, newName string) error {
	return c.command(ctx, "Rename", func(s Session) error {
		return s.Rename(existing, newName)
	})
}

func (c *Connection) DeleteMailbox(ctx context.Context, name string) error {
	return c.command(ctx, "DeleteMailbox", func(s Session) error {
		return s.Delete(name)
	})
}

func (c *Connection) Subscribe(ctx context.Context, name string) error {
	return c.command(ctx, "Subscribe", func(s Session) error {
		return s.Subscribe(name)
	})
}

func (c *Connection) Unsubscribe(ctx context.Context, name string) error {
	return c.command(ctx, "Unsubscribe", func(s Session) error {
		return s.Unsubscribe(name)
	})
}

func (c *Connection) Search(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error) {
	var ids []uint32
	err := c.command(ctx, "Search", func(s Session) error {
		var err error
		ids, err = s.Search(criteria)
		return err
	})
	return ids, err
}

func (c *Connection) UIDSearch(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error) {
	var ids []uint32
	err := c.command(ctx, "UIDSearch", func(s Session) error {
		var err error
		ids, err = s.UidSearch(criteria)
		return err
	})
	return ids, err
}

func (c *Connection) Fetch(ctx context.Context, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error) {
	return c.fetchMessages(ctx, "Fetch", seqSet, items, Session.Fetch)
}

func (c *Connection) UIDFetch(ctx context.Context, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error) {
	return c.fetchMessages(ctx, "UIDFetch", seqSet, items, Session.UidFetch)
}

func (c *Connection) fetchMessages(ctx context.Context, name string, seqSet *imap.SeqSet, items []imap.FetchItem,
	verb func(Session, *imap.SeqSet, []imap.FetchItem, chan *imap.Message) error) ([]*imap.Message, error) {

	var messages []*imap.Message
	err := c.command(ctx, name, func(s Session) error {
		ch := make(chan *imap.Message, 16)
		done := make(chan error, 1)
		go func() {
			done <- verb(s, seqSet, items, ch)
		}()
		for msg := range ch {
			messages = append(messages, msg)
		}
		return <-done
	})
	return messages, err
}

func (c *Connection) Store(ctx context.Context, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}) error {
	return c.command(ctx, "Store", func(s Session) error {
		return s.Store(seqSet, item, value, nil)
	})
}

func (c *Connection) UIDStore(ctx context.Context, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}) error {
	return c.command(ctx, "UIDStore", func(s Session) error {
		return s.UidStore(seqSet, item, value, nil)
	})
}

func (c *Connection) Copy(ctx context.Context, seqSet *imap.SeqSet, dest string) error {
	return c.command(ctx, "Copy", func(s Session) error {
		return s.Copy(seqSet, dest)
	})
}

func (c *Connection) UIDCopy(ctx context.Context, seqSet *imap.SeqSet, dest string) error {
	return c.command(ctx, "UIDCopy", func(s Session) error {
		return s.UidCopy(seqSet, dest)
	})
}

func (c *Connection) Append(ctx context.Context, mailbox string, flags []string, date time.Time, msg imap.Literal) error {
	return c.command(ctx, "Append", func(s Session) error {
		return s.Append(mailbox, flags, date, msg)
	})
}
