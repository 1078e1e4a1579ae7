package imap

import (
	"crypto/tls"
	"net"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/velomail/imapkit/config"
)

// Session is the raw IMAP4rev1 session handle beneath a Connection. It
// mirrors the verbs of the wire codec plus a socket-timeout setter, so tests
// can substitute a fake server conversation.
type Session interface {
	Login(username, password string) error
	Logout() error
	Noop() error
	Check() error
	Capability() (map[string]bool, error)

	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	Close() error
	Expunge(ch chan uint32) error
	Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error)

	List(ref, name string, ch chan *imap.MailboxInfo) error
	Lsub(ref, name string, ch chan *imap.MailboxInfo) error
	Create(name string) error
	Rename(existingName, newName string) error
	Delete(name string) error
	Subscribe(name string) error
	Unsubscribe(name string) error

	Search(criteria *imap.SearchCriteria) ([]uint32, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	Fetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	UidFetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Store(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	UidStore(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error
	Copy(seqSet *imap.SeqSet, dest string) error
	UidCopy(seqSet *imap.SeqSet, dest string) error
	Append(mbox string, flags []string, date time.Time, msg imap.Literal) error

	SetTimeout(d time.Duration)
}

// clientSession adapts the go-imap client to the Session interface.
type clientSession struct {
	*client.Client
}

func (s *clientSession) SetTimeout(d time.Duration) {
	s.Client.Timeout = d
}

// dialSession establishes the TCP (and optionally TLS) transport. Kept as a
// package variable so tests can inject fake sessions without a server.
var dialSession = func(cfg *config.ConnectionConfig) (Session, error) {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	var c *client.Client
	var err error
	if cfg.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: cfg.Host,
		}
		c, err = client.DialWithDialerTLS(dialer, cfg.Address(), tlsConfig)
	} else {
		c, err = client.DialWithDialer(dialer, cfg.Address())
	}
	if err != nil {
		return nil, err
	}
	return &clientSession{Client: c}, nil
}
