package imap

import (
	"time"

	"github.com/emersion/go-imap"
	"go.uber.org/zap"

	"github.com/velomail/imapkit/internal/logger"
)

// fakeSession scripts server behavior for connection tests without a real
// IMAP endpoint.
type fakeSession struct {
	loginErr error
	noopErr  error
	checkErr error
	capsErr  error

	noopCalls   int
	loginCalls  int
	logoutCalls int
	storeCalls  int
	copyCalls   int

	timeout time.Duration

	fetchMessages []*imap.Message
	fetchErr      error
	searchIDs     []uint32
	searchErr     error
	expungeSeqs   []uint32
	listBoxes     []*imap.MailboxInfo
	selectStatus  *imap.MailboxStatus
	selectErr     error
	appendErr     error
}

func (f *fakeSession) Login(username, password string) error {
	f.loginCalls++
	return f.loginErr
}

func (f *fakeSession) Logout() error {
	f.logoutCalls++
	return nil
}

func (f *fakeSession) Noop() error {
	f.noopCalls++
	return f.noopErr
}

func (f *fakeSession) Check() error {
	return f.checkErr
}

func (f *fakeSession) Capability() (map[string]bool, error) {
	if f.capsErr != nil {
		return nil, f.capsErr
	}
	return map[string]bool{"IMAP4REV1": true}, nil
}

func (f *fakeSession) Select(name string, readOnly bool) (*imap.MailboxStatus, error) {
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	if f.selectStatus != nil {
		return f.selectStatus, nil
	}
	return &imap.MailboxStatus{Name: name}, nil
}

func (f *fakeSession) Close() error {
	return nil
}

func (f *fakeSession) Expunge(ch chan uint32) error {
	for _, seq := range f.expungeSeqs {
		ch <- seq
	}
	close(ch)
	return nil
}

func (f *fakeSession) Status(name string, items []imap.StatusItem) (*imap.MailboxStatus, error) {
	return &imap.MailboxStatus{Name: name}, nil
}

func (f *fakeSession) List(ref, name string, ch chan *imap.MailboxInfo) error {
	for _, mb := range f.listBoxes {
		ch <- mb
	}
	close(ch)
	return nil
}

func (f *fakeSession) Lsub(ref, name string, ch chan *imap.MailboxInfo) error {
	return f.List(ref, name, ch)
}

func (f *fakeSession) Create(name string) error      { return nil }
func (f *fakeSession) Rename(a, b string) error      { return nil }
func (f *fakeSession) Delete(name string) error      { return nil }
func (f *fakeSession) Subscribe(name string) error   { return nil }
func (f *fakeSession) Unsubscribe(name string) error { return nil }

func (f *fakeSession) Search(criteria *imap.SearchCriteria) ([]uint32, error) {
	return f.searchIDs, f.searchErr
}

func (f *fakeSession) UidSearch(criteria *imap.SearchCriteria) ([]uint32, error) {
	return f.searchIDs, f.searchErr
}

func (f *fakeSession) Fetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	for _, msg := range f.fetchMessages {
		ch <- msg
	}
	close(ch)
	return f.fetchErr
}

func (f *fakeSession) UidFetch(seqSet *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error {
	return f.Fetch(seqSet, items, ch)
}

func (f *fakeSession) Store(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	f.storeCalls++
	return nil
}

func (f *fakeSession) UidStore(seqSet *imap.SeqSet, item imap.StoreItem, value interface{}, ch chan *imap.Message) error {
	return f.Store(seqSet, item, value, ch)
}

func (f *fakeSession) Copy(seqSet *imap.SeqSet, dest string) error {
	f.copyCalls++
	return nil
}

func (f *fakeSession) UidCopy(seqSet *imap.SeqSet, dest string) error {
	return f.Copy(seqSet, dest)
}

func (f *fakeSession) Append(mbox string, flags []string, date time.Time, msg imap.Literal) error {
	return f.appendErr
}

func (f *fakeSession) SetTimeout(d time.Duration) {
	f.timeout = d
}

// nopLogger keeps test output quiet.
type nopLogger struct{}

func (nopLogger) InitLogger()                          {}
func (nopLogger) Logger() *zap.Logger                  { return nil }
func (nopLogger) Debug(args ...interface{})            {}
func (nopLogger) Debugf(t string, args ...interface{}) {}
func (nopLogger) Info(args ...interface{})             {}
func (nopLogger) Infof(t string, args ...interface{})  {}
func (nopLogger) Warn(args ...interface{})             {}
func (nopLogger) Warnf(t string, args ...interface{})  {}
func (nopLogger) Error(args ...interface{})            {}
func (nopLogger) Errorf(t string, args ...interface{}) {}
func (nopLogger) Fatalf(t string, args ...interface{}) {}

var _ logger.Logger = nopLogger{}
