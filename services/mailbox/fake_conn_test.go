package mailbox

import (
	"bytes"
	"context"
	"time"

	"github.com/emersion/go-imap"

	"github.com/velomail/imapkit/interfaces"
	"github.com/velomail/imapkit/internal/logger"

	"go.uber.org/zap"
)

// fakeConn scripts the connection layer so service semantics can be tested
// without a server. Calls are recorded in order for composite assertions.
type fakeConn struct {
	authenticated bool
	calls         []string

	selectErr  error
	statusRes  *imap.MailboxStatus
	statusErr  error
	searchIDs  []uint32
	searchErr  error
	fetchMsgs  []*imap.Message
	fetchErr   error
	storeErr   error
	copyErr    error
	copyErrs   []error // consumed first when non-empty, one per COPY call
	expungeErr error
	checkErr   error
	createErr  error
	renameErr  error
	deleteErr  error
	appendErr  error
	listBoxes  []*imap.MailboxInfo
	listErr    error
}

func newFakeConn() *fakeConn {
	return &fakeConn{authenticated: true}
}

func (f *fakeConn) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeConn) Noop() error                          { f.record("NOOP"); return nil }
func (f *fakeConn) Capability() (map[string]bool, error) { f.record("CAPABILITY"); return nil, nil }
func (f *fakeConn) IsAuthenticated() bool                { return f.authenticated }

func (f *fakeConn) Select(ctx context.Context, name string, readOnly bool) (*imap.MailboxStatus, error) {
	f.record("SELECT " + name)
	if f.selectErr != nil {
		return nil, f.selectErr
	}
	return &imap.MailboxStatus{Name: name, Messages: 42}, nil
}

func (f *fakeConn) Close(ctx context.Context) error {
	f.record("CLOSE")
	return nil
}

func (f *fakeConn) Check(ctx context.Context) error {
	f.record("CHECK")
	return f.checkErr
}

func (f *fakeConn) Status(ctx context.Context, name string, items []imap.StatusItem) (*imap.MailboxStatus, error) {
	f.record("STATUS " + name)
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.statusRes != nil {
		return f.statusRes, nil
	}
	return &imap.MailboxStatus{Name: name, Messages: 10, Unseen: 3, UidNext: 100, UidValidity: 1}, nil
}

func (f *fakeConn) Expunge(ctx context.Context) ([]uint32, error) {
	f.record("EXPUNGE")
	return []uint32{1}, f.expungeErr
}

func (f *fakeConn) List(ctx context.Context, ref, pattern string) ([]*imap.MailboxInfo, error) {
	f.record("LIST " + pattern)
	return f.listBoxes, f.listErr
}

func (f *fakeConn) Lsub(ctx context.Context, ref, pattern string) ([]*imap.MailboxInfo, error) {
	f.record("LSUB " + pattern)
	return f.listBoxes, f.listErr
}

func (f *fakeConn) Create(ctx context.Context, name string) error {
	f.record("CREATE " + name)
	return f.createErr
}

func (f *fakeConn) Rename(ctx context.Context, existing, newName string) error {
	f.record("RENAME " + existing + " " + newName)
	return f.renameErr
}

func (f *fakeConn) DeleteMailbox(ctx context.Context, name string) error {
	f.record("DELETE " + name)
	return f.deleteErr
}

func (f *fakeConn) Subscribe(ctx context.Context, name string) error {
	f.record("SUBSCRIBE " + name)
	return nil
}

func (f *fakeConn) Unsubscribe(ctx context.Context, name string) error {
	f.record("UNSUBSCRIBE " + name)
	return nil
}

func (f *fakeConn) Search(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error) {
	f.record("SEARCH")
	return f.searchIDs, f.searchErr
}

func (f *fakeConn) UIDSearch(ctx context.Context, criteria *imap.SearchCriteria) ([]uint32, error) {
	f.record("UID SEARCH")
	return f.searchIDs, f.searchErr
}

func (f *fakeConn) Fetch(ctx context.Context, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error) {
	f.record("FETCH " + seqSet.String())
	return f.fetchMsgs, f.fetchErr
}

func (f *fakeConn) UIDFetch(ctx context.Context, seqSet *imap.SeqSet, items []imap.FetchItem) ([]*imap.Message, error) {
	f.record("UID FETCH " + seqSet.String())
	return f.fetchMsgs, f.fetchErr
}

func (f *fakeConn) Store(ctx context.Context, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}) error {
	f.record("STORE " + seqSet.String() + " " + string(item))
	return f.storeErr
}

func (f *fakeConn) UIDStore(ctx context.Context, seqSet *imap.SeqSet, item imap.StoreItem, value interface{}) error {
	f.record("UID STORE " + seqSet.String() + " " + string(item))
	return f.storeErr
}

func (f *fakeConn) Copy(ctx context.Context, seqSet *imap.SeqSet, dest string) error {
	f.record("COPY " + seqSet.String() + " " + dest)
	return f.nextCopyErr()
}

func (f *fakeConn) UIDCopy(ctx context.Context, seqSet *imap.SeqSet, dest string) error {
	f.record("UID COPY " + seqSet.String() + " " + dest)
	return f.nextCopyErr()
}

func (f *fakeConn) nextCopyErr() error {
	if len(f.copyErrs) > 0 {
		err := f.copyErrs[0]
		f.copyErrs = f.copyErrs[1:]
		return err
	}
	return f.copyErr
}

func (f *fakeConn) Append(ctx context.Context, mailbox string, flags []string, date time.Time, msg imap.Literal) error {
	f.record("APPEND " + mailbox)
	return f.appendErr
}

var _ interfaces.IMAPCommands = (*fakeConn)(nil)

// sampleEml is a minimal but complete RFC 5322 message for parse tests.
const sampleEml = "Message-Id: <msg-1@example.com>\r\n" +
	"From: Alice Example <alice@example.com>\r\n" +
	"To: bob@example.com\r\n" +
	"Subject: hello\r\n" +
	"Date: Mon, 01 Jan 2024 10:30:00 +0000\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"hi bob\r\n"

// fetchMessage wraps raw bytes as one scripted FETCH response.
func fetchMessage(seq, uid uint32, flags []string, raw string) *imap.Message {
	section := &imap.BodySectionName{}
	return &imap.Message{
		SeqNum: seq,
		Uid:    uid,
		Flags:  flags,
		Body: map[*imap.BodySectionName]imap.Literal{
			section: bytes.NewBufferString(raw),
		},
	}
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
