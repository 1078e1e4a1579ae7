package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/emersion/go-imap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/enum"
	"github.com/velomail/imapkit/internal/models"
	"github.com/velomail/imapkit/messageset"
	"github.com/velomail/imapkit/search"
)

func selectedService(t *testing.T, conn *fakeConn) *Service {
	t.Helper()
	svc := newTestService(conn)
	_, err := svc.Select(context.Background(), "INBOX")
	require.NoError(t, err)
	conn.calls = nil
	return svc
}

func uidSet(t *testing.T, ids ...uint32) *messageset.MessageSet {
	t.Helper()
	set, err := messageset.FromUIDs(ids)
	require.NoError(t, err)
	return set
}

func TestUIDFetch(t *testing.T) {
	t.Run("parses payloads and overlays session fields", func(t *testing.T) {
		conn := newFakeConn()
		conn.fetchMsgs = []*imap.Message{fetchMessage(1, 101, []string{"\\Seen"}, sampleEml)}
		svc := selectedService(t, conn)

		res, err := svc.UIDFetch(context.Background(), uidSet(t, 101), "")

		require.NoError(t, err)
		assert.True(t, res.Success)
		require.Equal(t, 1, res.MessageCount)
		msgs := res.Messages()
		require.Len(t, msgs, 1)

		msg := msgs[0]
		assert.Equal(t, "msg-1@example.com", msg.MessageID, "angle brackets stripped")
		assert.Equal(t, "hello", msg.Subject)
		assert.Equal(t, "alice@example.com", msg.FromAddress)
		assert.Equal(t, "Alice Example", msg.FromName)
		assert.Equal(t, []string{"bob@example.com"}, msg.ToAddresses)
		assert.Contains(t, msg.BodyText, "hi bob")
		assert.Equal(t, "2024-01-01T10:30:00Z", msg.Date)

		assert.Equal(t, uint32(101), msg.UID)
		assert.Equal(t, uint32(1), msg.SequenceNumber)
		assert.Equal(t, "INBOX", msg.Mailbox)
		assert.True(t, msg.HasFlag(enum.FlagSeen))
		assert.Equal(t, uint32(len(sampleEml)), msg.Size)
	})

	t.Run("malformed payloads are skipped with a warning", func(t *testing.T) {
		conn := newFakeConn()
		conn.fetchMsgs = []*imap.Message{
			fetchMessage(1, 101, nil, sampleEml),
			fetchMessage(2, 102, nil, ""), // empty payload
		}
		svc := selectedService(t, conn)

		res, err := svc.UIDFetch(context.Background(), uidSet(t, 101, 102), "")

		require.NoError(t, err)
		assert.True(t, res.Success, "one good message is enough")
		assert.Equal(t, 1, res.MessageCount)
		assert.NotEmpty(t, res.Warnings)
	})

	t.Run("all payloads malformed fails the operation", func(t *testing.T) {
		conn := newFakeConn()
		conn.fetchMsgs = []*imap.Message{fetchMessage(1, 101, nil, "")}
		svc := selectedService(t, conn)

		res, err := svc.UIDFetch(context.Background(), uidSet(t, 101), "")

		require.NoError(t, err, "server-level outcome lives in the result")
		assert.False(t, res.Success)
	})

	t.Run("addressing mismatch rejected pre-flight", func(t *testing.T) {
		conn := newFakeConn()
		svc := selectedService(t, conn)
		seqs, err := messageset.FromSequenceNumbers([]uint32{1})
		require.NoError(t, err)

		_, err = svc.UIDFetch(context.Background(), seqs, "")

		require.Error(t, err)
		assert.True(t, imapkit_errors.IsValidationError(err))
		assert.Empty(t, conn.calls)
	})
}

func TestCopy_TryCreate(t *testing.T) {
	t.Run("missing destination created and copy retried once", func(t *testing.T) {
		conn := newFakeConn()
		conn.copyErrs = []error{errors.New("NO [TRYCREATE] mailbox does not exist"), nil}
		svc := selectedService(t, conn)

		res, err := svc.Copy(context.Background(), uidSet(t, 1, 2), "Archive")

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.NotEmpty(t, res.Warnings)
		assert.Equal(t, []string{
			"UID COPY 1:2 Archive",
			"CREATE Archive",
			"UID COPY 1:2 Archive",
			"CHECK",
		}, conn.calls)
	})

	t.Run("successful copy ends with a checkpoint", func(t *testing.T) {
		conn := newFakeConn()
		svc := selectedService(t, conn)

		res, err := svc.Copy(context.Background(), uidSet(t, 4), "Archive")

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, []string{"UID COPY 4 Archive", "CHECK"}, conn.calls)
	})

	t.Run("non-TRYCREATE refusal is not retried", func(t *testing.T) {
		conn := newFakeConn()
		conn.copyErr = errors.New("NO COPY failed")
		svc := selectedService(t, conn)

		res, err := svc.Copy(context.Background(), uidSet(t, 1), "Archive")

		require.NoError(t, err)
		assert.False(t, res.Success)
		assert.Len(t, conn.calls, 1)
	})
}

func TestMove_CompositeOrder(t *testing.T) {
	conn := newFakeConn()
	svc := selectedService(t, conn)

	res, err := svc.Move(context.Background(), uidSet(t, 5, 6), "Archive")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, []string{
		"UID COPY 5:6 Archive",
		"UID STORE 5:6 +FLAGS.SILENT",
		"EXPUNGE",
		"CHECK",
	}, conn.calls)
}

func TestMove_CopyFailureAbortsBeforeMutation(t *testing.T) {
	conn := newFakeConn()
	conn.copyErr = errors.New("NO COPY refused")
	svc := selectedService(t, conn)

	res, err := svc.Move(context.Background(), uidSet(t, 5), "Archive")

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Len(t, conn.calls, 1, "source untouched after failed copy")
}

func TestMove_DeleteFlagFailureWarns(t *testing.T) {
	conn := newFakeConn()
	conn.storeErr = errors.New("NO STORE failed")
	svc := selectedService(t, conn)

	res, err := svc.Move(context.Background(), uidSet(t, 5), "Archive")

	require.NoError(t, err)
	assert.True(t, res.Success, "messages are at the destination")
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "not removed from source")
	assert.NotContains(t, conn.calls, "EXPUNGE", "no expunge after failed flag store")
}

func TestDelete_TrashesThenExpungesTrash(t *testing.T) {
	conn := newFakeConn()
	svc := selectedService(t, conn)

	res, err := svc.Delete(context.Background(), uidSet(t, 9), "Trash")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Trash", svc.CurrentSelection())
	assert.Equal(t, []string{
		"UID COPY 9 Trash",
		"UID STORE 9 +FLAGS.SILENT",
		"EXPUNGE",
		"CHECK",
		"SELECT Trash",
		"EXPUNGE",
		"CHECK",
	}, conn.calls)
}

func TestRestore(t *testing.T) {
	conn := newFakeConn()
	svc := newTestService(conn)

	res, err := svc.Restore(context.Background(), uidSet(t, 3), "Trash", "INBOX")

	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "INBOX", svc.CurrentSelection())
	assert.Contains(t, conn.calls, "SELECT Trash")
	assert.Contains(t, conn.calls, "UID COPY 3 INBOX")
	assert.Contains(t, conn.calls, "SELECT INBOX")
	assert.Contains(t, conn.calls, "UID STORE 1:* -FLAGS.SILENT")
}

func TestAppend(t *testing.T) {
	t.Run("reports octet count", func(t *testing.T) {
		conn := newFakeConn()
		svc := newTestService(conn)

		res, err := svc.Append(context.Background(), "INBOX", []enum.Flag{enum.FlagSeen}, time.Now(), []byte(sampleEml))

		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, len(sampleEml), res.Metadata["octets"])
		assert.Equal(t, []string{"APPEND INBOX"}, conn.calls)
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		svc := newTestService(newFakeConn())

		_, err := svc.Append(context.Background(), "INBOX", nil, time.Now(), nil)

		require.Error(t, err)
		assert.True(t, imapkit_errors.IsValidationError(err))
	})
}

func TestUploadEml(t *testing.T) {
	now := time.Now()
	msgWithDate := func(raw string) *models.EmailMessage {
		return &models.EmailMessage{Raw: []byte(raw), SentAt: &now}
	}

	t.Run("counts successes and validation failures", func(t *testing.T) {
		conn := newFakeConn()
		svc := newTestService(conn)
		msgs := []*models.EmailMessage{
			msgWithDate(sampleEml),
			{Raw: []byte(sampleEml)},           // no date
			{SentAt: &now},                      // no raw payload
			msgWithDate(sampleEml),
		}

		bulk, err := svc.UploadEml(context.Background(), msgs, nil, "INBOX", 2)

		require.NoError(t, err)
		assert.True(t, bulk.Success)
		assert.Equal(t, 4, bulk.TotalMessages)
		assert.Equal(t, 2, bulk.SuccessfulMessages)
		assert.Equal(t, 2, bulk.FailedMessages)
		assert.Len(t, bulk.Errors, 2)
	})

	t.Run("cancellation honored between appends", func(t *testing.T) {
		conn := newFakeConn()
		svc := newTestService(conn)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		bulk, err := svc.UploadEml(ctx, []*models.EmailMessage{msgWithDate(sampleEml)}, nil, "INBOX", 10)

		require.NoError(t, err)
		assert.Equal(t, 0, bulk.SuccessfulMessages)
		assert.NotEmpty(t, bulk.Warnings)
	})
}

func TestBulkMove(t *testing.T) {
	conn := newFakeConn()
	svc := selectedService(t, conn)
	pairs := []MovePair{
		{Set: uidSet(t, 1, 2), Dest: "Archive"},
		{Set: uidSet(t, 3), Dest: "Archive/2026"},
	}

	bulk, err := svc.BulkMove(context.Background(), pairs)

	require.NoError(t, err)
	assert.True(t, bulk.Success)
	assert.Equal(t, 3, bulk.TotalMessages)
	assert.Equal(t, 3, bulk.SuccessfulMessages)
	assert.Equal(t, 2, bulk.BatchesProcessed)
}

func TestBulkMove_PartialFailure(t *testing.T) {
	conn := newFakeConn()
	conn.copyErrs = []error{errors.New("NO COPY refused"), nil}
	svc := selectedService(t, conn)
	pairs := []MovePair{
		{Set: uidSet(t, 1), Dest: "Archive"},
		{Set: uidSet(t, 2), Dest: "Archive"},
	}

	bulk, err := svc.BulkMove(context.Background(), pairs)

	require.NoError(t, err)
	assert.True(t, bulk.Success, "a bulk fails only when nothing succeeded")
	assert.Equal(t, 1, bulk.SuccessfulMessages)
	assert.Equal(t, 1, bulk.FailedMessages)
	assert.Len(t, bulk.Errors, 1)
}

func TestSearchAndProcess(t *testing.T) {
	t.Run("fetches matches in batches and hands them to the processor", func(t *testing.T) {
		conn := newFakeConn()
		conn.searchIDs = []uint32{101, 102}
		conn.fetchMsgs = []*imap.Message{
			fetchMessage(1, 101, nil, sampleEml),
			fetchMessage(2, 102, nil, sampleEml),
		}
		svc := selectedService(t, conn)

		var seen []uint32
		bulk, err := svc.SearchAndProcess(context.Background(), search.Unseen(), func(m *models.EmailMessage) error {
			seen = append(seen, m.UID)
			return nil
		}, 50)

		require.NoError(t, err)
		assert.True(t, bulk.Success)
		assert.Equal(t, 2, bulk.TotalMessages)
		assert.Equal(t, 2, bulk.SuccessfulMessages)
		assert.Equal(t, []uint32{101, 102}, seen)
	})

	t.Run("processor panic counts as failure without aborting", func(t *testing.T) {
		conn := newFakeConn()
		conn.searchIDs = []uint32{101, 102}
		conn.fetchMsgs = []*imap.Message{
			fetchMessage(1, 101, nil, sampleEml),
			fetchMessage(2, 102, nil, sampleEml),
		}
		svc := selectedService(t, conn)

		calls := 0
		bulk, err := svc.SearchAndProcess(context.Background(), search.All(), func(m *models.EmailMessage) error {
			calls++
			if calls == 1 {
				panic("boom")
			}
			return nil
		}, 50)

		require.NoError(t, err)
		assert.True(t, bulk.Success)
		assert.Equal(t, 2, calls, "sweep continues past the panic")
		assert.Equal(t, 1, bulk.SuccessfulMessages)
		assert.Equal(t, 1, bulk.FailedMessages)
	})

	t.Run("empty search result is a successful no-op", func(t *testing.T) {
		conn := newFakeConn()
		svc := selectedService(t, conn)

		bulk, err := svc.SearchAndProcess(context.Background(), search.All(), func(m *models.EmailMessage) error {
			t.Fatal("processor must not run")
			return nil
		}, 50)

		require.NoError(t, err)
		assert.True(t, bulk.Success)
		assert.Equal(t, 0, bulk.TotalMessages)
	})
}
