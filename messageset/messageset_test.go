package messageset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	imapkit_errors "github.com/velomail/imapkit/errors"
	"github.com/velomail/imapkit/internal/models"
)

func TestFromUIDs_Canonicalization(t *testing.T) {
	// Arrange
	ids := []uint32{1, 3, 2, 5, 4, 10, 11, 12}

	// Act
	set, err := FromUIDs(ids)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "1:5,10:12", set.String())
	assert.True(t, set.IsUID())
	assert.Equal(t, 8, set.EstimatedCount())
}

func TestFromUIDs_DuplicatesRemoved(t *testing.T) {
	set, err := FromUIDs([]uint32{7, 7, 7, 9})

	require.NoError(t, err)
	assert.Equal(t, "7,9", set.String())
	assert.Equal(t, 2, set.EstimatedCount())
}

func TestFromUIDs_EmptyFails(t *testing.T) {
	set, err := FromUIDs(nil)

	require.Error(t, err)
	assert.Nil(t, set)
	assert.ErrorIs(t, err, imapkit_errors.ErrEmptyMessageSet)
}

func TestFromUIDs_ZeroIDRejected(t *testing.T) {
	_, err := FromUIDs([]uint32{0, 1})

	require.Error(t, err)
	assert.True(t, imapkit_errors.IsValidationError(err))
}

func TestFromSequenceNumbers_CarriesWarning(t *testing.T) {
	set, err := FromSequenceNumbers([]uint32{4, 5, 6})

	require.NoError(t, err)
	assert.False(t, set.IsUID())
	assert.Equal(t, "4:6", set.String())
	require.Len(t, set.Warnings(), 1)
	assert.Contains(t, set.Warnings()[0], "prefer UIDs")
}

func TestFromEmailMessages_PrefersUIDs(t *testing.T) {
	msgs := []*models.EmailMessage{
		{UID: 101, SequenceNumber: 1, Mailbox: "INBOX"},
		{UID: 102, SequenceNumber: 2, Mailbox: "INBOX"},
	}

	set, err := FromEmailMessages(msgs)

	require.NoError(t, err)
	assert.True(t, set.IsUID())
	assert.Equal(t, "101:102", set.String())
	assert.Equal(t, "INBOX", set.Mailbox())
}

func TestFromEmailMessages_FallsBackToSequenceNumbers(t *testing.T) {
	msgs := []*models.EmailMessage{
		{UID: 101, SequenceNumber: 1, Mailbox: "INBOX"},
		{UID: 0, SequenceNumber: 2, Mailbox: "INBOX"},
	}

	set, err := FromEmailMessages(msgs)

	require.NoError(t, err)
	assert.False(t, set.IsUID())
	assert.Equal(t, "1:2", set.String())
	assert.NotEmpty(t, set.Warnings())
}

func TestFromEmailMessages_MixedMailboxesDropTag(t *testing.T) {
	msgs := []*models.EmailMessage{
		{UID: 1, Mailbox: "INBOX"},
		{UID: 2, Mailbox: "Archive"},
	}

	set, err := FromEmailMessages(msgs)

	require.NoError(t, err)
	assert.Empty(t, set.Mailbox())
}

func TestFromRange(t *testing.T) {
	t.Run("closed range", func(t *testing.T) {
		set, err := FromRange(10, 20, true)
		require.NoError(t, err)
		assert.Equal(t, "10:20", set.String())
		assert.Equal(t, 11, set.EstimatedCount())
	})

	t.Run("open range", func(t *testing.T) {
		set, err := FromRange(50, 0, true)
		require.NoError(t, err)
		assert.Equal(t, "50:*", set.String())
		assert.True(t, set.HasOpenRange())
		assert.Equal(t, 1, set.EstimatedCount())
	})

	t.Run("degenerate range is a bare id", func(t *testing.T) {
		set, err := FromRange(7, 7, false)
		require.NoError(t, err)
		assert.Equal(t, "7", set.String())
	})

	t.Run("backwards range rejected", func(t *testing.T) {
		_, err := FromRange(20, 10, true)
		require.Error(t, err)
		assert.True(t, imapkit_errors.IsValidationError(err))
	})

	t.Run("zero start rejected", func(t *testing.T) {
		_, err := FromRange(0, 10, true)
		require.Error(t, err)
	})
}

func TestParse(t *testing.T) {
	t.Run("mixed components kept as written", func(t *testing.T) {
		set, err := Parse("1:5,8,11:*", true)
		require.NoError(t, err)
		assert.Equal(t, "1:5,8,11:*", set.String())
		assert.True(t, set.HasRanges())
		assert.True(t, set.HasOpenRange())
	})

	t.Run("empty spec rejected", func(t *testing.T) {
		_, err := Parse("  ", true)
		assert.ErrorIs(t, err, imapkit_errors.ErrEmptyMessageSet)
	})

	t.Run("garbage component rejected", func(t *testing.T) {
		_, err := Parse("1,abc,3", true)
		require.Error(t, err)
		assert.True(t, imapkit_errors.IsValidationError(err))
	})

	t.Run("backwards range rejected", func(t *testing.T) {
		_, err := Parse("9:3", false)
		require.Error(t, err)
	})
}

func TestContains(t *testing.T) {
	set, err := Parse("1:5,8,20:*", true)
	require.NoError(t, err)

	assert.True(t, set.Contains(3))
	assert.True(t, set.Contains(8))
	assert.True(t, set.Contains(20))
	assert.True(t, set.Contains(4_000_000))
	assert.False(t, set.Contains(6))
	assert.False(t, set.Contains(19))
}

func TestLastID(t *testing.T) {
	t.Run("concrete set", func(t *testing.T) {
		set, err := Parse("1:5,9", true)
		require.NoError(t, err)

		last, ok := set.LastID()
		assert.True(t, ok)
		assert.Equal(t, uint32(9), last)
	})

	t.Run("open range has no last id", func(t *testing.T) {
		set := AllMessages(true)

		_, ok := set.LastID()
		assert.False(t, ok)
	})
}

func TestWithMailbox_DoesNotMutateOriginal(t *testing.T) {
	set, err := FromUIDs([]uint32{1, 2})
	require.NoError(t, err)

	tagged := set.WithMailbox("Archive")

	assert.Equal(t, "Archive", tagged.Mailbox())
	assert.Empty(t, set.Mailbox())
	assert.Equal(t, set.String(), tagged.String())
}

func TestToSeqSet(t *testing.T) {
	set, err := Parse("1:3,7", true)
	require.NoError(t, err)

	seqSet := set.ToSeqSet()

	assert.True(t, seqSet.Contains(2))
	assert.True(t, seqSet.Contains(7))
	assert.False(t, seqSet.Contains(5))
}

func TestBatches(t *testing.T) {
	t.Run("ids split into bounded batches", func(t *testing.T) {
		set, err := FromUIDs([]uint32{1, 2, 3, 4, 5, 6, 7})
		require.NoError(t, err)

		batches, err := set.Batches(3)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, "1:3", batches[0].String())
		assert.Equal(t, "4:6", batches[1].String())
		assert.Equal(t, "7", batches[2].String())
	})

	t.Run("closed range expanded and split", func(t *testing.T) {
		set, err := FromRange(1, 100, true)
		require.NoError(t, err)

		batches, err := set.Batches(40)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, "1:40", batches[0].String())
		assert.Equal(t, "41:80", batches[1].String())
		assert.Equal(t, "81:100", batches[2].String())
	})

	t.Run("open range passes through as one batch", func(t *testing.T) {
		set, err := Parse("1:3,50:*", true)
		require.NoError(t, err)

		batches, err := set.Batches(10)
		require.NoError(t, err)
		require.Len(t, batches, 2)
		assert.Equal(t, "1:3", batches[0].String())
		assert.Equal(t, "50:*", batches[1].String())
		assert.NotEmpty(t, batches[1].Warnings())
	})

	t.Run("non-positive batch size rejected", func(t *testing.T) {
		set, err := FromUIDs([]uint32{1})
		require.NoError(t, err)

		_, err = set.Batches(0)
		require.Error(t, err)
	})
}

func TestSplitBySize(t *testing.T) {
	t.Run("closed ranges split like Batches", func(t *testing.T) {
		set, err := Parse("1:10", true)
		require.NoError(t, err)

		batches, err := set.SplitBySize(4)
		require.NoError(t, err)
		require.Len(t, batches, 3)
		assert.Equal(t, "1:4", batches[0].String())
		assert.Equal(t, "9:10", batches[2].String())
	})

	t.Run("open range refused", func(t *testing.T) {
		set, err := Parse("1:*", true)
		require.NoError(t, err)

		_, err = set.SplitBySize(2)

		require.Error(t, err)
		assert.True(t, imapkit_errors.IsValidationError(err))
	})
}
