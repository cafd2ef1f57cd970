package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memCursors is an in-memory ReadCursorStore; failErr makes writes fail.
type memCursors struct {
	cursors map[string]int64
	failErr error
}

func newMemCursors() *memCursors {
	return &memCursors{cursors: make(map[string]int64)}
}

func (m *memCursors) ReadCursor(channelID string) (int64, error) {
	return m.cursors[channelID], nil
}

func (m *memCursors) SetReadCursor(channelID string, lastPostAt int64) error {
	if m.failErr != nil {
		return m.failErr
	}

	m.cursors[channelID] = lastPostAt

	return nil
}

func unreadChannels() []Channel {
	return []Channel{
		{ID: "c-comm", Kind: ChannelCommunity, MsgCount: 2, MentionCount: 1, LastPostAt: 100},
		{ID: "dm-1", Kind: ChannelDirect, MsgCount: 3, LastPostAt: 200},
		{ID: "dm-2", Kind: ChannelDirect, LastPostAt: 300},
	}
}

func TestUnreadTracker_CountsSumMessagesAndMentions(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.Update(unreadChannels())

	assert.Equal(t, 3, tr.Count("c-comm"))
	assert.Equal(t, 3, tr.Count("dm-1"))
	assert.Equal(t, 0, tr.Count("dm-2"))
	assert.Equal(t, 6, tr.Total())
}

func TestUnreadTracker_UpdateDropsVanishedChannels(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.Update(unreadChannels())

	tr.Update([]Channel{{ID: "dm-1", MsgCount: 1}})

	assert.Equal(t, 0, tr.Count("c-comm"))
	assert.Equal(t, 1, tr.Total())
}

func TestUnreadTracker_PersistedCursorZeroesCount(t *testing.T) {
	cursors := newMemCursors()
	cursors.cursors["dm-1"] = 200 // already read up to the latest post

	tr := NewUnreadTracker(cursors)
	tr.Update(unreadChannels())

	assert.Equal(t, 0, tr.Count("dm-1"))
	assert.Equal(t, 3, tr.Count("c-comm"), "stale cursor does not mask other channels")
}

func TestUnreadTracker_StaleCursorKeepsCount(t *testing.T) {
	cursors := newMemCursors()
	cursors.cursors["dm-1"] = 150 // read cursor behind the latest post

	tr := NewUnreadTracker(cursors)
	tr.Update(unreadChannels())

	assert.Equal(t, 3, tr.Count("dm-1"))
}

func TestUnreadTracker_MarkReadPersistsCursor(t *testing.T) {
	cursors := newMemCursors()

	tr := NewUnreadTracker(cursors)
	tr.Update(unreadChannels())

	require.NoError(t, tr.MarkRead("dm-1"))

	assert.Equal(t, 0, tr.Count("dm-1"))
	assert.Equal(t, int64(200), cursors.cursors["dm-1"])
}

func TestUnreadTracker_MarkReadRollsBackOnPersistFailure(t *testing.T) {
	cursors := newMemCursors()
	cursors.failErr = errors.New("disk full")

	tr := NewUnreadTracker(cursors)
	tr.Update(unreadChannels())

	err := tr.MarkRead("dm-1")
	require.Error(t, err)

	assert.Equal(t, 3, tr.Count("dm-1"), "count must keep nagging until the cursor sticks")
}

func TestUnreadTracker_MarkReadNoOpWhenAlreadyZero(t *testing.T) {
	cursors := newMemCursors()

	tr := NewUnreadTracker(cursors)
	tr.Update(unreadChannels())

	require.NoError(t, tr.MarkRead("dm-2"))
	require.NoError(t, tr.MarkRead("unknown"))

	assert.Empty(t, cursors.cursors, "no cursor write for channels with nothing unread")
}

func TestUnreadTracker_NilCursorStore(t *testing.T) {
	tr := NewUnreadTracker(nil)
	tr.Update(unreadChannels())

	require.NoError(t, tr.MarkRead("dm-1"))
	assert.Equal(t, 0, tr.Count("dm-1"))
}
