package chat

import (
	"sync"
)

// ReadCursorStore persists per-channel read cursors so unread counts
// survive restarts. *state.Store satisfies it.
type ReadCursorStore interface {
	ReadCursor(channelID string) (int64, error)
	SetReadCursor(channelID string, lastPostAt int64) error
}

// UnreadTracker aggregates unread counters across the channel directory.
// Counts come from the channel list endpoint; marking a channel read is
// applied optimistically and rolled back if persisting the cursor fails.
type UnreadTracker struct {
	cursors ReadCursorStore

	mu     sync.RWMutex
	counts map[string]int
	last   map[string]int64
}

// NewUnreadTracker creates a tracker. cursors may be nil, in which case
// read cursors are kept in memory only.
func NewUnreadTracker(cursors ReadCursorStore) *UnreadTracker {
	return &UnreadTracker{
		cursors: cursors,
		counts:  make(map[string]int),
		last:    make(map[string]int64),
	}
}

// Update refreshes the tracked counters from a channel list snapshot.
// Channels absent from the snapshot are dropped.
func (t *UnreadTracker) Update(channels []Channel) {
	t.mu.Lock()
	defer t.mu.Unlock()

	counts := make(map[string]int, len(channels))
	last := make(map[string]int64, len(channels))

	for _, ch := range channels {
		n := ch.MsgCount + ch.MentionCount

		if t.cursors != nil {
			if cursor, err := t.cursors.ReadCursor(ch.ID); err == nil && cursor >= ch.LastPostAt && ch.LastPostAt > 0 {
				n = 0
			}
		}

		counts[ch.ID] = n
		last[ch.ID] = ch.LastPostAt
	}

	t.counts = counts
	t.last = last
}

// Count returns the unread count for one channel.
func (t *UnreadTracker) Count(channelID string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.counts[channelID]
}

// Total returns the unread count summed across all tracked channels.
func (t *UnreadTracker) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	total := 0
	for _, n := range t.counts {
		total += n
	}

	return total
}

// MarkRead zeroes a channel's unread count and persists its read cursor.
// The count is zeroed optimistically; a cursor persistence failure rolls
// it back so the indicator keeps nagging until it can stick.
func (t *UnreadTracker) MarkRead(channelID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, ok := t.counts[channelID]
	if !ok || prev == 0 {
		return nil
	}

	return applyOptimistic(prev,
		func() { t.counts[channelID] = 0 },
		func(snapshot int) { t.counts[channelID] = snapshot },
		func() error {
			if t.cursors == nil {
				return nil
			}

			return t.cursors.SetReadCursor(channelID, t.last[channelID])
		},
	)
}
