package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(id string, at int64) Message {
	return Message{ID: id, UserID: "u-" + id, Username: "user", Body: "body " + id, CreateAt: at}
}

func storeIDs(s *Store) []string {
	msgs := s.Messages()

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}

	return ids
}

func TestStore_ApplyOrdersByCreateAt(t *testing.T) {
	s := NewStore()

	// Arrival order 3, 1, 2 must render as 1, 2, 3.
	assert.True(t, s.Apply(msg("m3", 300)))
	assert.True(t, s.Apply(msg("m1", 100)))
	assert.True(t, s.Apply(msg("m2", 200)))

	assert.Equal(t, []string{"m1", "m2", "m3"}, storeIDs(s))
}

func TestStore_ApplyTiesKeepArrivalOrder(t *testing.T) {
	s := NewStore()

	s.Apply(msg("a", 100))
	s.Apply(msg("b", 100))
	s.Apply(msg("c", 100))

	assert.Equal(t, []string{"a", "b", "c"}, storeIDs(s))
}

func TestStore_ApplyDuplicateIsNoOp(t *testing.T) {
	s := NewStore()

	m := msg("m1", 100)
	assert.True(t, s.Apply(m))
	assert.False(t, s.Apply(m), "applying the identical message twice must report no change")
	assert.Equal(t, 1, s.Len())
}

func TestStore_ApplyUpdatesInPlace(t *testing.T) {
	s := NewStore()

	s.Apply(msg("m1", 100))
	s.Apply(msg("m2", 200))

	updated := msg("m1", 100)
	updated.Body = "edited"

	assert.True(t, s.Apply(updated))
	assert.Equal(t, []string{"m1", "m2"}, storeIDs(s))
	assert.Equal(t, "edited", s.Messages()[0].Body)
}

func TestStore_ApplyEmptyIDRejected(t *testing.T) {
	s := NewStore()

	assert.False(t, s.Apply(Message{Body: "no id"}))
	assert.Equal(t, 0, s.Len())
}

func TestStore_EditBody(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))

	assert.True(t, s.EditBody("m1", "new body"))
	assert.Equal(t, "new body", s.Messages()[0].Body)

	assert.False(t, s.EditBody("m1", "new body"), "same body is a no-op")
	assert.False(t, s.EditBody("missing", "x"), "unknown id is a no-op")
}

func TestStore_Remove(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))
	s.Apply(msg("m2", 200))
	s.Apply(msg("m3", 300))

	assert.True(t, s.Remove("m2"))
	assert.Equal(t, []string{"m1", "m3"}, storeIDs(s))

	// Index must stay consistent after the shift.
	assert.True(t, s.EditBody("m3", "still reachable"))

	assert.False(t, s.Remove("m2"), "removing twice is a no-op")
}

func TestStore_AddReactionDeduplicatesPair(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))

	r := Reaction{EmojiName: "+1", UserID: "u1", Username: "alice"}

	assert.True(t, s.AddReaction("m1", r))
	assert.False(t, s.AddReaction("m1", r), "same (emoji, user) pair must not duplicate")
	assert.Len(t, s.Messages()[0].Reactions, 1)

	// A different user with the same emoji is a distinct pair.
	assert.True(t, s.AddReaction("m1", Reaction{EmojiName: "+1", UserID: "u2"}))
	assert.Len(t, s.Messages()[0].Reactions, 2)

	assert.False(t, s.AddReaction("missing", r))
}

func TestStore_RemoveReaction(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))
	s.AddReaction("m1", Reaction{EmojiName: "+1", UserID: "u1"})
	s.AddReaction("m1", Reaction{EmojiName: "heart", UserID: "u1"})

	assert.True(t, s.RemoveReaction("m1", "+1", "u1"))
	assert.Equal(t, []Reaction{{EmojiName: "heart", UserID: "u1"}}, s.Messages()[0].Reactions)

	assert.False(t, s.RemoveReaction("m1", "+1", "u1"), "pair already gone")
	assert.False(t, s.RemoveReaction("missing", "+1", "u1"))
}

func TestStore_ReplaceAll(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))

	fetched := []Message{msg("m1", 100), msg("m2", 200)}

	assert.True(t, s.ReplaceAll(fetched))
	assert.Equal(t, []string{"m1", "m2"}, storeIDs(s))

	// Same size, same last ID: treated as unchanged.
	assert.False(t, s.ReplaceAll(fetched))

	// Same size, different last ID: changed.
	assert.True(t, s.ReplaceAll([]Message{msg("m1", 100), msg("m9", 900)}))
	assert.Equal(t, []string{"m1", "m9"}, storeIDs(s))
}

func TestStore_ReplaceAllEmptyOnEmpty(t *testing.T) {
	s := NewStore()

	assert.False(t, s.ReplaceAll(nil))
	assert.False(t, s.ReplaceAll([]Message{}))
}

func TestStore_ReplaceAllDoesNotAliasInput(t *testing.T) {
	s := NewStore()

	fetched := []Message{msg("m1", 100)}
	require.True(t, s.ReplaceAll(fetched))

	fetched[0].Body = "mutated by caller"

	assert.Equal(t, "body m1", s.Messages()[0].Body)
}

func TestStore_Reset(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))

	s.Reset()

	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Apply(msg("m1", 100)), "ids are reusable after reset")
}

func TestStore_MessagesReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Apply(msg("m1", 100))

	got := s.Messages()
	got[0].Body = "mutated"

	if diff := cmp.Diff("body m1", s.Messages()[0].Body); diff != "" {
		t.Errorf("store contents changed through returned slice (-want +got):\n%s", diff)
	}
}
