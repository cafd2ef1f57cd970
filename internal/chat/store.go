package chat

import "sync"

// Store is the ordered, deduplicated message collection for the currently
// active channel. It is the single mutation target for the push feed, the
// pull feed, and the post-action re-fetch; the controller serializes those
// writers, and the mutex only covers concurrent reads from the UI side.
//
// Invariants: message identifiers are unique; visible order is ascending
// by creation timestamp with ties broken by arrival order.
type Store struct {
	mu       sync.RWMutex
	messages []Message
	index    map[string]int
}

// NewStore creates an empty message store.
func NewStore() *Store {
	return &Store{index: make(map[string]int)}
}

// Messages returns a copy of the current ordered message list.
func (s *Store) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)

	return out
}

// Len returns the number of messages held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.messages)
}

// Apply inserts a message or, when the identifier is already present,
// updates that entry in place. It never produces a duplicate, so applying
// the same event twice is a no-op the second time. Reports whether the
// store changed.
func (s *Store) Apply(msg Message) bool {
	if msg.ID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if i, ok := s.index[msg.ID]; ok {
		if equalMessage(s.messages[i], msg) {
			return false
		}

		// Update in place: position is kept stable even if the
		// timestamp moved, matching arrival-order tie-breaking.
		s.messages[i] = msg

		return true
	}

	// Insert after every existing message with an equal or smaller
	// timestamp so ties preserve arrival order.
	pos := len(s.messages)
	for pos > 0 && s.messages[pos-1].CreateAt > msg.CreateAt {
		pos--
	}

	s.messages = append(s.messages, Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = msg

	s.reindexLocked(pos)

	return true
}

// EditBody replaces the body of the identified message in place. Editing a
// message that has not been loaded is a no-op.
func (s *Store) EditBody(id, body string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok || s.messages[i].Body == body {
		return false
	}

	s.messages[i].Body = body

	return true
}

// Remove deletes the identified message. Unknown identifiers are a no-op.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}

	s.messages = append(s.messages[:i], s.messages[i+1:]...)
	delete(s.index, id)
	s.reindexLocked(i)

	return true
}

// AddReaction appends a reaction to the identified message unless the
// (emoji, user) pair is already present. No-op for unknown messages.
func (s *Store) AddReaction(id string, r Reaction) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}

	for _, existing := range s.messages[i].Reactions {
		if existing.EmojiName == r.EmojiName && existing.UserID == r.UserID {
			return false
		}
	}

	s.messages[i].Reactions = append(s.messages[i].Reactions, r)

	return true
}

// RemoveReaction removes every reaction on the identified message that
// matches the (emoji, user) pair. No-op for unknown messages or pairs.
func (s *Store) RemoveReaction(id, emojiName, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}

	kept := s.messages[i].Reactions[:0]

	removed := false

	for _, r := range s.messages[i].Reactions {
		if r.EmojiName == emojiName && r.UserID == userID {
			removed = true
			continue
		}

		kept = append(kept, r)
	}

	s.messages[i].Reactions = kept

	return removed
}

// ReplaceAll swaps the store's contents for a freshly fetched authoritative
// list, but only when the fetched set differs from the current one
// (compared by size and last-element identifier). Reports whether the
// contents changed, so a no-op poll never triggers a re-render.
func (s *Store) ReplaceAll(msgs []Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(msgs) == len(s.messages) {
		if len(msgs) == 0 {
			return false
		}

		if msgs[len(msgs)-1].ID == s.messages[len(s.messages)-1].ID {
			return false
		}
	}

	s.messages = make([]Message, len(msgs))
	copy(s.messages, msgs)

	s.index = make(map[string]int, len(msgs))
	s.reindexLocked(0)

	return true
}

// Reset clears the store. Used when the active channel changes or the
// session is invalidated; closing the chat surface deliberately does NOT
// reset, so messages display instantly on reopen.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = nil
	s.index = make(map[string]int)
}

// reindexLocked rebuilds index entries from position i onward.
func (s *Store) reindexLocked(i int) {
	for ; i < len(s.messages); i++ {
		s.index[s.messages[i].ID] = i
	}
}

func equalMessage(a, b Message) bool {
	if a.ID != b.ID || a.UserID != b.UserID || a.Username != b.Username ||
		a.Body != b.Body || a.CreateAt != b.CreateAt ||
		len(a.Reactions) != len(b.Reactions) {
		return false
	}

	for i := range a.Reactions {
		if a.Reactions[i] != b.Reactions[i] {
			return false
		}
	}

	return true
}
