// Package chat implements the real-time chat synchronization engine: the
// channel directory, the per-channel message store, the push (WebSocket)
// and pull (polling) feeds with failover between them, and the composer
// and reaction actions.
package chat

// ChannelKind classifies a conversation scope.
type ChannelKind string

const (
	// ChannelCommunity is the single shared community channel.
	ChannelCommunity ChannelKind = "community"
	// ChannelDirect is a one-to-one conversation.
	ChannelDirect ChannelKind = "direct"
)

// UnknownUser is the sentinel counterpart name applied when every
// resolution strategy for a direct channel comes up empty.
const UnknownUser = "Unknown"

// Channel is the canonical conversation descriptor produced at the parse
// boundary. Everything downstream of the proxy responses works with this
// shape regardless of which wire format the channel arrived in.
type Channel struct {
	ID          string
	Name        string
	DisplayName string
	Kind        ChannelKind

	// OtherUser is the resolved counterpart for direct channels,
	// best-effort. UnknownUser when no strategy resolved it.
	OtherUser string

	// LastPostAt orders direct channels by recency. Zero when the
	// server omitted it, which sorts oldest.
	LastPostAt int64

	// Unread counters as reported by the channel list endpoint.
	MsgCount     int
	MentionCount int
}

// Reaction is one (emoji, user) pair attached to a message. A user holds
// at most one reaction per emoji name on a given message.
type Reaction struct {
	EmojiName string
	UserID    string
	Username  string
}

// Message is the canonical message shape held by the Store. The identifier
// is assigned by the remote system and is unique within a channel.
type Message struct {
	ID        string
	UserID    string
	Username  string
	Body      string
	CreateAt  int64
	Reactions []Reaction
}

// channelRecord is the raw wire shape of one channel entry, preserving the
// fields the directory's classification and name-resolution strategies
// inspect before the record is canonicalized into a Channel.
type channelRecord struct {
	ID           string
	Type         string
	Name         string
	DisplayName  string
	Header       string
	Members      []string
	LastPostAt   int64
	MsgCount     int
	MentionCount int
}
