package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/snapie/chat/internal/chaterr"
)

// directSeparator is the two-party token in direct channel names
// (user1__user2 or id1__id2).
const directSeparator = "__"

// Directory resolves the set of conversation channels: the one shared
// community channel plus N direct-message channels.
type Directory struct {
	client *Client
	logger *slog.Logger

	// communityTag is matched against channel names, communityTitle
	// against display names, when locating the community channel.
	communityTag   string
	communityTitle string

	// currentUser excludes the local identity from counterpart
	// resolution. Read at call time since bootstrap may happen later.
	currentUser func() string

	mu        sync.Mutex
	community *Channel
	directs   []Channel
}

// NewDirectory creates a channel directory.
func NewDirectory(client *Client, communityTag, communityTitle string, currentUser func() string, logger *slog.Logger) *Directory {
	return &Directory{
		client:         client,
		logger:         logger,
		communityTag:   communityTag,
		communityTitle: communityTitle,
		currentUser:    currentUser,
	}
}

// Community returns the community channel, or nil before a successful load.
func (d *Directory) Community() *Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.community == nil {
		return nil
	}

	ch := *d.community

	return &ch
}

// Directs returns the known direct channels, most recent activity first.
func (d *Directory) Directs() []Channel {
	d.mu.Lock()
	defer d.mu.Unlock()

	out := make([]Channel, len(d.directs))
	copy(out, d.directs)

	return out
}

// Load fetches the channel list and rebuilds the directory. A missing
// community channel is a soft error: chaterr.ErrCommunityChannelNotFound
// is returned but the direct channel list is still updated and usable.
func (d *Directory) Load(ctx context.Context) error {
	records, users, err := d.client.Channels(ctx)
	if err != nil {
		return err
	}

	self := d.currentUser()

	var (
		community *Channel
		directs   []Channel
	)

	for _, rec := range records {
		if isDirectRecord(rec) {
			directs = append(directs, Channel{
				ID:           rec.ID,
				Name:         rec.Name,
				DisplayName:  rec.DisplayName,
				Kind:         ChannelDirect,
				OtherUser:    resolveCounterpart(rec, users, self),
				LastPostAt:   rec.LastPostAt,
				MsgCount:     rec.MsgCount,
				MentionCount: rec.MentionCount,
			})

			continue
		}

		if community == nil && d.isCommunityRecord(rec) {
			community = &Channel{
				ID:           rec.ID,
				Name:         rec.Name,
				DisplayName:  rec.DisplayName,
				Kind:         ChannelCommunity,
				LastPostAt:   rec.LastPostAt,
				MsgCount:     rec.MsgCount,
				MentionCount: rec.MentionCount,
			}
		}
	}

	sort.SliceStable(directs, func(i, j int) bool {
		return directs[i].LastPostAt > directs[j].LastPostAt
	})

	d.mu.Lock()
	d.community = community
	d.directs = reconcileDirects(d.directs, directs)
	d.mu.Unlock()

	if community == nil {
		d.logger.Warn("community channel not found",
			slog.String("tag", d.communityTag),
			slog.Int("channels", len(records)),
		)

		return chaterr.ErrCommunityChannelNotFound
	}

	d.logger.Debug("channel directory loaded",
		slog.String("community", community.ID),
		slog.Int("directs", len(directs)),
	)

	return nil
}

// StartDirect requests creation or lookup of a direct channel with the
// given user and returns a provisional Channel for it. A self-conversation
// request is a no-op returning no channel. The provisional entry is
// prepended to the direct list unless already present by identifier; the
// next Load reconciles it instead of duplicating it.
func (d *Directory) StartDirect(ctx context.Context, username string) (*Channel, error) {
	self := d.currentUser()
	if username == "" || username == self {
		return nil, nil
	}

	id, err := d.client.Direct(ctx, username)
	if err != nil {
		return nil, err
	}

	ch := Channel{
		ID:          id,
		Name:        self + directSeparator + username,
		DisplayName: "DM with @" + username,
		Kind:        ChannelDirect,
		OtherUser:   username,
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.directs {
		if d.directs[i].ID == id {
			// Already known: refresh the counterpart if it was
			// unresolved, keep everything else.
			if d.directs[i].OtherUser == UnknownUser || d.directs[i].OtherUser == "" {
				d.directs[i].OtherUser = username
			}

			existing := d.directs[i]

			return &existing, nil
		}
	}

	d.directs = append([]Channel{ch}, d.directs...)

	return &ch, nil
}

// RefineCounterpart resolves a direct channel's counterpart from a post
// fetch's user map, upgrading entries whose name resolution had fallen
// through to the sentinel. Returns the resolved name, or "".
func (d *Directory) RefineCounterpart(channelID string, users map[string]string) string {
	self := d.currentUser()

	var other string

	for _, name := range users {
		if name != "" && name != self {
			other = name
			break
		}
	}

	if other == "" {
		return ""
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for i := range d.directs {
		if d.directs[i].ID == channelID {
			d.directs[i].OtherUser = other
			break
		}
	}

	return other
}

// isCommunityRecord matches the configured community tag against channel
// name and the community title against display name substrings.
func (d *Directory) isCommunityRecord(rec channelRecord) bool {
	if strings.Contains(rec.Name, d.communityTag) {
		return true
	}

	return d.communityTitle != "" && strings.Contains(rec.DisplayName, d.communityTitle)
}

// isDirectRecord classifies a channel as direct by its transport-level
// kind flag or the two-party separator in its name.
func isDirectRecord(rec channelRecord) bool {
	return rec.Type == "D" || strings.Contains(rec.Name, directSeparator)
}

// reconcileDirects merges a freshly loaded direct list with provisional
// entries created by StartDirect since the previous load. Loaded entries
// win; provisional channels the server does not report yet are kept at
// the front.
func reconcileDirects(previous, loaded []Channel) []Channel {
	seen := make(map[string]bool, len(loaded))
	for _, ch := range loaded {
		seen[ch.ID] = true
	}

	var kept []Channel

	for _, ch := range previous {
		if ch.LastPostAt == 0 && !seen[ch.ID] {
			kept = append(kept, ch)
		}
	}

	return append(kept, loaded...)
}

// A counterpartResolver tries one strategy for naming the other side of a
// direct channel. It returns "" when it has no answer; it never fails.
type counterpartResolver func(rec channelRecord, users map[string]string, self string) string

// counterpartResolvers are tried in priority order; the sentinel is only
// applied after all of them pass.
var counterpartResolvers = []counterpartResolver{
	resolveFromDisplayName,
	resolveFromHeader,
	resolveFromMembers,
	resolveFromNameParts,
}

// resolveCounterpart runs the resolver chain for a direct channel.
func resolveCounterpart(rec channelRecord, users map[string]string, self string) string {
	for _, resolve := range counterpartResolvers {
		if name := resolve(rec, users, self); name != "" {
			return name
		}
	}

	return UnknownUser
}

// usernameShaped reports whether s looks like a username rather than an
// opaque identifier: non-empty, short, and free of hyphens (opaque ids are
// long hyphenated strings).
func usernameShaped(s string) bool {
	return s != "" && len(s) < 20 && !strings.Contains(s, "-")
}

func resolveFromDisplayName(rec channelRecord, _ map[string]string, _ string) string {
	if usernameShaped(rec.DisplayName) {
		return rec.DisplayName
	}

	return ""
}

func resolveFromHeader(rec channelRecord, _ map[string]string, _ string) string {
	if usernameShaped(rec.Header) {
		return rec.Header
	}

	return ""
}

// resolveFromMembers cross-references the membership identifier list
// against the auxiliary user map, excluding the current user.
func resolveFromMembers(rec channelRecord, users map[string]string, self string) string {
	for _, id := range rec.Members {
		if name := users[id]; name != "" && name != self {
			return name
		}
	}

	return ""
}

// resolveFromNameParts parses the channel name as two separator-joined
// tokens and cross-references each against the user map.
func resolveFromNameParts(rec channelRecord, users map[string]string, self string) string {
	parts := strings.Split(rec.Name, directSeparator)
	if len(parts) != 2 {
		return ""
	}

	for _, part := range parts {
		if name := users[part]; name != "" && name != self {
			return name
		}
	}

	return ""
}
