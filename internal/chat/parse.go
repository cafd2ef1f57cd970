package chat

import (
	"fmt"
	"sort"

	"github.com/tidwall/gjson"
)

// The proxy forwards responses in whichever shape the upstream produced,
// so every list endpoint is parsed through a discriminator that detects
// the shape once and emits the canonical types. Downstream code never
// sees the wire format.

// parsePostList decodes a message-list response. Two shapes exist:
//
//   - {"posts": [...], "users": {...}}: a flat array, sorted ascending by
//     creation time after parse.
//   - {"posts": {"<id>": {...}}, "order": ["<id>", ...]}: the legacy
//     dictionary-plus-order shape; order lists newest first, so it is
//     consumed in the given order and reversed to ascending.
//
// Absence of both shapes yields an empty list, not an error.
func parsePostList(data []byte) ([]Message, map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("post list response is not valid JSON")
	}

	root := gjson.ParseBytes(data)
	users := parseUserMap(root.Get("users"))
	posts := root.Get("posts")

	switch {
	case posts.IsArray():
		var msgs []Message

		posts.ForEach(func(_, post gjson.Result) bool {
			msgs = append(msgs, messageFromPost(post, users))
			return true
		})

		sort.SliceStable(msgs, func(i, j int) bool {
			return msgs[i].CreateAt < msgs[j].CreateAt
		})

		return msgs, users, nil

	case posts.IsObject() && root.Get("order").IsArray():
		var msgs []Message

		root.Get("order").ForEach(func(_, id gjson.Result) bool {
			post := posts.Get(id.Str)
			if !post.Exists() {
				return true
			}

			msgs = append(msgs, messageFromPost(post, users))

			return true
		})

		for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
			msgs[i], msgs[j] = msgs[j], msgs[i]
		}

		return msgs, users, nil

	default:
		return nil, users, nil
	}
}

// messageFromPost canonicalizes a single post object. The author name is
// resolved from the response's users map first, then the post's own
// username field, then the sentinel.
func messageFromPost(post gjson.Result, users map[string]string) Message {
	userID := post.Get("user_id").Str

	username := users[userID]
	if username == "" {
		username = post.Get("username").Str
	}

	if username == "" {
		username = UnknownUser
	}

	return Message{
		ID:        post.Get("id").Str,
		UserID:    userID,
		Username:  username,
		Body:      post.Get("message").Str,
		CreateAt:  post.Get("create_at").Int(),
		Reactions: reactionsFromPost(post, users),
	}
}

// reactionsFromPost extracts metadata.reactions, collapsing duplicate
// (emoji, user) pairs so the store's uniqueness invariant holds even for
// responses that repeat them.
func reactionsFromPost(post gjson.Result, users map[string]string) []Reaction {
	raw := post.Get("metadata.reactions")
	if !raw.IsArray() {
		return nil
	}

	type pair struct{ emoji, user string }

	seen := make(map[pair]bool)

	var reactions []Reaction

	raw.ForEach(func(_, r gjson.Result) bool {
		emoji := r.Get("emoji_name").Str
		userID := r.Get("user_id").Str

		if emoji == "" || seen[pair{emoji, userID}] {
			return true
		}

		seen[pair{emoji, userID}] = true

		username := r.Get("username").Str
		if username == "" {
			username = users[userID]
		}

		reactions = append(reactions, Reaction{
			EmojiName: emoji,
			UserID:    userID,
			Username:  username,
		})

		return true
	})

	return reactions
}

// parseChannelList decodes a channel-list response, which is either a bare
// array or an object wrapping the array under "channels" alongside an
// auxiliary user map.
func parseChannelList(data []byte) ([]channelRecord, map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, fmt.Errorf("channel list response is not valid JSON")
	}

	root := gjson.ParseBytes(data)

	channels := root
	if !root.IsArray() {
		channels = root.Get("channels")
	}

	if !channels.IsArray() {
		return nil, parseUserMap(root.Get("users")), nil
	}

	var records []channelRecord

	channels.ForEach(func(_, ch gjson.Result) bool {
		rec := channelRecord{
			ID:           ch.Get("id").Str,
			Type:         ch.Get("type").Str,
			Name:         ch.Get("name").Str,
			DisplayName:  ch.Get("display_name").Str,
			Header:       ch.Get("header").Str,
			LastPostAt:   ch.Get("last_post_at").Int(),
			MsgCount:     int(ch.Get("msg_count").Int()),
			MentionCount: int(ch.Get("mention_count").Int()),
		}

		ch.Get("members").ForEach(func(_, m gjson.Result) bool {
			rec.Members = append(rec.Members, m.Str)
			return true
		})

		records = append(records, rec)

		return true
	})

	return records, parseUserMap(root.Get("users")), nil
}

// parseUserMap flattens the auxiliary {"<id>": {"username": ...}} map.
func parseUserMap(users gjson.Result) map[string]string {
	m := make(map[string]string)

	if !users.IsObject() {
		return m
	}

	users.ForEach(func(id, u gjson.Result) bool {
		if name := u.Get("username").Str; name != "" {
			m[id.Str] = name
		}

		return true
	})

	return m
}
