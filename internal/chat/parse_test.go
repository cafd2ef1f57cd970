package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const flatPostsResponse = `{
	"posts": [
		{"id": "p2", "user_id": "u2", "message": "second", "create_at": 200},
		{"id": "p1", "user_id": "u1", "message": "first", "create_at": 100},
		{"id": "p3", "user_id": "u1", "message": "third", "create_at": 300}
	],
	"users": {
		"u1": {"username": "alice"},
		"u2": {"username": "bob"}
	}
}`

const legacyPostsResponse = `{
	"posts": {
		"p1": {"id": "p1", "user_id": "u1", "message": "first", "create_at": 100},
		"p2": {"id": "p2", "user_id": "u2", "message": "second", "create_at": 200},
		"p3": {"id": "p3", "user_id": "u1", "message": "third", "create_at": 300}
	},
	"order": ["p3", "p2", "p1"],
	"users": {
		"u1": {"username": "alice"},
		"u2": {"username": "bob"}
	}
}`

func TestParsePostList_FlatArraySortedAscending(t *testing.T) {
	msgs, users, err := parsePostList([]byte(flatPostsResponse))
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.Equal(t, "p2", msgs[1].ID)
	assert.Equal(t, "p3", msgs[2].ID)

	assert.Equal(t, "alice", msgs[0].Username)
	assert.Equal(t, "bob", msgs[1].Username)
	assert.Equal(t, map[string]string{"u1": "alice", "u2": "bob"}, users)
}

func TestParsePostList_LegacyOrderReversedToAscending(t *testing.T) {
	msgs, _, err := parsePostList([]byte(legacyPostsResponse))
	require.NoError(t, err)

	require.Len(t, msgs, 3)
	assert.Equal(t, "p1", msgs[0].ID)
	assert.Equal(t, "p3", msgs[2].ID)
}

func TestParsePostList_ShapesAgree(t *testing.T) {
	// The same conversation in both wire shapes must canonicalize
	// identically.
	flat, _, err := parsePostList([]byte(flatPostsResponse))
	require.NoError(t, err)

	legacy, _, err := parsePostList([]byte(legacyPostsResponse))
	require.NoError(t, err)

	if diff := cmp.Diff(flat, legacy); diff != "" {
		t.Errorf("flat and legacy shapes disagree (-flat +legacy):\n%s", diff)
	}
}

func TestParsePostList_LegacyOrderSkipsMissingIDs(t *testing.T) {
	resp := `{
		"posts": {"p1": {"id": "p1", "create_at": 100}},
		"order": ["ghost", "p1"]
	}`

	msgs, _, err := parsePostList([]byte(resp))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "p1", msgs[0].ID)
}

func TestParsePostList_NeitherShapeYieldsEmpty(t *testing.T) {
	msgs, _, err := parsePostList([]byte(`{"status": "ok"}`))
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestParsePostList_InvalidJSON(t *testing.T) {
	_, _, err := parsePostList([]byte(`{broken`))
	assert.Error(t, err)
}

func TestParsePostList_AuthorFallbackChain(t *testing.T) {
	resp := `{
		"posts": [
			{"id": "p1", "user_id": "u1", "message": "mapped", "create_at": 1},
			{"id": "p2", "user_id": "u9", "username": "inline", "message": "own field", "create_at": 2},
			{"id": "p3", "user_id": "u9", "message": "nobody", "create_at": 3}
		],
		"users": {"u1": {"username": "alice"}}
	}`

	msgs, _, err := parsePostList([]byte(resp))
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "alice", msgs[0].Username)
	assert.Equal(t, "inline", msgs[1].Username)
	assert.Equal(t, UnknownUser, msgs[2].Username)
}

func TestParsePostList_ReactionsCollapseDuplicatePairs(t *testing.T) {
	resp := `{
		"posts": [
			{"id": "p1", "user_id": "u1", "create_at": 1, "metadata": {"reactions": [
				{"emoji_name": "+1", "user_id": "u1"},
				{"emoji_name": "+1", "user_id": "u1"},
				{"emoji_name": "+1", "user_id": "u2"},
				{"emoji_name": "", "user_id": "u3"}
			]}}
		],
		"users": {"u1": {"username": "alice"}, "u2": {"username": "bob"}}
	}`

	msgs, _, err := parsePostList([]byte(resp))
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	want := []Reaction{
		{EmojiName: "+1", UserID: "u1", Username: "alice"},
		{EmojiName: "+1", UserID: "u2", Username: "bob"},
	}
	assert.Equal(t, want, msgs[0].Reactions)
}

func TestParseChannelList_BareArray(t *testing.T) {
	resp := `[
		{"id": "c1", "type": "O", "name": "hive-178315", "display_name": "Snapie", "last_post_at": 50},
		{"id": "c2", "type": "D", "name": "alice__bob", "members": ["u1", "u2"], "msg_count": 3, "mention_count": 1}
	]`

	records, users, err := parseChannelList([]byte(resp))
	require.NoError(t, err)
	assert.Empty(t, users)

	require.Len(t, records, 2)
	assert.Equal(t, "hive-178315", records[0].Name)
	assert.Equal(t, int64(50), records[0].LastPostAt)
	assert.Equal(t, []string{"u1", "u2"}, records[1].Members)
	assert.Equal(t, 3, records[1].MsgCount)
	assert.Equal(t, 1, records[1].MentionCount)
}

func TestParseChannelList_WrappedWithUsers(t *testing.T) {
	resp := `{
		"channels": [{"id": "c1", "type": "O", "name": "town"}],
		"users": {"u1": {"username": "alice"}}
	}`

	records, users, err := parseChannelList([]byte(resp))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c1", records[0].ID)
	assert.Equal(t, map[string]string{"u1": "alice"}, users)
}

func TestParseChannelList_NoArrayYieldsEmpty(t *testing.T) {
	records, _, err := parseChannelList([]byte(`{"status": "ok"}`))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseChannelList_InvalidJSON(t *testing.T) {
	_, _, err := parseChannelList([]byte(`not json`))
	assert.Error(t, err)
}
