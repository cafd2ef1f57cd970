package chat

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

// inboundChanSize is the buffer size for the channel carrying frames from
// the WebSocket reader goroutine to the controller event loop.
const inboundChanSize = 64

// wsConn abstracts the WebSocket connection so the controller can be
// tested without a real server. *websocket.Conn satisfies this interface.
//
//go:generate mockgen -source=push.go -destination=mock_conn_test.go -package=chat -mock_names=wsConn=MockWSConn
type wsConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Close(code websocket.StatusCode, reason string) error
}

// dialFunc establishes a live connection to the event stream. Injected
// into the controller so tests can script connections.
type dialFunc func(ctx context.Context) (wsConn, error)

// newDialer returns the production dialer for the given socket URL. The
// HTTP client carries the session cookie jar, so the upgrade request
// presents the same credentials as the REST calls.
func newDialer(socketURL string, httpClient *http.Client) dialFunc {
	return func(ctx context.Context) (wsConn, error) {
		conn, _, err := websocket.Dial(ctx, socketURL, &websocket.DialOptions{ //nolint:bodyclose // websocket.Dial closes the response body internally
			HTTPClient: httpClient,
		})
		if err != nil {
			return nil, err
		}

		return conn, nil
	}
}

// inboundMsg wraps a frame read from the WebSocket by the reader
// goroutine, tagged with the connection generation so the event loop can
// drop frames from superseded connections.
type inboundMsg struct {
	gen  uint64
	data []byte
	err  error
}

// Event kinds delivered on the live transport.
const (
	eventHello           = "hello"
	eventPosted          = "posted"
	eventPostEdited      = "post_edited"
	eventPostDeleted     = "post_deleted"
	eventReactionAdded   = "reaction_added"
	eventReactionRemoved = "reaction_removed"
	eventTyping          = "typing"
)

// pushEvent is a decoded live-transport event. Only the fields relevant to
// the event kind are populated.
type pushEvent struct {
	kind      string
	channelID string
	post      Message
	postID    string
	reaction  Reaction
}

// decodeEvent parses one event envelope {"event": kind, "data": payload}.
// Post events embed the post object as a JSON-encoded string that is
// parsed in a second step. Returns ok=false for envelopes that are
// malformed or carry an unusable payload; such events are logged by the
// caller and discarded, never treated as a transport failure.
func decodeEvent(data []byte) (pushEvent, bool) {
	if !gjson.ValidBytes(data) {
		return pushEvent{}, false
	}

	root := gjson.ParseBytes(data)

	ev := pushEvent{kind: root.Get("event").Str}
	if ev.kind == "" {
		return pushEvent{}, false
	}

	switch ev.kind {
	case eventPosted, eventPostEdited, eventPostDeleted:
		post := embeddedJSON(root.Get("data.post"))
		if !post.Exists() {
			return pushEvent{}, false
		}

		// The envelope's own sender_name beats an absent username.
		users := map[string]string{}
		if sender := strings.TrimPrefix(root.Get("data.sender_name").Str, "@"); sender != "" {
			users[post.Get("user_id").Str] = sender
		}

		ev.post = messageFromPost(post, users)
		ev.postID = ev.post.ID
		ev.channelID = post.Get("channel_id").Str

		if ev.postID == "" {
			return pushEvent{}, false
		}

	case eventReactionAdded, eventReactionRemoved:
		reaction := embeddedJSON(root.Get("data.reaction"))
		if !reaction.Exists() {
			return pushEvent{}, false
		}

		ev.postID = reaction.Get("post_id").Str
		ev.reaction = Reaction{
			EmojiName: reaction.Get("emoji_name").Str,
			UserID:    reaction.Get("user_id").Str,
		}

		if ev.postID == "" || ev.reaction.EmojiName == "" {
			return pushEvent{}, false
		}
	}

	return ev, true
}

// embeddedJSON unwraps a payload field that may arrive either as a nested
// object or as a JSON document encoded into a string field.
func embeddedJSON(field gjson.Result) gjson.Result {
	if field.Type == gjson.String {
		return gjson.Parse(field.Str)
	}

	return field
}

// startDial kicks off an async connection attempt for the current
// generation. The result lands on dialCh; results for superseded
// generations are closed and dropped.
func (c *Controller) startDial(ctx context.Context) {
	if c.cfg.Dial == nil {
		// No push transport configured; go straight to polling.
		c.logger.Info("no push transport configured, polling only")
		c.enterPolling(ctx)

		return
	}

	gen := c.gen
	dial := c.cfg.Dial

	go func() {
		conn, err := dial(ctx)

		select {
		case c.dialCh <- dialResult{gen: gen, conn: conn, err: err}:
		case <-ctx.Done():
			if conn != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "bye")
			}
		}
	}()
}

// handleDialResult installs a freshly dialed connection, unless it belongs
// to a superseded generation (the channel switched or the feed was torn
// down mid-handshake), in which case the connection is closed and the
// result ignored.
func (c *Controller) handleDialResult(ctx context.Context, res dialResult) {
	if res.gen != c.gen || c.state != StateConnecting {
		if res.conn != nil {
			_ = res.conn.Close(websocket.StatusNormalClosure, "superseded")
		}

		return
	}

	if res.err != nil {
		c.onConnLost(ctx, res.err)
		return
	}

	c.conn = res.conn

	readerCtx, cancel := context.WithCancel(ctx)
	c.connCancel = cancel
	c.startReader(readerCtx, res.conn, c.gen)

	// Still Connecting: Live is entered on the application-level hello
	// event, not on socket open.
	c.logger.Debug("socket open, awaiting hello")
}

// startReader launches the goroutine that reads frames from the connection
// and feeds inboundCh. The generation is captured by value so a reader
// from a superseded connection can never inject frames into the current
// one. Exits on read error (delivered as the final message) or cancel.
func (c *Controller) startReader(readerCtx context.Context, conn wsConn, gen uint64) {
	go func() {
		for {
			_, data, err := conn.Read(readerCtx)

			select {
			case c.inboundCh <- inboundMsg{gen: gen, data: data, err: err}:
			case <-readerCtx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()
}

// handleInbound processes one frame from the reader goroutine: decode the
// event envelope and apply it to the store. Malformed or unrecognized
// events are logged and discarded; they never tear down the connection.
func (c *Controller) handleInbound(ctx context.Context, msg inboundMsg) {
	if msg.gen != c.gen {
		return
	}

	if msg.err != nil {
		c.onConnLost(ctx, msg.err)
		return
	}

	if !c.cfg.SessionValid() {
		c.stopFeeds()
		c.setState(StateIdle)

		return
	}

	ev, ok := decodeEvent(msg.data)
	if !ok {
		c.logger.Debug("discarding malformed event", slog.Int("bytes", len(msg.data)))
		return
	}

	switch ev.kind {
	case eventHello:
		c.attempt = 0
		c.setState(StateLive)
		c.logger.Info("live connection established")

	case eventPosted:
		if c.active == nil || ev.channelID != c.active.ID {
			c.logger.Debug("discarding post for inactive channel",
				slog.String("channel", ev.channelID),
			)

			return
		}

		if c.cfg.Store.Apply(ev.post) {
			c.notifyChange()
		}

	case eventPostEdited:
		if c.active == nil || (ev.channelID != "" && ev.channelID != c.active.ID) {
			return
		}

		if c.cfg.Store.EditBody(ev.postID, ev.post.Body) {
			c.notifyChange()
		}

	case eventPostDeleted:
		if c.active == nil || (ev.channelID != "" && ev.channelID != c.active.ID) {
			return
		}

		if c.cfg.Store.Remove(ev.postID) {
			c.notifyChange()
		}

	case eventReactionAdded:
		// Reaction payloads carry no channel id; the post lookup
		// makes this a no-op for messages outside the active channel.
		if c.cfg.Store.AddReaction(ev.postID, ev.reaction) {
			c.notifyChange()
		}

	case eventReactionRemoved:
		if c.cfg.Store.RemoveReaction(ev.postID, ev.reaction.EmojiName, ev.reaction.UserID) {
			c.notifyChange()
		}

	case eventTyping:
		// Presence noise; nothing to apply.

	default:
		c.logger.Debug("ignoring unrecognized event", slog.String("event", ev.kind))
	}
}
