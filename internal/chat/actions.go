package chat

import (
	"context"
	"log/slog"
	"strings"

	"github.com/snapie/chat/internal/chaterr"
)

// poster is the slice of the proxy client the actions need. *Client
// satisfies it; tests inject fakes.
type poster interface {
	CreatePost(ctx context.Context, channelID, message string) error
	React(ctx context.Context, channelID, postID, emojiName string, add bool) error
}

// Actions performs the user-initiated writes: composing a message and
// toggling a reaction. Every confirmed write is followed by a refetch of
// the active channel rather than a local echo, so the store only ever
// shows server-acknowledged content.
type Actions struct {
	client  poster
	logger  *slog.Logger
	active  func() *Channel
	refetch func()
}

// NewActions wires the action layer to the proxy client and controller.
// active reports the currently selected channel; refetch requests an
// immediate out-of-band fetch of it.
func NewActions(client poster, logger *slog.Logger, active func() *Channel, refetch func()) *Actions {
	return &Actions{
		client:  client,
		logger:  logger,
		active:  active,
		refetch: refetch,
	}
}

// SendMessage posts body to the active channel. Whitespace-only bodies are
// rejected before any network traffic.
func (a *Actions) SendMessage(ctx context.Context, body string) error {
	if strings.TrimSpace(body) == "" {
		return chaterr.ErrEmptyMessage
	}

	ch := a.active()
	if ch == nil {
		return chaterr.ErrNoActiveChannel
	}

	if err := a.client.CreatePost(ctx, ch.ID, body); err != nil {
		a.logger.Warn("message send failed",
			slog.String("channel", ch.ID),
			slog.String("error", err.Error()),
		)

		return err
	}

	a.refetch()

	return nil
}

// SetReaction adds (add true) or removes a reaction on a message in the
// active channel. The emoji may arrive as a rendered character or as a
// canonical name; either way the canonical name goes on the wire.
func (a *Actions) SetReaction(ctx context.Context, postID, emoji string, add bool) error {
	ch := a.active()
	if ch == nil {
		return chaterr.ErrNoActiveChannel
	}

	name := CanonicalEmojiName(emoji)

	if err := a.client.React(ctx, ch.ID, postID, name, add); err != nil {
		a.logger.Warn("reaction update failed",
			slog.String("post", postID),
			slog.String("emoji", name),
			slog.String("error", err.Error()),
		)

		return err
	}

	a.refetch()

	return nil
}
