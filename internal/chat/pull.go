package chat

import (
	"context"
	"log/slog"
	"time"
)

// startFetch issues an async authoritative fetch of the active channel's
// messages. Results are tagged with the channel session counter, so a
// response that lands after the channel changed is dropped on arrival.
func (c *Controller) startFetch(ctx context.Context) {
	if c.active == nil || c.cfg.Fetcher == nil {
		return
	}

	if !c.cfg.SessionValid() {
		return
	}

	session := c.session
	channelID := c.active.ID
	fetcher := c.cfg.Fetcher

	go func() {
		msgs, users, err := fetcher.Posts(ctx, channelID)

		select {
		case c.fetchCh <- fetchResult{
			session:   session,
			channelID: channelID,
			msgs:      msgs,
			users:     users,
			err:       err,
		}:
		case <-ctx.Done():
		}
	}()
}

// handleFetchResult replaces the store's contents with the authoritative
// list, unless the result belongs to a superseded channel session. A fetch
// for a direct channel also feeds its user map back into the directory to
// firm up a counterpart name that resolution had left at the sentinel.
func (c *Controller) handleFetchResult(res fetchResult) {
	if res.session != c.session || c.active == nil || res.channelID != c.active.ID {
		return
	}

	if res.err != nil {
		// The next poll tick or user action retries; the store keeps
		// showing what it has.
		c.logger.Warn("message fetch failed",
			slog.String("channel", res.channelID),
			slog.String("error", res.err.Error()),
		)

		return
	}

	if c.active.Kind == ChannelDirect && c.cfg.Directory != nil {
		if other := c.cfg.Directory.RefineCounterpart(res.channelID, res.users); other != "" && other != c.active.OtherUser {
			c.active.OtherUser = other
			c.pub.setChannel(c.active)
		}
	}

	if c.cfg.Store.ReplaceAll(res.msgs) {
		c.notifyChange()
	}
}

// enterPolling degrades the session to the pull feed: the reconnect timer
// is cancelled, the poll ticker starts, and an immediate fetch covers the
// gap until the first tick.
func (c *Controller) enterPolling(ctx context.Context) {
	if c.backoffTimer != nil {
		c.backoffTimer.Stop()
		c.backoffTimer = nil
	}

	c.pollTicks = 0

	if c.pollTicker == nil {
		c.pollTicker = time.NewTicker(c.cfg.PollInterval)
	}

	c.setState(StatePolling)
	c.startFetch(ctx)
}

func (c *Controller) stopPolling() {
	if c.pollTicker != nil {
		c.pollTicker.Stop()
		c.pollTicker = nil
	}

	c.pollTicks = 0
}

// handlePollTick runs one pull-feed cycle. Ticks are skipped while the
// host surface is hidden; the ticker keeps running so cadence resumes
// without drift when visibility returns.
func (c *Controller) handlePollTick(ctx context.Context) {
	if c.state != StatePolling {
		return
	}

	if !c.cfg.SessionValid() {
		c.stopFeeds()
		c.setState(StateIdle)

		return
	}

	c.pollTicks++

	if c.cfg.RepromotePush && c.pollTicks >= c.cfg.RepromoteAfter {
		c.logger.Info("retrying push transport after sustained polling",
			slog.Int("ticks", c.pollTicks),
		)

		c.stopPolling()
		c.attempt = 0
		c.setState(StateConnecting)
		c.startDial(ctx)

		return
	}

	if !c.cfg.Visible() {
		return
	}

	c.startFetch(ctx)
}
