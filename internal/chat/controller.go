package chat

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// State of a channel's synchronization.
type State int

const (
	// StateIdle: no channel selected, no feed active.
	StateIdle State = iota
	// StateConnecting: push feed attempting to establish a connection.
	StateConnecting
	// StateLive: push feed connected and acknowledged; events flow.
	StateLive
	// StateReconnecting: connection lost, backoff timer scheduled.
	StateReconnecting
	// StatePolling: push retries exhausted, pull feed active.
	StatePolling
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateLive:
		return "live"
	case StateReconnecting:
		return "reconnecting"
	case StatePolling:
		return "polling"
	default:
		return "unknown"
	}
}

const (
	defaultPollInterval   = 5 * time.Second
	defaultBackoffBase    = time.Second
	defaultBackoffCap     = 30 * time.Second
	defaultRetryCeiling   = 3
	defaultRepromoteAfter = 12

	// cmdChanSize buffers commands sent before or between loop
	// iterations so callers rarely block.
	cmdChanSize = 16

	// resultChanSize buffers async dial/fetch completions.
	resultChanSize = 4
)

// postsFetcher is the slice of the proxy client the feeds need. *Client
// satisfies it; tests inject fakes.
type postsFetcher interface {
	Posts(ctx context.Context, channelID string) ([]Message, map[string]string, error)
}

// ControllerConfig wires a Controller. Zero durations and counts fall back
// to the documented defaults.
type ControllerConfig struct {
	Fetcher   postsFetcher
	Dial      dialFunc
	Store     *Store
	Directory *Directory // optional; refines direct-channel names from post fetches
	Logger    *slog.Logger

	PollInterval time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	RetryCeiling int

	// RepromotePush lets the pull feed retry the push transport after
	// RepromoteAfter poll ticks instead of polling forever.
	RepromotePush  bool
	RepromoteAfter int

	// Visible gates poll fetches: ticks are skipped while the host
	// surface is not visible. Nil means always visible.
	Visible func() bool

	// SessionValid is re-checked in every callback before state is
	// mutated. Nil means always valid.
	SessionValid func() bool

	// OnChange is invoked from the event loop after the store's visible
	// contents changed. Keep it cheap; hand off to your own goroutine
	// for anything slow.
	OnChange func()
}

// Controller owns one channel session: the active channel, exactly one
// delivery mechanism (push or pull) writing into the Store, the reconnect
// backoff state, and the teardown path. All of that state is owned by the
// Run event loop; public methods communicate with the loop over a command
// channel, so no callback can mutate state that belongs to a superseded
// connection or channel.
type Controller struct {
	cfg    ControllerConfig
	logger *slog.Logger

	cmdCh     chan command
	inboundCh chan inboundMsg
	dialCh    chan dialResult
	fetchCh   chan fetchResult
	done      chan struct{}

	// Loop-owned state. Never touched outside Run.
	state   State
	active  *Channel
	gen     uint64 // connection generation; frames and dials are tagged with it
	session uint64 // channel session; fetch results are tagged with it
	attempt int

	conn         wsConn
	connCancel   context.CancelFunc
	backoffTimer *time.Timer
	pollTicker   *time.Ticker
	pollTicks    int

	// Published snapshots for cross-goroutine readers.
	pub published
}

type cmdKind int

const (
	cmdSelect cmdKind = iota
	cmdDeactivate
	cmdReactivate
	cmdRefetch
	cmdInvalidate
)

type command struct {
	kind    cmdKind
	channel Channel
}

type dialResult struct {
	gen  uint64
	conn wsConn
	err  error
}

type fetchResult struct {
	session   uint64
	channelID string
	msgs      []Message
	users     map[string]string
	err       error
}

// NewController creates a controller in the Idle state. Run must be
// started for commands to take effect.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}

	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = defaultBackoffBase
	}

	if cfg.BackoffCap < cfg.BackoffBase {
		cfg.BackoffCap = defaultBackoffCap
	}

	if cfg.RetryCeiling < 1 {
		cfg.RetryCeiling = defaultRetryCeiling
	}

	if cfg.RepromoteAfter < 1 {
		cfg.RepromoteAfter = defaultRepromoteAfter
	}

	if cfg.Visible == nil {
		cfg.Visible = func() bool { return true }
	}

	if cfg.SessionValid == nil {
		cfg.SessionValid = func() bool { return true }
	}

	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	if cfg.Store == nil {
		cfg.Store = NewStore()
	}

	return &Controller{
		cfg:       cfg,
		logger:    cfg.Logger,
		cmdCh:     make(chan command, cmdChanSize),
		inboundCh: make(chan inboundMsg, inboundChanSize),
		dialCh:    make(chan dialResult, resultChanSize),
		fetchCh:   make(chan fetchResult, resultChanSize),
		done:      make(chan struct{}),
	}
}

// Store returns the message store for the active channel.
func (c *Controller) Store() *Store { return c.cfg.Store }

// Select makes ch the active channel: the prior channel's feed is torn
// down first, the store is reset, an initial fetch is issued, and the
// push transport is attempted.
func (c *Controller) Select(ch Channel) {
	c.send(command{kind: cmdSelect, channel: ch})
}

// Deactivate tears down all feeds and timers (chat surface closed or
// minimized). The store and active channel are kept so reopening displays
// instantly and Reactivate can resume.
func (c *Controller) Deactivate() {
	c.send(command{kind: cmdDeactivate})
}

// Reactivate re-establishes the feed for the previously active channel,
// if one is set. No-op otherwise.
func (c *Controller) Reactivate() {
	c.send(command{kind: cmdReactivate})
}

// Refetch requests an immediate out-of-band message fetch for the active
// channel. Used by actions after a confirmed write to minimize latency.
func (c *Controller) Refetch() {
	c.send(command{kind: cmdRefetch})
}

// Invalidate tears everything down and forgets the active channel.
// Wired to the session gate's invalidation hook.
func (c *Controller) Invalidate() {
	c.send(command{kind: cmdInvalidate})
}

func (c *Controller) send(cmd command) {
	select {
	case c.cmdCh <- cmd:
	case <-c.done:
	}
}

// Run is the event loop. It owns every piece of sync state and is the
// only goroutine that mutates it; the reader and the async dial/fetch
// goroutines communicate results back through tagged channels. Returns
// when ctx is cancelled.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	defer c.stopFeeds()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd := <-c.cmdCh:
			c.handleCommand(ctx, cmd)

		case msg := <-c.inboundCh:
			c.handleInbound(ctx, msg)

		case res := <-c.dialCh:
			c.handleDialResult(ctx, res)

		case res := <-c.fetchCh:
			c.handleFetchResult(res)

		case <-c.backoffC():
			c.handleBackoffElapsed(ctx)

		case <-c.pollC():
			c.handlePollTick(ctx)
		}
	}
}

// backoffC returns the pending backoff timer channel, or nil (blocks
// forever in select) when no reconnect is scheduled.
func (c *Controller) backoffC() <-chan time.Time {
	if c.backoffTimer == nil {
		return nil
	}

	return c.backoffTimer.C
}

func (c *Controller) pollC() <-chan time.Time {
	if c.pollTicker == nil {
		return nil
	}

	return c.pollTicker.C
}

func (c *Controller) handleCommand(ctx context.Context, cmd command) {
	switch cmd.kind {
	case cmdSelect:
		c.handleSelect(ctx, cmd.channel)

	case cmdDeactivate:
		c.stopFeeds()
		c.setState(StateIdle)

	case cmdReactivate:
		if c.active == nil || c.state != StateIdle {
			return
		}

		if !c.cfg.SessionValid() {
			return
		}

		c.attempt = 0
		c.setState(StateConnecting)
		c.startFetch(ctx)
		c.startDial(ctx)

	case cmdRefetch:
		c.startFetch(ctx)

	case cmdInvalidate:
		c.stopFeeds()
		c.active = nil
		c.cfg.Store.Reset()
		c.setState(StateIdle)
	}
}

func (c *Controller) handleSelect(ctx context.Context, ch Channel) {
	if !c.cfg.SessionValid() {
		c.logger.Warn("channel selected without a session", slog.String("channel", ch.ID))
		return
	}

	if c.active != nil && c.active.ID == ch.ID && c.state != StateIdle {
		// Already on this channel; just refresh.
		c.startFetch(ctx)
		return
	}

	// The vacated channel's connection and timers go away before
	// anything is established for the new one.
	c.stopFeeds()

	active := ch
	c.active = &active
	c.attempt = 0
	c.cfg.Store.Reset()
	c.setState(StateConnecting)

	c.logger.Info("channel selected",
		slog.String("channel", ch.ID),
		slog.String("kind", string(ch.Kind)),
	)

	c.startFetch(ctx)
	c.startDial(ctx)
}

// handleBackoffElapsed moves Reconnecting back to Connecting and retries
// the push transport. The attempt counter was already advanced when the
// connection was lost.
func (c *Controller) handleBackoffElapsed(ctx context.Context) {
	c.backoffTimer = nil

	if c.state != StateReconnecting {
		return
	}

	if !c.cfg.SessionValid() {
		c.stopFeeds()
		c.setState(StateIdle)

		return
	}

	c.setState(StateConnecting)
	c.startDial(ctx)
}

// onConnLost handles a push connection failure (dial error or read error)
// while the push transport is supposed to be up: schedule a backoff retry,
// or degrade to polling once the retry ceiling is reached.
func (c *Controller) onConnLost(ctx context.Context, err error) {
	if c.state != StateConnecting && c.state != StateLive {
		return
	}

	c.closeConn()

	if !c.cfg.SessionValid() {
		c.stopFeeds()
		c.setState(StateIdle)

		return
	}

	c.attempt++

	if c.attempt >= c.cfg.RetryCeiling {
		c.logger.Warn("push transport exhausted, degrading to polling",
			slog.Int("attempts", c.attempt),
			slog.String("error", err.Error()),
		)
		c.enterPolling(ctx)

		return
	}

	delay := c.backoffDelay(c.attempt)

	c.logger.Warn("live connection lost, reconnecting",
		slog.String("error", err.Error()),
		slog.Duration("backoff", delay),
		slog.Int("attempt", c.attempt),
	)

	c.setState(StateReconnecting)
	c.backoffTimer = time.NewTimer(delay)
}

// backoffDelay computes min(base * 2^(attempt-1), cap) for attempt >= 1.
func (c *Controller) backoffDelay(attempt int) time.Duration {
	shift := attempt - 1
	if shift > 30 {
		shift = 30
	}

	delay := c.cfg.BackoffBase << shift
	if delay > c.cfg.BackoffCap || delay <= 0 {
		delay = c.cfg.BackoffCap
	}

	return delay
}

// stopFeeds tears down the live connection, the reconnect timer, and the
// poll ticker, and invalidates every outstanding callback by advancing
// both generation counters. The store is left alone.
func (c *Controller) stopFeeds() {
	c.closeConn()

	c.session++

	if c.backoffTimer != nil {
		c.backoffTimer.Stop()
		c.backoffTimer = nil
	}

	c.stopPolling()
}

// closeConn drops the current connection (if any) and advances the
// connection generation so frames and dial results from it are ignored.
func (c *Controller) closeConn() {
	c.gen++

	if c.connCancel != nil {
		c.connCancel()
		c.connCancel = nil
	}

	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
		c.conn = nil
	}
}

func (c *Controller) setState(s State) {
	if c.state != s {
		c.logger.Debug("sync state changed",
			slog.String("from", c.state.String()),
			slog.String("to", s.String()),
		)
	}

	c.state = s
	c.pub.setState(s)
	c.pub.setChannel(c.active)
}

// notifyChange reports a visible store change to the UI layer.
func (c *Controller) notifyChange() {
	if c.cfg.OnChange != nil {
		c.cfg.OnChange()
	}
}

// State returns the current synchronization state. Safe from any goroutine.
func (c *Controller) State() State { return c.pub.state() }

// ActiveChannel returns a copy of the active channel, or nil. Safe from
// any goroutine.
func (c *Controller) ActiveChannel() *Channel { return c.pub.channel() }

// published holds cross-goroutine snapshots of loop-owned state.
type published struct {
	mu sync.RWMutex
	st State
	ch *Channel
}

func (p *published) setState(s State) {
	p.mu.Lock()
	p.st = s
	p.mu.Unlock()
}

func (p *published) setChannel(ch *Channel) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ch == nil {
		p.ch = nil
		return
	}

	snapshot := *ch
	p.ch = &snapshot
}

func (p *published) state() State {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.st
}

func (p *published) channel() *Channel {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.ch == nil {
		return nil
	}

	snapshot := *p.ch

	return &snapshot
}
