package chat

import (
	"context"
	"log/slog"
	"time"
)

// EngineConfig assembles the full chat engine from application
// configuration. Zero values fall back to the controller defaults.
type EngineConfig struct {
	ProxyBaseURL   string
	SocketURL      string
	CommunityTag   string
	CommunityTitle string

	PollInterval time.Duration
	BackoffBase  time.Duration
	BackoffCap   time.Duration
	RetryCeiling int

	RepromotePush  bool
	RepromoteAfter int

	// Cursors persists read cursors across restarts. May be nil.
	Cursors ReadCursorStore

	// Visible gates poll fetches. Nil means always visible.
	Visible func() bool

	// OnChange fires after the active channel's visible messages changed.
	OnChange func()

	Logger *slog.Logger
}

// Engine bundles the chat components behind one wiring point: the proxy
// client, the session gate, the channel directory, the sync controller,
// the action layer, and the unread tracker. The session gate's
// invalidation hook is pre-wired to tear the controller down.
type Engine struct {
	client     *Client
	gate       *Gate
	directory  *Directory
	controller *Controller
	actions    *Actions
	unread     *UnreadTracker
}

// NewEngine wires a chat engine. The returned engine is idle until Run is
// started and a session is bootstrapped.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client, err := NewClient(cfg.ProxyBaseURL, nil)
	if err != nil {
		return nil, err
	}

	gate := NewGate(client, logger)

	directory := NewDirectory(client, cfg.CommunityTag, cfg.CommunityTitle, gate.Identity, logger)

	controller := NewController(ControllerConfig{
		Fetcher:        client,
		Dial:           newDialer(cfg.SocketURL, client.HTTPClient()),
		Store:          NewStore(),
		Directory:      directory,
		Logger:         logger,
		PollInterval:   cfg.PollInterval,
		BackoffBase:    cfg.BackoffBase,
		BackoffCap:     cfg.BackoffCap,
		RetryCeiling:   cfg.RetryCeiling,
		RepromotePush:  cfg.RepromotePush,
		RepromoteAfter: cfg.RepromoteAfter,
		Visible:        cfg.Visible,
		SessionValid:   gate.HasSession,
		OnChange:       cfg.OnChange,
	})

	gate.OnInvalidate(controller.Invalidate)

	actions := NewActions(client, logger, controller.ActiveChannel, controller.Refetch)

	return &Engine{
		client:     client,
		gate:       gate,
		directory:  directory,
		controller: controller,
		actions:    actions,
		unread:     NewUnreadTracker(cfg.Cursors),
	}, nil
}

// Run starts the sync event loop and blocks until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	return e.controller.Run(ctx)
}

// Client returns the underlying proxy client.
func (e *Engine) Client() *Client { return e.client }

// Gate returns the session gate.
func (e *Engine) Gate() *Gate { return e.gate }

// Directory returns the channel directory.
func (e *Engine) Directory() *Directory { return e.directory }

// Controller returns the sync controller.
func (e *Engine) Controller() *Controller { return e.controller }

// Actions returns the composer and reaction actions.
func (e *Engine) Actions() *Actions { return e.actions }

// Unread returns the unread indicator tracker.
func (e *Engine) Unread() *UnreadTracker { return e.unread }

// RefreshDirectory reloads the channel directory and feeds the result into
// the unread tracker.
func (e *Engine) RefreshDirectory(ctx context.Context) error {
	err := e.directory.Load(ctx)

	var all []Channel
	if community := e.directory.Community(); community != nil {
		all = append(all, *community)
	}

	all = append(all, e.directory.Directs()...)
	e.unread.Update(all)

	return err
}
