package chat

import (
	"context"
	"log/slog"
	"sync"

	"github.com/snapie/chat/internal/chaterr"
)

// Gate tracks whether the client holds a valid remote session and for
// which identity. All chat activity is gated on it: an identity change or
// explicit logout invalidates the session and fires the teardown hook so
// dependent components (feeds, timers) shut down before the
// unauthenticated state is entered.
type Gate struct {
	client *Client
	logger *slog.Logger

	mu       sync.Mutex
	identity string

	// onInvalidate runs after the session marker is cleared. Registered
	// by the controller; may be nil.
	onInvalidate func()
}

// NewGate creates a session gate over the given proxy client.
func NewGate(client *Client, logger *slog.Logger) *Gate {
	return &Gate{client: client, logger: logger}
}

// OnInvalidate registers the teardown hook fired when the session is
// invalidated.
func (g *Gate) OnInvalidate(fn func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.onInvalidate = fn
}

// HasSession reports presence of the session indicator. No network call.
func (g *Gate) HasSession() bool {
	return g.client.HasSession()
}

// Identity returns the identity the current session was minted for, or ""
// when no bootstrap has happened.
func (g *Gate) Identity() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.identity
}

// Bootstrap mints a session for identity using the supplied proof. When
// the authenticated identity differs from the previously observed one, the
// old session is invalidated first so no feed keeps writing under the
// wrong user.
func (g *Gate) Bootstrap(ctx context.Context, identity, proof, community, communityTitle string) error {
	if identity == "" || proof == "" {
		return chaterr.ErrAuth
	}

	g.mu.Lock()
	switched := g.identity != "" && g.identity != identity
	g.mu.Unlock()

	if switched {
		g.logger.Info("identity changed, invalidating previous session",
			slog.String("user", identity),
		)
		g.Invalidate()
	}

	if err := g.client.Bootstrap(ctx, identity, proof, community, communityTitle); err != nil {
		return err
	}

	g.mu.Lock()
	g.identity = identity
	g.mu.Unlock()

	g.logger.Info("chat session established", slog.String("user", identity))

	return nil
}

// Invalidate destroys the session marker and tears down everything that
// depends on it. Safe to call when no session exists.
func (g *Gate) Invalidate() {
	g.mu.Lock()
	g.identity = ""
	hook := g.onInvalidate
	g.mu.Unlock()

	// Teardown runs before the cookie is dropped so in-flight feed
	// callbacks see a consistent "going away" order either way: both the
	// marker and the feeds are gone by the time this returns.
	if hook != nil {
		hook()
	}

	g.client.ClearSession()
}
