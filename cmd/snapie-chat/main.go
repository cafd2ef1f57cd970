// Command snapie-chat is a terminal client for the Snapie community chat:
// it bootstraps a chat session through the Ecency proxy, follows the
// community channel or a direct conversation live, and exposes one-shot
// subcommands for sending messages, toggling reactions, and checking
// unread counts.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapie/chat/internal/chat"
	"github.com/snapie/chat/internal/config"
	"github.com/snapie/chat/internal/logging"
	"github.com/snapie/chat/internal/state"
)

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "snapie-chat",
	Short:   "Snapie community chat client",
	Long:    "Terminal client for the Snapie community chat.\nFollow the community channel live, exchange direct messages, and react to posts.",
	Version: Version,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs after setup.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *state.Store
	engine *chat.Engine
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
}

// setup loads configuration, opens the local state database, and wires the
// chat engine. onChange may be nil for one-shot commands.
func setup(onChange func()) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logger := logging.NewLogger(cfg.Environment)

	store, err := state.Open(cfg.StatePath)
	if err != nil {
		return nil, fmt.Errorf("opening state db: %w", err)
	}

	engine, err := chat.NewEngine(chat.EngineConfig{
		ProxyBaseURL:   cfg.ProxyBaseURL,
		SocketURL:      cfg.SocketURL,
		CommunityTag:   cfg.CommunityTag,
		CommunityTitle: cfg.CommunityTitle,
		PollInterval:   cfg.PollInterval,
		BackoffBase:    cfg.ReconnectBase,
		BackoffCap:     cfg.ReconnectCap,
		RetryCeiling:   cfg.ReconnectCeiling,
		RepromotePush:  cfg.RepromotePush,
		RepromoteAfter: cfg.RepromoteAfter,
		Cursors:        store,
		OnChange:       onChange,
		Logger:         logger,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("wiring chat engine: %w", err)
	}

	return &app{cfg: cfg, logger: logger, store: store, engine: engine}, nil
}

// bootstrap mints a chat session for the configured identity and loads
// the channel directory, caching it locally.
func (a *app) bootstrap(ctx context.Context) error {
	err := a.engine.Gate().Bootstrap(ctx,
		a.cfg.Username, a.cfg.AccessToken,
		a.cfg.CommunityTag, a.cfg.CommunityTitle,
	)
	if err != nil {
		return fmt.Errorf("bootstrapping session: %w", err)
	}

	if err := a.engine.RefreshDirectory(ctx); err != nil {
		a.logger.Warn("channel directory incomplete", slog.String("error", err.Error()))
	}

	if err := a.store.SaveChannels(a.allChannels()); err != nil {
		a.logger.Warn("failed to cache channels", slog.String("error", err.Error()))
	}

	return nil
}

func (a *app) allChannels() []chat.Channel {
	var all []chat.Channel

	if community := a.engine.Directory().Community(); community != nil {
		all = append(all, *community)
	}

	return append(all, a.engine.Directory().Directs()...)
}

// resolveChannel picks the target channel for a command: the direct
// conversation with directUser when given, the community channel
// otherwise.
func (a *app) resolveChannel(ctx context.Context, directUser string) (*chat.Channel, error) {
	if directUser == "" {
		community := a.engine.Directory().Community()
		if community == nil {
			return nil, fmt.Errorf("community channel not found for tag %q", a.cfg.CommunityTag)
		}

		return community, nil
	}

	ch, err := a.engine.Directory().StartDirect(ctx, directUser)
	if err != nil {
		return nil, fmt.Errorf("opening direct channel with %s: %w", directUser, err)
	}

	if ch == nil {
		return nil, fmt.Errorf("cannot open a direct channel with yourself")
	}

	return ch, nil
}
