package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/snapie/chat/internal/chat"
	"github.com/snapie/chat/internal/chaterr"
)

var runDirectUser string

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runDirectUser, "direct", "d", "", "follow the direct conversation with this user instead of the community channel")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Follow a channel live",
	Long:  "Connect to a channel and print messages as they arrive.\nLines typed on stdin are sent to the channel. Falls back to polling when the live connection cannot be held.",
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, _ []string) error {
	// Coalescing notifier: the event loop only ever needs to signal
	// "something changed", the printer re-reads the store.
	notify := make(chan struct{}, 1)

	a, err := setup(func() {
		select {
		case notify <- struct{}{}:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	ch, err := a.resolveChannel(ctx, runDirectUser)
	if err != nil {
		return err
	}

	fmt.Printf("following %s (state: connecting)\n", channelLabel(*ch))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := a.engine.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	})

	a.engine.Controller().Select(*ch)

	if err := a.store.SetActiveChannelID(ch.ID); err != nil {
		a.logger.Warn("failed to persist active channel", slog.String("error", err.Error()))
	}

	if err := a.engine.Unread().MarkRead(ch.ID); err != nil {
		a.logger.Warn("failed to persist read cursor", slog.String("error", err.Error()))
	}

	// Stdin is read on its own goroutine because Scan cannot be
	// interrupted by context; the composer loop below can.
	lines := make(chan string)

	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-gctx.Done():
				return
			}
		}
	}()

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil

			case line, ok := <-lines:
				if !ok {
					return nil
				}

				if err := a.engine.Actions().SendMessage(gctx, line); err != nil {
					if errors.Is(err, chaterr.ErrEmptyMessage) {
						continue
					}

					fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
				}
			}
		}
	})

	g.Go(func() error {
		printMessages(gctx, a.engine, notify)
		return nil
	})

	return g.Wait()
}

// printMessages tails the active channel's store, printing messages newer
// than the last one shown. Edits and deletions of already-printed messages
// are not re-rendered.
func printMessages(ctx context.Context, engine *chat.Engine, notify <-chan struct{}) {
	var lastAt int64

	lastIDs := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return

		case <-notify:
			for _, m := range engine.Controller().Store().Messages() {
				if m.CreateAt < lastAt || lastIDs[m.ID] {
					continue
				}

				ts := time.UnixMilli(m.CreateAt).Format("15:04:05")
				fmt.Printf("[%s] %s: %s%s\n", ts, m.Username, m.Body, renderReactions(m.Reactions))

				lastAt = m.CreateAt
				lastIDs[m.ID] = true
			}
		}
	}
}

func renderReactions(reactions []chat.Reaction) string {
	if len(reactions) == 0 {
		return ""
	}

	out := "  ["
	for i, r := range reactions {
		if i > 0 {
			out += " "
		}

		out += chat.DisplayEmoji(r.EmojiName)
	}

	return out + "]"
}

func channelLabel(ch chat.Channel) string {
	if ch.Kind == chat.ChannelDirect {
		return "@" + ch.OtherUser
	}

	if ch.DisplayName != "" {
		return ch.DisplayName
	}

	return ch.Name
}
