package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/snapie/chat/internal/chat"
)

var (
	reactDirectUser string
	reactRemove     bool
)

func init() {
	rootCmd.AddCommand(reactCmd)
	reactCmd.Flags().StringVarP(&reactDirectUser, "direct", "d", "", "the message lives in the direct conversation with this user")
	reactCmd.Flags().BoolVar(&reactRemove, "remove", false, "remove the reaction instead of adding it")
}

var reactCmd = &cobra.Command{
	Use:   "react <post-id> <emoji>",
	Short: "Add or remove a reaction on a message",
	Long:  "Add or remove a reaction on a message.\nThe emoji may be given as a character (👍) or as a canonical name (+1).",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()

		if err := a.bootstrap(ctx); err != nil {
			return err
		}

		ch, err := a.resolveChannel(ctx, reactDirectUser)
		if err != nil {
			return err
		}

		actions := chat.NewActions(a.engine.Client(), a.logger,
			func() *chat.Channel { return ch },
			func() {},
		)

		if err := actions.SetReaction(ctx, args[0], args[1], !reactRemove); err != nil {
			return fmt.Errorf("updating reaction: %w", err)
		}

		verb := "added"
		if reactRemove {
			verb = "removed"
		}

		fmt.Printf("reaction %s %s on %s\n", chat.DisplayEmoji(chat.CanonicalEmojiName(args[1])), verb, args[0])

		return nil
	},
}
