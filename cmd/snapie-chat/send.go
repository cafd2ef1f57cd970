package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/snapie/chat/internal/chat"
)

var sendDirectUser string

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().StringVarP(&sendDirectUser, "direct", "d", "", "send to the direct conversation with this user instead of the community channel")
}

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Send a message to a channel",
	Args:  cobra.MinimumNArgs(1),
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

		ch, err := a.resolveChannel(ctx, sendDirectUser)
		if err != nil {
			return err
		}

		actions := chat.NewActions(a.engine.Client(), a.logger,
			func() *chat.Channel { return ch },
			func() {},
		)

		if err := actions.SendMessage(ctx, strings.Join(args, " ")); err != nil {
			return fmt.Errorf("sending message: %w", err)
		}

		fmt.Printf("sent to %s\n", channelLabel(*ch))

		return nil
	},
}
