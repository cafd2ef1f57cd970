package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var unreadMarkRead string

func init() {
	rootCmd.AddCommand(unreadCmd)
	unreadCmd.Flags().StringVar(&unreadMarkRead, "mark-read", "", "zero the unread count for this channel ID and persist the read cursor")
}

var unreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Show unread message counts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()

		if err := a.bootstrap(ctx); err != nil {
			return err
		}

		if unreadMarkRead != "" {
			if err := a.engine.Unread().MarkRead(unreadMarkRead); err != nil {
				return fmt.Errorf("marking channel read: %w", err)
			}
		}

		for _, ch := range a.allChannels() {
			if n := a.engine.Unread().Count(ch.ID); n > 0 {
				fmt.Printf("%-24s  %d\n", channelLabel(ch), n)
			}
		}

		fmt.Printf("total: %d\n", a.engine.Unread().Total())

		return nil
	},
}
