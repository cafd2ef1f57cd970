package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(channelsCmd)
}

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "List the community channel and direct conversations",
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

		if community := a.engine.Directory().Community(); community != nil {
			fmt.Printf("community  %-24s  unread %d\n", channelLabel(*community), a.engine.Unread().Count(community.ID))
		} else {
			fmt.Println("community  (not found)")
		}

		for _, ch := range a.engine.Directory().Directs() {
			fmt.Printf("direct     %-24s  unread %d\n", channelLabel(ch), a.engine.Unread().Count(ch.ID))
		}

		return nil
	},
}
