package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Verify the configured identity can mint a chat session",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := setup(nil)
		if err != nil {
			return err
		}
		defer a.close()

		if err := a.bootstrap(cmd.Context()); err != nil {
			return err
		}

		fmt.Printf("session established for @%s\n", a.cfg.Username)
		fmt.Printf("channels cached: %d\n", len(a.allChannels()))

		return nil
	},
}
