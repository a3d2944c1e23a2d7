package cmd

import (
	"github.com/ArthurPouzCS/traktoon-sub000/server"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:     "server",
	Aliases: []string{"start"},
	Short:   "Start the connector HTTP server",
	RunE: func(_ *cobra.Command, _ []string) error {
		return server.Start(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}
