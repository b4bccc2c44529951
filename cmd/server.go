package cmd

import (
	"github.com/spf13/cobra"
	"stream-moderator/config"
	server2 "stream-moderator/server"
)

func server(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "start http server and recording supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server2.RunHttp(config)
		},
	}
}
