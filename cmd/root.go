package cmd

import (
	"github.com/spf13/cobra"
	"stream-moderator/config"
)

func Root(config *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "stream-moderator",
		Short:         "record RTSP classroom streams and flag inappropriate speech",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(server(config))
	rootCmd.AddCommand(probe(config))
	rootCmd.AddCommand(streams(config))
	rootCmd.AddCommand(control(config))
	return rootCmd
}
