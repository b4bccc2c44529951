package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"stream-moderator/config"
	"stream-moderator/pkg/ffmpeg"
	server2 "stream-moderator/server"
)

func probe(config *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <rtsp-url>",
		Short: "test whether an RTSP endpoint is reachable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := server2.SetupLogger(config)
			media := ffmpeg.New(config.FFmpeg.Binary, config.FFmpeg.ExtractTimeout)
			if _, err := media.Check(); err != nil {
				return err
			}

			ok, msg := media.Probe(ctx, args[0], config.Capture.ProbeTimeout)
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			if !ok {
				return fmt.Errorf("probe failed for %s", args[0])
			}
			return nil
		},
	}
}
