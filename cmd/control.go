package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"stream-moderator/config"
	"stream-moderator/constant"
	"stream-moderator/dto"
	"stream-moderator/pkg/rabbitmq"
	server2 "stream-moderator/server"
)

func control(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:       "control <start|stop|start_all|stop_all|reconcile> [stream-id]",
		Short:     "publish a control command to the control queue",
		Args:      cobra.RangeArgs(1, 2),
		ValidArgs: []string{"start", "stop", "start_all", "stop_all", "reconcile"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Queue == nil {
				return fmt.Errorf("rabbitmq is not configured")
			}
			command := dto.StreamCommand{Action: constant.ControlAction(args[0])}
			if len(args) == 2 {
				command.StreamID = args[1]
			}

			ctx, cancel := context.WithCancel(server2.SetupLogger(cfg))
			defer cancel()

			conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
			if err != nil {
				return err
			}
			publisher, err := rabbitmq.NewPublisher(conn, cfg.Queue)
			if err != nil {
				return err
			}
			defer publisher.Close()

			if err := publisher.PublishCommand(ctx, command); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "published %s\n", command.Action)
			return nil
		},
	}
}
