package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/go-resty/resty/v2"
	"github.com/spf13/cobra"
	"stream-moderator/config"
	"stream-moderator/dto"
)

func apiClient(cmd *cobra.Command, cfg *config.Config) *resty.Client {
	addr, _ := cmd.Flags().GetString("server")
	if addr == "" {
		addr = "http://localhost:" + cfg.Server.HttpPort
	}
	return resty.New().SetBaseURL(strings.TrimSuffix(addr, "/"))
}

func streams(cfg *config.Config) *cobra.Command {
	streamsCmd := &cobra.Command{
		Use:   "streams",
		Short: "manage streams on a running server",
	}
	streamsCmd.PersistentFlags().String("server", "", "server base url (default http://localhost:<server.port>)")

	streamsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list registered streams",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var views []dto.StreamView
			resp, err := apiClient(cmd, cfg).R().SetContext(cmd.Context()).SetResult(&views).Get("/api/streams")
			if err != nil {
				return err
			}
			if resp.IsError() {
				return fmt.Errorf("list streams: %s", resp.Status())
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tID\tSTATUS\tURL\tLAST ERROR")
			for _, v := range views {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", v.Number, v.ID, v.Status, v.URL, v.LastError)
			}
			return w.Flush()
		},
	})

	var ignoreError bool
	addCmd := &cobra.Command{
		Use:   "add <classroom-id> <teacher-name> <rtsp-url>",
		Short: "register a stream after testing its connection",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var out dto.AddStreamResponse
			_, err := apiClient(cmd, cfg).R().
				SetContext(cmd.Context()).
				SetBody(dto.AddStreamRequest{ClassroomID: args[0], TeacherName: args[1], URL: args[2], IgnoreError: ignoreError}).
				SetResult(&out).
				SetError(&out).
				Post("/api/streams")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.Message)
			if !out.Success {
				return fmt.Errorf("stream not added")
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.StreamID)
			return nil
		},
	}
	addCmd.Flags().BoolVar(&ignoreError, "ignore-error", false, "register even if the connection test fails")
	streamsCmd.AddCommand(addCmd)

	streamsCmd.AddCommand(&cobra.Command{
		Use:   "remove <stream-id>",
		Short: "stop and unregister a stream",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printAction(cmd, apiClient(cmd, cfg).R().SetContext(cmd.Context()), "DELETE", "/api/streams/"+args[0])
		},
	})

	for _, action := range []string{"start", "stop"} {
		streamsCmd.AddCommand(&cobra.Command{
			Use:   action + " <stream-id>",
			Short: action + " recording a stream",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return printAction(cmd, apiClient(cmd, cfg).R().SetContext(cmd.Context()), "POST", "/api/streams/"+args[0]+"/"+action)
			},
		})
	}

	return streamsCmd
}

func printAction(cmd *cobra.Command, req *resty.Request, method, path string) error {
	var out dto.ActionResult
	_, err := req.SetResult(&out).SetError(&out).Execute(method, path)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out.Message)
	if !out.Success {
		return fmt.Errorf("%s %s failed", method, path)
	}
	return nil
}
