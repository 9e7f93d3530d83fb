package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/dispatch"
)

func newDispatchCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "dispatch <user-id> <thread-id> <chat-id>",
		Short: "Trigger a scheduled chat directly",
		Long:  "Runs the scheduled dispatch path against the configured database without going through HTTP. Useful for operations and debugging.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDispatchCmd(cmd, configPath, args[0], args[1], args[2])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	return cmd
}

func runDispatchCmd(cmd *cobra.Command, configPath, userID, threadID, chatID string) error {
	cfg, conn, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	deps, err := buildServices(cfg, conn)
	if err != nil {
		return err
	}
	defer deps.broker.Close()

	ack, err := deps.svc.DispatchScheduled(dispatch.ScheduledRequest{
		Token:        deps.secret,
		UserID:       userID,
		ThreadID:     threadID,
		ThreadChatID: chatID,
	})
	if err != nil {
		return err
	}
	deps.svc.Wait()

	printAck(cmd, ack)
	return nil
}

// printAck renders a dispatch acknowledgement for the terminal.
func printAck(cmd *cobra.Command, ack *dispatch.Ack) {
	out := cmd.OutOrStdout()
	switch {
	case ack.Admitted:
		fmt.Fprintf(out, "Admitted: chat %s handed to runner\n", ack.ThreadChatID)
	case ack.Deferred:
		fmt.Fprintf(out, "Deferred: chat %s queued behind the running chat\n", ack.ThreadChatID)
	default:
		reason := ack.Reason
		if reason == "" {
			reason = "nothing to do"
		}
		fmt.Fprintf(out, "No-op: %s\n", reason)
	}
}
