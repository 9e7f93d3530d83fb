package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/store"
)

func newStatusCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "status <user-id>",
		Short: "Show a user's dispatch state",
		Long:  "Prints the user's running chat, if any, and the queued chats in dispatch order.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatusCmd(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	return cmd
}

func runStatusCmd(cmd *cobra.Command, configPath, userID string) error {
	_, conn, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	st := store.New(conn)

	known, err := st.UserExists(userID)
	if err != nil {
		return err
	}
	if !known {
		return fmt.Errorf("unknown user %q", userID)
	}

	out := cmd.OutOrStdout()

	run, err := st.RunningChat(userID)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Running: chat %s (since %s, instance %s)\n",
			run.ThreadChatID, run.StartedAt.Format("15:04:05"), run.InstanceID)
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintln(out, "Running: none")
	default:
		return err
	}

	queued, err := st.QueuedChats(userID)
	if err != nil {
		return err
	}
	if len(queued) == 0 {
		fmt.Fprintln(out, "Queue:   empty")
		return nil
	}
	fmt.Fprintf(out, "Queue:   %d chat(s)\n", len(queued))
	for i, chat := range queued {
		fmt.Fprintf(out, "  %d. %s (thread %s, queued %s)\n",
			i+1, chat.ID, chat.ThreadID, chat.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
