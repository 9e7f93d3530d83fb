package main

import (
	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/dispatch"
)

func newDrainCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "drain <user-id>",
		Short: "Drain one chat from a user's queue",
		Long:  "Starts the oldest queued chat for the user if nothing is running. A busy user or an empty queue is a no-op, not an error.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDrainCmd(cmd, configPath, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	return cmd
}

func runDrainCmd(cmd *cobra.Command, configPath, userID string) error {
	cfg, conn, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	deps, err := buildServices(cfg, conn)
	if err != nil {
		return err
	}
	defer deps.broker.Close()

	ack, err := deps.svc.DrainQueue(dispatch.DrainRequest{Token: deps.secret, UserID: userID})
	if err != nil {
		return err
	}
	deps.svc.Wait()

	printAck(cmd, ack)
	return nil
}
