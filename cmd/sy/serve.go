package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/db"
	"github.com/zulandar/switchyard/internal/server"
	"github.com/zulandar/switchyard/internal/sweep"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Switchyard dispatch service",
		Long:  "Starts the HTTP trigger endpoints and the periodic queue sweep. Shuts down gracefully on SIGINT/SIGTERM, waiting for in-flight handoffs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string) error {
	out := cmd.OutOrStdout()

	cfg, conn, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(conn); err != nil {
		return err
	}

	deps, err := buildServices(cfg, conn)
	if err != nil {
		return err
	}
	defer deps.broker.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Sweep.Disabled {
		fmt.Fprintln(out, "Queue sweep disabled")
	} else {
		sweeper, err := sweep.New(deps.store, deps.svc, deps.secret, cfg.Sweep.Schedule)
		if err != nil {
			return err
		}
		go func() {
			if err := sweeper.Run(ctx); err != nil {
				log.Printf("sweep: %v", err)
			}
		}()
		fmt.Fprintf(out, "Queue sweep scheduled: %s\n", cfg.Sweep.Schedule)
	}

	err = server.Start(ctx, server.Opts{
		Service: deps.svc,
		Store:   deps.store,
		Gate:    deps.gate,
		Broker:  deps.broker,
		Host:    cfg.Service.Host,
		Port:    cfg.Service.Port,
		Out:     out,
	})

	// Let in-flight handoffs settle before exit.
	deps.svc.Wait()
	return err
}
