package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchyard/internal/config"
	"github.com/zulandar/switchyard/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBResetCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var (
		configPath string
		seed       bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the Switchyard database",
		Long:  "Creates the database (MySQL driver only), migrates all tables, and optionally seeds demo data.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath, seed)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	cmd.Flags().BoolVar(&seed, "seed", false, "seed a demo user with queued chats")
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string, seed bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database.Host, cfg.Database.Port)
		if err != nil {
			return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
		}
		if err := db.CreateDatabase(adminDB, cfg.Database.Database); err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready\n", cfg.Database.Database)
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	if err := db.AutoMigrate(conn); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	if seed {
		userID, err := db.SeedDemo(conn)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Seeded demo user %q with queued chats\n", userID)
	}

	fmt.Fprintln(out, "\nSwitchyard database initialized successfully.")
	return nil
}

func newDBResetCmd() *cobra.Command {
	var (
		configPath string
		yes        bool
	)

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Drop and re-initialize the Switchyard database",
		Long:  "Drops the configured database, re-creates it, and migrates all tables. MySQL driver only.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBReset(cmd, configPath, yes)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchyard.yaml", "path to Switchyard config file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation prompt")
	return cmd
}

func runDBReset(cmd *cobra.Command, configPath string, skipConfirm bool) error {
	out := cmd.OutOrStdout()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Database.Driver != "mysql" {
		return fmt.Errorf("db reset supports the mysql driver only; delete %s instead", cfg.Database.Path)
	}

	if !skipConfirm && !confirmReset(cmd, cfg.Database.Database) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}

	adminDB, err := db.ConnectAdmin(cfg.Database.Host, cfg.Database.Port)
	if err != nil {
		return fmt.Errorf("connect to MySQL at %s:%d: %w", cfg.Database.Host, cfg.Database.Port, err)
	}

	if err := db.DropDatabase(adminDB, cfg.Database.Database); err != nil {
		return err
	}
	fmt.Fprintf(out, "Dropped database %s\n", cfg.Database.Database)

	if err := db.CreateDatabase(adminDB, cfg.Database.Database); err != nil {
		return err
	}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	if err := db.AutoMigrate(conn); err != nil {
		return err
	}
	fmt.Fprintf(out, "Migrated %d tables\n", len(db.AllModels()))

	fmt.Fprintln(out, "\nSwitchyard database reset successfully.")
	return nil
}

// confirmReset prompts the user to confirm a destructive reset.
func confirmReset(cmd *cobra.Command, dbName string) bool {
	fmt.Fprintf(cmd.OutOrStdout(), "This will DROP database %q and all dispatch state. Continue? [y/N] ", dbName)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
