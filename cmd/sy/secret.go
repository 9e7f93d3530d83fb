package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func newSecretCmd() *cobra.Command {
	var outPath string

	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Write the dispatch secret file",
		Long:  "Prompts for the trusted-caller secret without echo and writes it to the secret file referenced by dispatch.secret_file.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSecret(cmd, outPath)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "switchyard.secret", "path to write the secret file")
	return cmd
}

func runSecret(cmd *cobra.Command, outPath string) error {
	out := cmd.OutOrStdout()

	fmt.Fprint(out, "Dispatch secret: ")
	raw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("read secret: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("secret must not be empty")
	}

	if err := os.WriteFile(outPath, append(raw, '\n'), 0o600); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	fmt.Fprintf(out, "Secret written to %s\n", outPath)
	return nil
}
