package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/daemon"
)

func init() {
	rootCmd.AddCommand(newSyncCmd())
}

func newSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run a single reconciliation cycle and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			d, err := daemon.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			// Non-zero exit means the mirror did not converge this cycle.
			if err := d.RunOnce(cmd.Context()); err != nil {
				slog.Error("sync", "error", err)
				return err
			}
			return nil
		},
	}
}
