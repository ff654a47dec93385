package main

import (
	"context"
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/daemon"
	"github.com/mirrorbox/mirrorbox/internal/version"
)

func init() {
	rootCmd.AddCommand(newDaemonCmd())
}

func newDaemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Mirror continuously until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			slog.Info("mirrorbox", "version", version.Version, "revision", version.Revision, "build", version.BuildDate)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			d, err := daemon.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			defer slog.Info("Bye!")
			if err := d.Start(cmd.Context()); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("daemon", "error", err)
				return err
			}
			return nil
		},
	}
}
