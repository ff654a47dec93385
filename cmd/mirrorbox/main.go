package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/mirrorbox/mirrorbox/internal/config"
	"github.com/mirrorbox/mirrorbox/internal/utils"
	"github.com/mirrorbox/mirrorbox/internal/version"
)

var logFile *os.File

var rootCmd = &cobra.Command{
	Use:     "mirrorbox",
	Short:   "One-way mirror of a local directory into a cloud store",
	Version: version.Detailed(),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default "+config.DefaultConfigPath+")")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this file")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		os.Exit(1)
	}
}

func setupLogging(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		level = slog.LevelDebug
	}

	stderrHandler := tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	})

	handler := slog.Handler(stderrHandler)
	if path, _ := cmd.Flags().GetString("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logFile = f
		fileHandler := slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})
		handler = utils.NewMultiLogHandler(stderrHandler, fileHandler)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := ""
	if cmd.Flag("config").Changed {
		path, _ = cmd.Flags().GetString("config")
	} else if envPath := os.Getenv("MIRRORBOX_CONFIG_PATH"); envPath != "" {
		path = envPath
	}
	return config.Load(path)
}
