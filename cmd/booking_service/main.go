package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "booking_service",
		Short:         "Authentication service for the room booking system",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional, real environment variables win over it.
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			if configPath == "" {
				configPath = os.Getenv("CONFIG_PATH")
			}
			if configPath == "" {
				return errors.New("failed get config path from flags")
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to the yaml config (env CONFIG_PATH)")

	root.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		purgeTokensCmd(&configPath),
		createUserCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		slog.Error("command failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}
	return log
}
