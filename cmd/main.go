package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/katiamach/live-weather-tracker/internal/api"
	"github.com/katiamach/live-weather-tracker/internal/config"
	"github.com/katiamach/live-weather-tracker/internal/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		logger.Fatal(err)
	}
}

func newRootCommand() *cobra.Command {
	var envFile string
	var cfg *config.Config

	rootCmd := &cobra.Command{
		Use:   "weathertracker",
		Short: "Live weather tracker",
		Long: `Polls weatherapi.com for the configured cities, stores every reading
and pushes weather_update and weather_delete events to connected clients.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var envFiles []string
			if envFile != "" {
				envFiles = append(envFiles, envFile)
			}

			var err error
			cfg, err = config.Load(envFiles...)
			if err != nil {
				return err
			}

			return logger.SetLevel(cfg.LogLevel)
		},
	}

	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load (default is .env when present)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API, push channel and background poller",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := api.RunAPI(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("failed to run weather tracker api: %w", err)
			}
			return nil
		},
	}

	pollCmd := &cobra.Command{
		Use:   "poll",
		Short: "Fetch and store weather for every configured city once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := api.PollOnce(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("poll failed after %d readings: %w", n, err)
			}

			logger.WithFields(logger.Fields{"stored": n}).Info("poll completed")
			return nil
		},
	}

	rootCmd.AddCommand(serveCmd, pollCmd)

	// serve is the default command
	rootCmd.RunE = serveCmd.RunE

	return rootCmd
}
