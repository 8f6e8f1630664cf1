package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldguard/fieldguard/internal/config"
	"github.com/fieldguard/fieldguard/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the review server",
	Long: `Run the HTTP review server. It serves the latest review report,
accepts analysis requests and developer overrides over the API, and
streams run progress to connected review UIs over WebSocket.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Info("Starting fieldguard review server",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("port", cfg.Server.Port))

	srv, err := server.New(cfg, log)
	if err != nil {
		return err
	}

	if err := config.Watch(cfg, func(newCfg *config.Config) {
		log.Info("Configuration change detected, reloading rules")
		if err := srv.ReloadRules(newCfg); err != nil {
			log.Error("Failed to reload rules", zap.Error(err))
		}
	}); err != nil {
		log.Warn("Configuration watch unavailable", zap.Error(err))
	}

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- srv.Start()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return err
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Stop(ctx); err != nil {
			log.Error("Failed to shut down gracefully", zap.Error(err))
			return err
		}
		log.Info("Server shutdown complete")
	}

	return nil
}
