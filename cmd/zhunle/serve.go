package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newthinker/zhunle/internal/api"
	"github.com/newthinker/zhunle/internal/app"
	"github.com/newthinker/zhunle/internal/client"
	"github.com/newthinker/zhunle/internal/logger"
	"github.com/newthinker/zhunle/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the zhunle web server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Bootstrap logger until the configured mode is known
	boot := logger.Must(debug)
	defer boot.Sync()

	cfg, err := loadConfig(boot)
	if err != nil {
		return err
	}

	log, err := logger.ForMode(cfg.Server.Mode, debug,
		zap.Fields(zap.String("service", "zhunle"), zap.String("version", Version)))
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer log.Sync()

	log.Info("starting zhunle server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("backend", cfg.Backend.BaseURL),
	)

	var reg *metrics.Registry
	clientOpts := []client.Option{}
	if cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
		clientOpts = append(clientOpts, client.WithRecorder(reg))
	}

	application := app.New(cfg, newClient(cfg, log, clientOpts...), log)
	if reg != nil {
		application.SetRecorder(reg)
	}

	// Create API server
	server, err := api.NewServer(api.Config{
		Host:         cfg.Server.Host,
		Port:         cfg.Server.Port,
		TemplatesDir: cfg.Server.TemplatesDir,
		APIKey:       cfg.Server.APIKey,
		SessionTTL:   cfg.Server.SessionTTL(),
		MetricsPath:  cfg.Metrics.Path,
	}, api.Dependencies{App: application, Metrics: reg}, log)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Session sweep loop
	go func() {
		if err := application.Start(ctx); err != nil && err != context.Canceled {
			log.Error("app error", zap.Error(err))
		}
	}()

	// Start server in goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down zhunle server")
	application.Stop()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	return server.Shutdown(shutdownCtx)
}
