package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/StrathCole/oracle-priority/pkg/metrics"
	"github.com/StrathCole/oracle-priority/pkg/server/api"
	"github.com/StrathCole/oracle-priority/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the resolution stream and the periodic resolver",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := initLogger(cfg)
	if err != nil {
		return err
	}

	logger.Info("Starting oracle-priority", "version", version.Version, "store", cfg.Store.Backend)

	metrics.Init()
	if cfg.Metrics.Enabled {
		go func() {
			logger.Info("Starting metrics server", "addr", cfg.Metrics.Addr)
			if err := metrics.ServeHTTP(cfg.Metrics.Addr); err != nil {
				logger.Error("Metrics server failed", "error", err)
			}
		}()
	}

	svc, st, err := openService(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := svc.Bootstrap(ctx, cfg.Assets); err != nil {
		return fmt.Errorf("failed to bootstrap assets: %w", err)
	}

	errChan := make(chan error, 2)

	var wsServer *api.WebSocketServer
	if cfg.Server.WebSocket.Enabled {
		wsServer = api.NewWebSocketServer(cfg.Server.WebSocket.Addr, logger)
		svc.Subscribe(wsServer.Updates())
		go func() {
			if err := wsServer.Start(ctx); err != nil {
				errChan <- fmt.Errorf("WebSocket server: %w", err)
			}
		}()
	}

	server := api.NewServer(cfg.Server.HTTP.Addr, svc, api.NewTokenAuthorizer(cfg.Server.AdminToken),
		cfg.Server.ResolveTimeout.ToDuration(), logger)
	if cfg.Server.AdminToken == "" {
		logger.Warn("No admin token configured, configuration endpoints are disabled")
	}
	go func() {
		errChan <- server.Start()
	}()

	go svc.Run(ctx, cfg.Resolver.RefreshInterval.ToDuration())

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-errChan:
		if err != nil {
			logger.Error("Component failed", "error", err)
			cancel()
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down gracefully...")
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("Failed to stop HTTP server", "error", err)
	}
	if wsServer != nil {
		svc.Unsubscribe(wsServer.Updates())
		wsServer.Stop()
	}
	logger.Info("Shutdown complete")
	return nil
}
