package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/medimage2report/internal/app"
	"github.com/joseph-ayodele/medimage2report/internal/async"
	"github.com/joseph-ayodele/medimage2report/internal/common"
	"github.com/joseph-ayodele/medimage2report/internal/ingest"
	"github.com/joseph-ayodele/medimage2report/internal/server"
)

// watchDebounce lets scanners finish writing before a dropped PDF is read.
const watchDebounce = 2 * time.Second

func main() {
	if err := common.LoadDotEnv(os.Getenv("ENV_FILE")); err != nil {
		slog.Error("failed to load .env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()
	a.StartQueue()

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	grpcServer, _ := server.NewGRPCServer(a.DocumentServer(), logger)

	if dir := cfg.Ingest.WatchDir; dir != "" {
		go func() {
			err := a.Ingest.Watch(ctx, ingest.WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: watchDebounce}, cfg.Ingest.OwnerID, async.Job{})
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("folder watcher stopped", "dir", dir, "error", err)
			}
		}()
	}

	logger.Info("medreport listening", "addr", cfg.Server.GRPCAddr, "providers", a.Registry.Names())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	grpcServer.GracefulStop()
}
