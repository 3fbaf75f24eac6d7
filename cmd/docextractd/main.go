package main

import (
	"context"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/docextract/internal/common"
	"github.com/joseph-ayodele/docextract/internal/server"
	"github.com/joseph-ayodele/docextract/internal/utils"
)

func main() {
	_ = godotenv.Load()
	cfg, err := common.LoadConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	logger := utils.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := server.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer := grpc.NewServer()
	health := server.NewHealthReporter(app.Service, cfg.Server.HealthInterval, logger)
	health.Register(grpcServer)
	// Reflection for grpcurl
	reflection.Register(grpcServer)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		health.Run(ctx)
	}()

	if len(cfg.Ingest.WatchDirs) > 0 {
		watch := server.NewWatchIngestion(cfg.Ingest, app.Service, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := watch.Run(ctx); err != nil {
				logger.Error("watch ingestion stopped", "error", err)
			}
		}()
	} else {
		logger.Info("no WATCH_DIRS configured, directory ingestion disabled")
	}

	logger.Info("docextractd listening", "addr", addr)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	grpcServer.GracefulStop()
	wg.Wait()
}
