package server

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/joseph-ayodele/docextract/internal/entity"
)

// Service names reported on the health endpoint besides the overall "".
const (
	HealthDatabase = "docextract.database"
	HealthOllama   = "docextract.ollama"
)

// HealthSource produces a dependency snapshot.
type HealthSource interface {
	Health(ctx context.Context) entity.Health
}

// HealthReporter mirrors HealthSource snapshots onto the standard gRPC health service.
type HealthReporter struct {
	src      HealthSource
	hs       *health.Server
	interval time.Duration
	logger   *slog.Logger
}

func NewHealthReporter(src HealthSource, interval time.Duration, logger *slog.Logger) *HealthReporter {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &HealthReporter{src: src, hs: health.NewServer(), interval: interval, logger: logger}
}

func (r *HealthReporter) Register(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, r.hs)
}

// Server exposes the underlying health server, mostly for tests.
func (r *HealthReporter) Server() grpc_health_v1.HealthServer {
	return r.hs
}

// Refresh takes one snapshot and publishes it.
func (r *HealthReporter) Refresh(ctx context.Context) entity.Health {
	h := r.src.Health(ctx)
	r.hs.SetServingStatus("", servingStatus(h.DatabaseOK))
	r.hs.SetServingStatus(HealthDatabase, servingStatus(h.DatabaseOK))
	// a missing local model degrades quality but the remote stage still serves
	r.hs.SetServingStatus(HealthOllama, servingStatus(h.OllamaAvailable))
	r.logger.Debug("health.refreshed", "status", h.Status, "database_ok", h.DatabaseOK, "ollama_available", h.OllamaAvailable)
	return h
}

// Run refreshes on every tick until ctx is done, then marks everything NOT_SERVING.
func (r *HealthReporter) Run(ctx context.Context) {
	r.Refresh(ctx)
	t := time.NewTicker(r.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.hs.Shutdown()
			return
		case <-t.C:
			r.Refresh(ctx)
		}
	}
}

func servingStatus(ok bool) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if ok {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_NOT_SERVING
}
