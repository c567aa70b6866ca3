package server

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check service name reported alongside the overall status.
const ServiceName = "docrefine.Documents"

// GRPCServer serves the standard health protocol (and reflection for grpcurl)
// so orchestrators can probe the process without speaking HTTP.
type GRPCServer struct {
	srv    *grpc.Server
	health *health.Server
	logger *slog.Logger
}

func NewGRPCServer(logger *slog.Logger) *GRPCServer {
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	// Reflection for grpcurl
	reflection.Register(srv)
	return &GRPCServer{srv: srv, health: hs, logger: logger}
}

// Serve blocks until the listener fails or Stop is called.
func (g *GRPCServer) Serve(lis net.Listener) error {
	g.logger.Info("gRPC health serving", "addr", lis.Addr().String())
	return g.srv.Serve(lis)
}

// SetServing flips the reported status of both the overall and the named service.
func (g *GRPCServer) SetServing(serving bool) {
	st := healthpb.HealthCheckResponse_SERVING
	if !serving {
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	g.health.SetServingStatus("", st)
	g.health.SetServingStatus(ServiceName, st)
}

// Stop marks the server as shutting down and drains in-flight RPCs.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}

// MonitorHealth runs check every interval and reports the result until ctx is done.
func (g *GRPCServer) MonitorHealth(ctx context.Context, interval time.Duration, check func(context.Context) error) {
	if check == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	serving := true
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := check(ctx)
			if ok := err == nil; ok != serving {
				serving = ok
				g.SetServing(ok)
				if ok {
					g.logger.Info("health.recovered")
				} else {
					g.logger.Warn("health.degraded", "error", err)
				}
			}
		}
	}
}
