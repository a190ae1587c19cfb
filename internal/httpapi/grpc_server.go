package httpapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"xyzcredito.org/internal/obs"
)

type readinessChecker interface {
	Ping(ctx context.Context) error
}

// GRPCHealth serves grpc.health.v1 with the status derived from store
// readiness on every Check.
type GRPCHealth struct {
	*health.Server
	readiness readinessChecker
}

// NewGRPCServer returns a gRPC server exposing the standard health service.
func NewGRPCServer(r readinessChecker, opts ...grpc.ServerOption) (*grpc.Server, *GRPCHealth) {
	h := &GRPCHealth{Server: health.NewServer(), readiness: r}
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, h)
	return srv, h
}

// Check evaluates readiness, then answers like the stock health server.
func (h *GRPCHealth) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	st := healthpb.HealthCheckResponse_SERVING
	if err := h.readiness.Ping(ctx); err != nil {
		obs.Error("grpc_health_not_ready", err, nil)
		st = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.SetServingStatus("", st)
	h.SetServingStatus(serviceName, st)
	return h.Server.Check(ctx, req)
}
