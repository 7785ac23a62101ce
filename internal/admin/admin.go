// Package admin serves the operational gRPC endpoint: standard health checks
// and server reflection.
package admin

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-check name of the upload service.
const ServiceName = "mediafanout.Upload"

type Server struct {
	GRPC   *grpc.Server
	health *health.Server
}

// NewServer starts out NOT_SERVING for ServiceName until SetServing(true).
func NewServer(logger *slog.Logger) *Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		RecoveryUnaryInterceptor(logger),
		UnaryLoggingInterceptor(logger),
	))

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	return &Server{GRPC: srv, health: hs}
}

func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceName, st)
}

// Shutdown flips every service to NOT_SERVING so watchers see the drain, then
// stops the server gracefully.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.GRPC.GracefulStop()
}
