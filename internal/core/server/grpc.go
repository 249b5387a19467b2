// Package server runs the gRPC rule service and the metrics endpoint.
package server

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/solatis/tagrules/internal/core/api"
	"github.com/solatis/tagrules/internal/core/auth"
	"github.com/solatis/tagrules/internal/core/config"
)

const (
	// shutdownTimeout bounds GracefulStop before connections are cut.
	shutdownTimeout = 30 * time.Second

	// maxRecvMsgSize admits a full batch of large objects.
	maxRecvMsgSize = 16 << 20

	keepaliveTime = 2 * time.Minute
)

// GRPCServer serves RuleService and the standard health service.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	addr   string
}

// NewGRPCServer wires interceptors and registers the services.
// Interceptor order: logging, request timeout, then authentication, so
// rejected calls are still logged and timed.
func NewGRPCServer(cfg config.ServerConfig, service api.RuleServiceServer, authenticator *auth.Authenticator) (*GRPCServer, error) {
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}

	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			LoggingInterceptor(),
			TimeoutInterceptor(cfg.RequestTimeout),
			authenticator.UnaryInterceptor(),
		),
		grpc.MaxRecvMsgSize(maxRecvMsgSize),
		grpc.KeepaliveParams(keepalive.ServerParameters{Time: keepaliveTime}),
	)
	api.RegisterRuleServiceServer(server, service)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(server, hs)

	s := &GRPCServer{server: server, health: hs, addr: cfg.Addr()}
	s.SetServing(true)
	return s, nil
}

// SetServing reports the overall and RuleService health status.
func (s *GRPCServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_SERVING
	if !serving {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(api.ServiceName, status)
}

// Start listens on the configured address and serves until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	var lc net.ListenConfig
	lis, err := lc.Listen(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", s.addr, err)
	}
	log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	return s.Serve(lis)
}

// Serve accepts connections on lis until Shutdown is called.
func (s *GRPCServer) Serve(lis net.Listener) error {
	return s.server.Serve(lis)
}

// Shutdown marks every service NOT_SERVING, then drains in-flight calls.
// Calls still running after ctx ends or shutdownTimeout are cut off.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	timer := time.NewTimer(shutdownTimeout)
	defer timer.Stop()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-timer.C:
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}
