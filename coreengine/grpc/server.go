package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// =============================================================================
// Graceful Server
// =============================================================================

// GracefulServer wraps a gRPC server hosting ConversationService with
// graceful shutdown support.
type GracefulServer struct {
	grpcServer *grpc.Server
	conv       *ConversationServer
	address    string
	listener   net.Listener
	shutdownMu sync.Mutex
	isShutdown bool
}

// NewGracefulServer creates a server with the standard interceptors and the
// otelgrpc stats handler. A nil limiter disables per-session turn limits.
// Extra options are appended after the defaults.
func NewGracefulServer(conv *ConversationServer, address string, limiter *RateLimiter, opts ...grpc.ServerOption) *GracefulServer {
	var extra []grpc.UnaryServerInterceptor
	if limiter != nil {
		extra = append(extra, RateLimitInterceptor(limiter))
	}
	all := append(ServerOptions(conv.logger, extra...), grpc.StatsHandler(otelgrpc.NewServerHandler()))
	all = append(all, opts...)

	grpcServer := grpc.NewServer(all...)
	RegisterConversationServiceServer(grpcServer, conv)

	return &GracefulServer{
		grpcServer: grpcServer,
		conv:       conv,
		address:    address,
	}
}

// Serve serves on an existing listener until ctx is cancelled, then stops gracefully.
func (s *GracefulServer) Serve(ctx context.Context, lis net.Listener) error {
	s.listener = lis
	s.conv.logger.Info("grpc_server_started", "address", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.grpcServer.Serve(lis)
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.conv.logger.Info("grpc_graceful_shutdown_initiated", "reason", ctx.Err().Error())
		s.ShutdownWithTimeout(10 * time.Second)
		return nil
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

// Start listens on the configured address and blocks like Serve.
func (s *GracefulServer) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, lis)
}

// GracefulStop stops accepting new RPCs and waits for in-flight turns.
func (s *GracefulServer) GracefulStop() {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	if s.isShutdown {
		return
	}
	s.isShutdown = true

	s.conv.logger.Info("grpc_graceful_stop_started")
	s.grpcServer.GracefulStop()
	s.conv.logger.Info("grpc_graceful_stop_completed")
}

// ShutdownWithTimeout stops gracefully, forcing an immediate stop after timeout.
func (s *GracefulServer) ShutdownWithTimeout(timeout time.Duration) {
	done := make(chan struct{})

	go func() {
		s.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-time.After(timeout):
		s.conv.logger.Warn("grpc_graceful_shutdown_timeout",
			"timeout_ms", timeout.Milliseconds(),
		)
		s.grpcServer.Stop()
	}
}

// GetGRPCServer returns the underlying grpc.Server.
func (s *GracefulServer) GetGRPCServer() *grpc.Server {
	return s.grpcServer
}

// Address returns the configured address.
func (s *GracefulServer) Address() string {
	return s.address
}
