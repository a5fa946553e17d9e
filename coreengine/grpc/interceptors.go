package grpc

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// LOGGING INTERCEPTOR
// =============================================================================

// LoggingInterceptor logs the start, duration and result of each RPC.
// Client errors (InvalidArgument, NotFound, ...) are logged at warn, the rest at error.
func LoggingInterceptor(logger logging.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		logger.Debug("grpc_request_started", "method", info.FullMethod)

		resp, err := handler(ctx, req)
		duration := time.Since(start)

		if err != nil {
			code := status.Code(err)
			log := logger.Error
			if isClientError(code) {
				log = logger.Warn
			}
			log("grpc_request_failed",
				"method", info.FullMethod,
				"duration_ms", duration.Milliseconds(),
				"code", code.String(),
				"error", err.Error(),
			)
		} else {
			logger.Debug("grpc_request_completed",
				"method", info.FullMethod,
				"duration_ms", duration.Milliseconds(),
			)
		}

		return resp, err
	}
}

func isClientError(code codes.Code) bool {
	switch code {
	case codes.InvalidArgument, codes.NotFound, codes.FailedPrecondition, codes.ResourceExhausted, codes.Canceled:
		return true
	}
	return false
}

// =============================================================================
// METRICS INTERCEPTOR
// =============================================================================

// MetricsInterceptor records request count and latency per method and status code.
func MetricsInterceptor() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		observability.RecordGRPCRequest(info.FullMethod, status.Code(err).String(), int(time.Since(start).Milliseconds()))
		return resp, err
	}
}

// =============================================================================
// RECOVERY INTERCEPTOR
// =============================================================================

// RecoveryHandler converts a recovered panic value into an error.
type RecoveryHandler func(p any) error

// DefaultRecoveryHandler returns an Internal error with panic details.
func DefaultRecoveryHandler(p any) error {
	return status.Errorf(codes.Internal, "panic recovered: %v", p)
}

// RecoveryInterceptor recovers from handler panics, logs the stack and
// returns the error produced by handler (DefaultRecoveryHandler when nil).
func RecoveryInterceptor(logger logging.Logger, handler RecoveryHandler) grpc.UnaryServerInterceptor {
	if handler == nil {
		handler = DefaultRecoveryHandler
	}

	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		grpcHandler grpc.UnaryHandler,
	) (resp any, err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.Error("grpc_panic_recovered",
					"method", info.FullMethod,
					"panic", fmt.Sprintf("%v", p),
					"stack", string(debug.Stack()),
				)
				resp = nil
				err = handler(p)
			}
		}()

		return grpcHandler(ctx, req)
	}
}

// =============================================================================
// CHAIN INTERCEPTORS
// =============================================================================

// ChainUnaryInterceptors chains unary interceptors: the first wraps the second, and so on.
func ChainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			next := chain
			chain = func(ctx context.Context, req any) (any, error) {
				return interceptor(ctx, req, info, next)
			}
		}
		return chain(ctx, req)
	}
}

// =============================================================================
// SERVER OPTIONS BUILDER
// =============================================================================

// ServerOptions returns the standard interceptor chain for the conversation
// server. extra interceptors run innermost, after logging.
func ServerOptions(logger logging.Logger, extra ...grpc.UnaryServerInterceptor) []grpc.ServerOption {
	chain := append([]grpc.UnaryServerInterceptor{
		RecoveryInterceptor(logger, nil),
		MetricsInterceptor(),
		LoggingInterceptor(logger),
	}, extra...)
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(ChainUnaryInterceptors(chain...)),
	}
}
