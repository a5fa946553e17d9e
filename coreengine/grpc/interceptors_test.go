package grpc

import (
	"context"
	"errors"
	"testing"

	"github.com/jeeves-cluster-organization/synapse/coreengine/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// =============================================================================
// LOGGING INTERCEPTOR TESTS
// =============================================================================

func TestLoggingInterceptor_Success(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := LoggingInterceptor(logger)

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/TestMethod"}
	handler := func(ctx context.Context, req any) (any, error) {
		return "response", nil
	}

	resp, err := interceptor(context.Background(), "request", info, handler)

	require.NoError(t, err)
	assert.Equal(t, "response", resp)

	logs := logger.GetLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "grpc_request_started", logs[0].Message)
	assert.Equal(t, "grpc_request_completed", logs[1].Message)
	assert.Equal(t, "/test.Service/TestMethod", logs[1].Fields["method"])
}

func TestLoggingInterceptor_ErrorLevels(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		level string
	}{
		{"not found is a client error", status.Error(codes.NotFound, "session not found"), "warn"},
		{"invalid argument is a client error", status.Error(codes.InvalidArgument, "text is required"), "warn"},
		{"internal is a server error", status.Error(codes.Internal, "boom"), "error"},
		{"plain error maps to unknown", errors.New("plain"), "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := testutil.NewMockLogger()
			interceptor := LoggingInterceptor(logger)
			info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/FailMethod"}

			resp, err := interceptor(context.Background(), "request", info, func(ctx context.Context, req any) (any, error) {
				return nil, tt.err
			})

			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, logger.HasLog(tt.level, "grpc_request_failed"))
		})
	}
}

func TestLoggingInterceptor_RecordsCode(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := LoggingInterceptor(logger)
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/FailMethod"}

	_, _ = interceptor(context.Background(), "request", info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "resource not found")
	})

	logs := logger.GetLogs()
	require.Len(t, logs, 2)
	assert.Equal(t, "NotFound", logs[1].Fields["code"])
}

// =============================================================================
// METRICS INTERCEPTOR TESTS
// =============================================================================

func TestMetricsInterceptor_PassesThrough(t *testing.T) {
	interceptor := MetricsInterceptor()
	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Metered"}

	resp, err := interceptor(context.Background(), "request", info, func(ctx context.Context, req any) (any, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)

	_, err = interceptor(context.Background(), "request", info, func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "missing")
	})
	assert.Equal(t, codes.NotFound, status.Code(err))
}

// =============================================================================
// RECOVERY INTERCEPTOR TESTS
// =============================================================================

func TestRecoveryInterceptor_NoPanic(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := RecoveryInterceptor(logger, nil)

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/SafeMethod"}
	handler := func(ctx context.Context, req any) (any, error) {
		return "safe response", nil
	}

	resp, err := interceptor(context.Background(), "request", info, handler)

	require.NoError(t, err)
	assert.Equal(t, "safe response", resp)
	assert.Empty(t, logger.GetLogs())
}

func TestRecoveryInterceptor_Panic(t *testing.T) {
	logger := testutil.NewMockLogger()
	interceptor := RecoveryInterceptor(logger, nil)

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/PanicMethod"}
	handler := func(ctx context.Context, req any) (any, error) {
		panic("test panic")
	}

	resp, err := interceptor(context.Background(), "request", info, handler)

	require.Error(t, err)
	assert.Nil(t, resp)

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "test panic")

	logs := logger.GetLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "grpc_panic_recovered", logs[0].Message)
	assert.Equal(t, "test panic", logs[0].Fields["panic"])
}

func TestRecoveryInterceptor_CustomHandler(t *testing.T) {
	logger := testutil.NewMockLogger()
	customHandler := func(p any) error {
		return status.Errorf(codes.Aborted, "custom: %v", p)
	}
	interceptor := RecoveryInterceptor(logger, customHandler)

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/PanicMethod"}
	handler := func(ctx context.Context, req any) (any, error) {
		panic("custom panic")
	}

	_, err := interceptor(context.Background(), "request", info, handler)

	require.Error(t, err)
	st, _ := status.FromError(err)
	assert.Equal(t, codes.Aborted, st.Code())
	assert.Contains(t, st.Message(), "custom: custom panic")
}

func TestDefaultRecoveryHandler(t *testing.T) {
	err := DefaultRecoveryHandler("test panic value")

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.Internal, st.Code())
	assert.Contains(t, st.Message(), "test panic value")
}

// =============================================================================
// CHAIN INTERCEPTORS TESTS
// =============================================================================

func TestChainUnaryInterceptors(t *testing.T) {
	order := []string{}

	interceptor1 := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		order = append(order, "before1")
		resp, err := handler(ctx, req)
		order = append(order, "after1")
		return resp, err
	}

	interceptor2 := func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		order = append(order, "before2")
		resp, err := handler(ctx, req)
		order = append(order, "after2")
		return resp, err
	}

	chain := ChainUnaryInterceptors(interceptor1, interceptor2)

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/ChainMethod"}
	handler := func(ctx context.Context, req any) (any, error) {
		order = append(order, "handler")
		return "response", nil
	}

	resp, err := chain(context.Background(), "request", info, handler)

	require.NoError(t, err)
	assert.Equal(t, "response", resp)
	assert.Equal(t, []string{"before1", "before2", "handler", "after2", "after1"}, order)
}

func TestChainUnaryInterceptors_Empty(t *testing.T) {
	chain := ChainUnaryInterceptors()

	info := &grpc.UnaryServerInfo{FullMethod: "/test.Service/Method"}
	handler := func(ctx context.Context, req any) (any, error) {
		return "response", nil
	}

	resp, err := chain(context.Background(), "request", info, handler)

	require.NoError(t, err)
	assert.Equal(t, "response", resp)
}

func TestServerOptions(t *testing.T) {
	opts := ServerOptions(testutil.NewMockLogger())
	assert.Len(t, opts, 1)
}
