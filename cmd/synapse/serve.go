package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeeves-cluster-organization/synapse/coreengine/grpc"
	"github.com/jeeves-cluster-organization/synapse/coreengine/observability"
	"github.com/jeeves-cluster-organization/synapse/coreengine/session"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

type serveOptions struct {
	addr             string
	metricsAddr      string
	otlpEndpoint     string
	turnsPerMinute   int
	turnsPerHour     int
	sessionRetention time.Duration
}

func serveCmd(opts *globalOptions) *cobra.Command {
	var sopts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve ConversationService over gRPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, sopts)
		},
	}
	cmd.Flags().StringVar(&sopts.addr, "addr", ":50051", "gRPC listen address")
	cmd.Flags().StringVar(&sopts.metricsAddr, "metrics-addr", ":9090", "Prometheus /metrics address (empty disables)")
	cmd.Flags().StringVar(&sopts.otlpEndpoint, "otlp-endpoint", "", "OTLP/gRPC trace collector (empty disables tracing)")
	limits := grpc.DefaultRateLimitConfig()
	cmd.Flags().IntVar(&sopts.turnsPerMinute, "turns-per-minute", limits.TurnsPerMinute, "Per-session turn limit per minute (0 disables)")
	cmd.Flags().IntVar(&sopts.turnsPerHour, "turns-per-hour", limits.TurnsPerHour, "Per-session turn limit per hour (0 disables)")
	cmd.Flags().DurationVar(&sopts.sessionRetention, "session-retention", session.DefaultCleanupConfig().Retention, "Idle time before a session is dropped")
	return cmd
}

func runServe(ctx context.Context, opts *globalOptions, sopts serveOptions) error {
	a, err := buildApp(ctx, opts)
	if err != nil {
		return err
	}
	logger := a.logger
	logger.Info("synapse_starting", "version", Version, "address", sopts.addr, "pipeline", a.registry.Name)
	for _, w := range a.orch.Warnings() {
		logger.Warn("startup_warning", "message", w)
	}

	if sopts.otlpEndpoint != "" {
		shutdown, err := observability.InitTracer(ctx, appName, sopts.otlpEndpoint, Version)
		if err != nil {
			return err
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("tracer_shutdown_failed", "error", err.Error())
			}
		}()
		logger.Info("tracing_enabled", "endpoint", sopts.otlpEndpoint)
	}

	if sopts.metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: sopts.metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics_server_error", "error", err.Error())
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(sctx)
		}()
		logger.Info("metrics_server_started", "address", sopts.metricsAddr)
	}

	stopCleanup := session.StartCleanupLoop(a.service.Store(), session.CleanupConfig{
		Interval:  session.DefaultCleanupConfig().Interval,
		Retention: sopts.sessionRetention,
	}, logger)
	defer stopCleanup()

	var limiter *grpc.RateLimiter
	if sopts.turnsPerMinute > 0 || sopts.turnsPerHour > 0 {
		limiter = grpc.NewRateLimiter(grpc.RateLimitConfig{
			TurnsPerMinute: sopts.turnsPerMinute,
			TurnsPerHour:   sopts.turnsPerHour,
		})
	}

	conv := grpc.NewConversationServer(a.service, logger)
	server := grpc.NewGracefulServer(conv, sopts.addr, limiter)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("grpc server: %w", err)
	}
	logger.Info("synapse_stopped")
	return nil
}
