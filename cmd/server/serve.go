package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/PaulBabatuyi/WeddingHub/internal/config"
	"github.com/PaulBabatuyi/WeddingHub/internal/database"
	"github.com/PaulBabatuyi/WeddingHub/internal/media"
	"github.com/PaulBabatuyi/WeddingHub/internal/middleware"
	"github.com/PaulBabatuyi/WeddingHub/internal/observability"
	"github.com/PaulBabatuyi/WeddingHub/internal/service"
	"github.com/PaulBabatuyi/WeddingHub/internal/storage"
	"github.com/PaulBabatuyi/WeddingHub/internal/submission"
	"github.com/PaulBabatuyi/WeddingHub/internal/worker"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, gRPC health endpoint and metrics server",
		Example: `  # Start with defaults (sqlite in ./data)
  weddinghub serve

  # Use Postgres
  WEDDINGHUB_DATABASE_DRIVER=postgres WEDDINGHUB_DATABASE_URL=postgres://... weddinghub serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := observability.InitLogger(cfg.Log.Dev)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()

			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics, err := observability.InitMetrics()
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	tp, err := observability.InitTracerProvider(ctx, cfg.Tracing.Enabled, logger)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		observability.ShutdownTracerProvider(shutdownCtx, tp, logger)
	}()

	store, err := database.Open(ctx, database.Config{
		Driver:        cfg.Database.Driver,
		URL:           cfg.Database.URL,
		EtcdEndpoints: cfg.Database.EtcdEndpoints,
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	objects, err := storage.NewFilesystemStorage(cfg.Storage.Path)
	if err != nil {
		return err
	}

	janitorCfg := &worker.JanitorConfig{
		Objects:      objects,
		Metrics:      metrics,
		Logger:       logger.Named("janitor"),
		PollInterval: cfg.Janitor.PollInterval,
		MaxAttempts:  cfg.Janitor.MaxAttempts,
		DraftIdleTTL: cfg.Janitor.DraftIdleTTL,
	}
	janitor := worker.NewJanitor(janitorCfg)

	policy := media.DefaultPolicy()
	policy.MaxBytes = cfg.Media.MaxBytes
	policy.VerifyContent = cfg.Media.VerifyContent
	var prober media.Prober
	if cfg.Media.FFProbe != "" {
		prober = &media.FFProbe{Binary: cfg.Media.FFProbe}
	}

	orchestrator := submission.New(objects, store,
		submission.Config{
			StageTimeout:        cfg.Submission.StageTimeout,
			MaxAttempts:         cfg.Submission.MaxAttempts,
			RetryBaseDelay:      cfg.Submission.RetryBaseDelay,
			CompensationTimeout: cfg.Submission.CompensationTimeout,
			MaxInFlight:         cfg.Submission.MaxInFlight,
		},
		submission.WithNormalizer(media.NewNormalizer(cfg.Media.ThumbnailMaxWidth)),
		submission.WithJanitor(janitor),
		submission.WithMetrics(metrics),
		submission.WithTracer(tp.Tracer("weddinghub/submission")),
		submission.WithLogger(logger.Named("submission")),
	)

	api, err := service.New(service.Deps{
		Videos:     store,
		Objects:    objects,
		Accounts:   auth.NewProvider(store, auth.Config{SessionTTL: cfg.Auth.SessionTTL, MaxSessions: cfg.Auth.MaxSessions}, logger),
		Submitter:  orchestrator,
		Validator:  media.NewValidator(policy),
		Prober:     prober,
		Orphans:    janitor,
		Logger:     logger,
		StagingDir: cfg.Storage.StagingPath,
	})
	if err != nil {
		return err
	}
	defer api.Drafts().Close()

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	grpcServer, healthServer := newHealthServer(logger, metrics, tp)
	metricsServer := observability.NewMetricsServer(cfg.Server.MetricsAddr, metrics, logger)

	// drafts exist only once the API is built
	janitorCfg.Drafts = api.Drafts()
	janitor.Start(ctx)
	defer janitor.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http api listening", zap.String("addr", cfg.Server.HTTPAddr))
		return ignoreClosed(httpServer.ListenAndServe())
	})
	g.Go(func() error {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		logger.Info("grpc health listening", zap.String("addr", cfg.Server.GRPCAddr))
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		logger.Info("metrics listening", zap.String("addr", cfg.Server.MetricsAddr))
		return ignoreClosed(metricsServer.ListenAndServe())
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		healthServer.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		err := errors.Join(
			httpServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
		grpcServer.GracefulStop()
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}

// newHealthServer builds the gRPC server that reports readiness to
// orchestrators. It carries the same logging, metrics and tracing
// instrumentation as any other RPC surface.
func newHealthServer(logger *zap.Logger, metrics *observability.Metrics, tp *sdktrace.TracerProvider) (*grpc.Server, *health.Server) {
	serverMetrics := metrics.GetServerMetrics()
	grpcLogger := logger.Named("grpc")

	srv := grpc.NewServer(
		observability.GRPCStatsHandler(tp),
		grpc.ChainUnaryInterceptor(
			middleware.UnaryLoggingInterceptor(grpcLogger),
			serverMetrics.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			middleware.StreamLoggingInterceptor(grpcLogger),
			serverMetrics.StreamServerInterceptor(),
		),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)
	serverMetrics.InitializeMetrics(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("weddinghub", healthpb.HealthCheckResponse_SERVING)
	return srv, hs
}

func ignoreClosed(err error) error {
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
