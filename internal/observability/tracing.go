package observability

import (
	"context"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// InitTracerProvider initializes OpenTelemetry tracing. With export disabled
// spans are still created but never leave the process.
func InitTracerProvider(ctx context.Context, export bool, logger *zap.Logger) (*trace.TracerProvider, error) {
	res := resource.NewSchemaless(attribute.String("service.name", "weddinghub"))
	if !export {
		return trace.NewTracerProvider(trace.WithResource(res)), nil
	}

	// stdout exporter for development; swap for an OTLP exporter in production
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		logger.Error("failed to create trace exporter", zap.Error(err))
		return nil, err
	}

	tp := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	logger.Info("tracing enabled", zap.String("exporter", "stdout"))
	return tp, nil
}

// ShutdownTracerProvider flushes and stops the tracer provider
func ShutdownTracerProvider(ctx context.Context, tp *trace.TracerProvider, logger *zap.Logger) {
	if err := tp.ForceFlush(ctx); err != nil {
		logger.Error("failed to flush traces", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown tracer provider", zap.Error(err))
	}
}

// GRPCStatsHandler returns the server option instrumenting gRPC calls with
// spans from tp.
func GRPCStatsHandler(tp *trace.TracerProvider) grpc.ServerOption {
	return grpc.StatsHandler(otelgrpc.NewServerHandler(otelgrpc.WithTracerProvider(tp)))
}
