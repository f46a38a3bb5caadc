package middleware

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// rpcLevel keeps health probes out of info logs.
func rpcLevel(method string, err error) zapcore.Level {
	switch {
	case err != nil:
		return zapcore.ErrorLevel
	case strings.HasPrefix(method, "/grpc.health.v1.Health/"):
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

func incomingRequestID(ctx context.Context) string {
	md, _ := metadata.FromIncomingContext(ctx)
	if ids := md.Get("x-request-id"); len(ids) > 0 {
		return ids[0]
	}
	return ""
}

// UnaryLoggingInterceptor logs unary RPC calls with timing and errors
func UnaryLoggingInterceptor(logger *zap.Logger) grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		// Extract error details
		code := codes.OK
		if err != nil {
			code = status.Code(err)
		}

		logger.Check(rpcLevel(info.FullMethod, err), "unary RPC").Write(
			zap.String("method", info.FullMethod),
			zap.String("request_id", incomingRequestID(ctx)),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", code.String()),
			zap.Error(err),
		)

		return resp, err
	}
}

// StreamLoggingInterceptor logs streaming RPC calls with timing and errors
func StreamLoggingInterceptor(logger *zap.Logger) grpc.StreamServerInterceptor {
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		requestID := incomingRequestID(ss.Context())

		// health Watch streams stay open for the client's lifetime
		logger.Check(rpcLevel(info.FullMethod, nil), "stream RPC started").Write(
			zap.String("method", info.FullMethod),
			zap.String("request_id", requestID),
		)

		err := handler(srv, ss)

		code := codes.OK
		if err != nil {
			code = status.Code(err)
		}

		logger.Check(rpcLevel(info.FullMethod, err), "stream RPC").Write(
			zap.String("method", info.FullMethod),
			zap.String("request_id", requestID),
			zap.Duration("duration", time.Since(start)),
			zap.String("code", code.String()),
			zap.Error(err),
		)

		return err
	}
}
