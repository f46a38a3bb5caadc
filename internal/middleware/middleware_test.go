package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type fakeSessions map[string]auth.Session

func (f fakeSessions) Current(token string) (auth.Session, error) {
	s, ok := f[token]
	if !ok {
		return auth.Session{}, auth.ErrNoSession
	}
	return s, nil
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	id, err := ExtractUserID(r.Context())
	if err != nil {
		w.Write([]byte("anonymous"))
		return
	}
	w.Write([]byte(id))
}

func TestRequireSession(t *testing.T) {
	sessions := fakeSessions{"tok": {Token: "tok", UserID: "u1", ExpiresAt: time.Now().Add(time.Hour)}}
	h := RequireSession(sessions)(http.HandlerFunc(echoUser))

	tests := []struct {
		name   string
		header string
		code   int
		body   string
	}{
		{"valid", "Bearer tok", http.StatusOK, "u1"},
		{"lowercase scheme", "bearer tok", http.StatusOK, "u1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"unknown token", "Bearer nope", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic tok", http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.code, rec.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rec.Body.String())
			}
		})
	}
}

func TestOptionalSession(t *testing.T) {
	sessions := fakeSessions{"tok": {Token: "tok", UserID: "u1"}}
	h := OptionalSession(sessions)(http.HandlerFunc(echoUser))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "anonymous", rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "u1", rec.Body.String())
}

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	h := Chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		order = append(order, "handler")
	}), mw("a"), mw("b"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, []string{"a", "b", "handler"}, order)
}

func TestRequestIDAndLogging(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}), RequestID, Logging(zap.New(core)))

	req := httptest.NewRequest(http.MethodGet, "/api/videos/x", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "req-1", rec.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.WarnLevel, entry.Level)
	assert.Equal(t, "req-1", entry.ContextMap()["request_id"])
	assert.EqualValues(t, http.StatusNotFound, entry.ContextMap()["status"])
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRecover(t *testing.T) {
	h := Recover(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestUnaryLoggingInterceptor(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	interceptor := UnaryLoggingInterceptor(zap.New(core))

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "abc"))
	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{FullMethod: "/svc/Method"},
		func(ctx context.Context, req any) (any, error) {
			return nil, status.Error(codes.Unavailable, "down")
		})
	require.Error(t, err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, zapcore.ErrorLevel, entry.Level)
	assert.Equal(t, "abc", entry.ContextMap()["request_id"])
	assert.Equal(t, "Unavailable", entry.ContextMap()["code"])

	// health probes log below info
	_, err = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"},
		func(ctx context.Context, req any) (any, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, 1, logs.Len())
}

func TestExtractUserIDWithoutSession(t *testing.T) {
	_, err := ExtractUserID(context.Background())
	assert.True(t, errors.Is(err, auth.ErrNoSession))
}
