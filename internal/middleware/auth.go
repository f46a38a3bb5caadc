package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/PaulBabatuyi/WeddingHub/internal/auth"
)

type sessionKey struct{}

// SessionSource resolves bearer tokens to sessions.
type SessionSource interface {
	Current(token string) (auth.Session, error)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireSession rejects requests without a live session and stores the
// session in the request context.
func RequireSession(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "missing bearer token")
				return
			}
			sess, err := sessions.Current(token)
			if err != nil {
				unauthorized(w, "invalid or expired session")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// OptionalSession attaches a session when a valid token is present and
// lets anonymous requests through.
func OptionalSession(sessions SessionSource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := BearerToken(r); token != "" {
				if sess, err := sessions.Current(token); err == nil {
					r = r.WithContext(WithSession(r.Context(), sess))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func WithSession(ctx context.Context, sess auth.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the session set by RequireSession or
// OptionalSession.
func SessionFromContext(ctx context.Context) (auth.Session, bool) {
	sess, ok := ctx.Value(sessionKey{}).(auth.Session)
	return sess, ok
}

// ExtractUserID gets the owner id of the authenticated caller
func ExtractUserID(ctx context.Context) (string, error) {
	sess, ok := SessionFromContext(ctx)
	if !ok || strings.TrimSpace(sess.UserID) == "" {
		return "", auth.ErrNoSession
	}
	return sess.UserID, nil
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="weddinghub"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
