package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"reviewflow/internal/domain/auth"
	"reviewflow/internal/transport/http/api"
)

// SessionValidator reports whether a login session is still live and the
// role its user holds now.
type SessionValidator interface {
	SessionRole(ctx context.Context, userID, sessionID string) (string, bool, error)
}

// Auth attaches the bearer token's user to the request context. Requests
// without a valid token pass through anonymous; RequireAuth rejects them.
// When sessions is non-nil, tokens whose session was revoked or whose user
// was deactivated are ignored, and the role comes from the directory rather
// than the token.
func Auth(secret string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			claims, err := auth.ParseToken(secret, token)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			role := claims.RoleName
			if sessions != nil {
				current, active, err := sessions.SessionRole(r.Context(), claims.UserID, claims.SessionID)
				if err != nil {
					slog.Warn("session lookup failed", "userId", claims.UserID, "err", err)
				}
				if !active {
					next.ServeHTTP(w, r)
					return
				}
				role = current
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, auth.UserContext{
				UserID:    claims.UserID,
				RoleName:  role,
				SessionID: claims.SessionID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := GetUser(r.Context()); !ok {
			api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", GetRequestID(r.Context()))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func GetUser(ctx context.Context) (auth.UserContext, bool) {
	user, ok := ctx.Value(ctxKeyUser).(auth.UserContext)
	return user, ok
}

// WithUser is used by handler tests to inject an authenticated caller.
func WithUser(ctx context.Context, user auth.UserContext) context.Context {
	return context.WithValue(ctx, ctxKeyUser, user)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
