package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/schoolfees/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SessionKey is the context key for storing the authenticated session.
const SessionKey contextKey = "session"

// WithSession returns a copy of ctx carrying session.
func WithSession(ctx context.Context, session auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, session)
}

// GetSession extracts the session from the context.
// Returns the zero Session (which fails Validate) if not found.
func GetSession(ctx context.Context) auth.Session {
	session, _ := ctx.Value(SessionKey).(auth.Session)
	return session
}

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	return GetSession(ctx).UserID
}

// bearerSession parses an Authorization header into a session.
func bearerSession(jwtManager *auth.JWTManager, header string) (auth.Session, error) {
	if header == "" {
		return auth.Session{}, auth.ErrMissingToken
	}

	// Parse Bearer token
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return auth.Session{}, auth.ErrInvalidToken
	}

	claims, err := jwtManager.Validate(parts[1])
	if err != nil {
		return auth.Session{}, err
	}
	session := claims.Session()
	if err := session.Validate(); err != nil {
		return auth.Session{}, errors.Join(auth.ErrInvalidToken, err)
	}
	return session, nil
}

// RequireAuth returns HTTP middleware that validates the bearer token and
// stores the resulting session in the request context. Requests without a
// valid token are rejected with 401.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, err := bearerSession(jwtManager, r.Header.Get("Authorization"))
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// RequireAuthInterceptor is RequireAuth for Connect handlers.
func RequireAuthInterceptor(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			session, err := bearerSession(jwtManager, req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(WithSession(ctx, session), req)
		}
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
