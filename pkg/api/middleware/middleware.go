package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	authproviders "github.com/cbodonnell/arcade/pkg/auth/providers"
	"github.com/cbodonnell/arcade/pkg/log"
)

type ContextKey int

const (
	// UserContextKey is the key used to store the user id in the request context
	UserContextKey ContextKey = iota
)

// SessionHeader carries the browser session of a request.
const SessionHeader = "X-Arcade-Session"

var errMissingToken = errors.New("authorization header is missing")

type NewAuthMiddlewareOptions struct {
	// AuthProvider verifies bearer tokens. Without one every request is anonymous.
	AuthProvider authproviders.AuthProvider
	// Required rejects requests without a token.
	Required bool
	// AnonymousUser is the user id of requests without a token.
	AnonymousUser string
}

func NewAuthMiddleware(opts NewAuthMiddlewareOptions) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid := opts.AnonymousUser

			bearerToken, err := parseBearerToken(r)
			switch {
			case errors.Is(err, errMissingToken) && !opts.Required:
			case err != nil:
				log.Error("failed to parse bearer token: %v", err)
				http.Error(w, "failed to parse bearer token", http.StatusUnauthorized)
				return
			case opts.AuthProvider == nil:
				log.Warn("Ignoring bearer token, no auth provider is configured")
			default:
				token, err := opts.AuthProvider.VerifyToken(r.Context(), bearerToken)
				if err != nil {
					log.Error("failed to verify ID token: %v", err)
					http.Error(w, "failed to verify ID token", http.StatusUnauthorized)
					return
				}
				uid = token.UID
			}

			ctx := context.WithValue(r.Context(), UserContextKey, uid)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user id stored by the auth middleware.
func UserFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(UserContextKey).(string)
	return uid, ok
}

// parseBearerToken parses the bearer token from the Authorization header.
// Browsers cannot set headers on websocket upgrades, so a token query
// parameter is accepted as well.
func parseBearerToken(r *http.Request) (string, error) {
	// Get the Authorization header value
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if token := r.URL.Query().Get("token"); token != "" {
			return token, nil
		}
		return "", errMissingToken
	}

	// Check if the Authorization header has the Bearer scheme
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	// Return the token part
	return parts[1], nil
}

// NewCORSMiddleware allows browser pages on any origin to call the API and
// answers preflight requests.
func NewCORSMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, "+SessionHeader)
			w.Header().Set("Access-Control-Expose-Headers", SessionHeader)
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
