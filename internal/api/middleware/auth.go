package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/ponto-labs/pontual/internal/api/auth"
	"github.com/ponto-labs/pontual/internal/api/respond"
)

// Context keys for request-scoped values.
type contextKey string

// JWTAuth returns middleware that validates JWT tokens.
func JWTAuth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respond.JSONError(w, respond.ErrInvalidToken)
				return
			}

			// Parse Bearer token
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				respond.JSONError(w, respond.ErrInvalidToken)
				return
			}

			claims, err := jwtService.ValidateToken(parts[1])
			if err != nil {
				log.Printf("JWT auth failed for %s: %v", r.RemoteAddr, err)
				respond.JSONError(w, respond.ErrInvalidToken)
				return
			}

			ctx := auth.ContextWithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserID returns the authenticated user ID from context.
func GetUserID(ctx context.Context) string {
	return auth.UserIDFromContext(ctx)
}

// GetEmail returns the authenticated user's email from context.
func GetEmail(ctx context.Context) string {
	return auth.EmailFromContext(ctx)
}
