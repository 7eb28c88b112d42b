package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gosuda/boardsync/internal/auth"
)

// ServiceUserID identifies requests authenticated with the admin API key.
const ServiceUserID = "service"

// TokenIdentifier resolves a bearer token to a user id and role.
// *auth.Validator satisfies this interface.
type TokenIdentifier interface {
	Identify(ctx context.Context, token string) (string, string, error)
}

// Auth accepts either a bearer token or the admin API key in X-API-Key.
// An empty apiKeyHash disables API key authentication.
func Auth(tokens TokenIdentifier, apiKeyHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Try Bearer token first.
			if tok := extractBearer(r); tok != "" {
				ctx, ok := authenticateToken(r.Context(), tok, tokens)
				if ok {
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			// Try API key.
			if key := r.Header.Get("X-API-Key"); key != "" && apiKeyHash != "" {
				if auth.VerifyAPIKey(key, apiKeyHash) {
					ctx := context.WithValue(r.Context(), ContextKeyUserID, ServiceUserID)
					ctx = context.WithValue(ctx, ContextKeyUserRole, RoleAdmin)
					next.ServeHTTP(w, r.WithContext(ctx))
					return
				}
			}

			http.Error(w, `{"title":"Unauthorized","status":401,"detail":"missing or invalid credentials"}`, http.StatusUnauthorized)
		})
	}
}

func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return header[7:]
	}
	return ""
}

func authenticateToken(ctx context.Context, token string, tokens TokenIdentifier) (context.Context, bool) {
	if tokens == nil {
		return ctx, false
	}

	userID, role, err := tokens.Identify(ctx, token)
	if err != nil {
		return ctx, false
	}

	if role == "" {
		role = RoleMember
	}

	ctx = context.WithValue(ctx, ContextKeyUserID, userID)
	ctx = context.WithValue(ctx, ContextKeyUserRole, role)
	return ctx, true
}
