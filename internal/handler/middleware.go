package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/finbook/finbook/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey string

const scopeKey contextKey = "callerScope"

// scopeClaims are the token claims finbook reads. Token issuance lives
// outside this service; we only validate.
type scopeClaims struct {
	OrganizationID string `json:"org_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthMiddleware validates Bearer tokens and injects the caller scope into
// context. Subject is the user id; an optional org_id claim puts the caller
// in organization context.
func JWTAuthMiddleware(secret string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("auth: missing token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				logger.Warn("auth: invalid token format",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
				)
				writeError(w, http.StatusUnauthorized, "invalid token format")
				return
			}

			claims := &scopeClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || claims.Subject == "" {
				logger.Warn("auth: invalid or expired token",
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Error(err),
				)
				writeError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			scope := domain.CallerScope{
				UserID:         claims.Subject,
				OrganizationID: claims.OrganizationID,
			}
			ctx := context.WithValue(r.Context(), scopeKey, scope)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ScopeFromContext extracts the authenticated caller scope from context.
func ScopeFromContext(ctx context.Context) domain.CallerScope {
	v, _ := ctx.Value(scopeKey).(domain.CallerScope)
	return v
}
