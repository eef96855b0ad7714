package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/taobei/auth/internal/service"
)

type contextKey string

const claimsKey contextKey = "claims"

type AuthMiddleware struct {
	tokens *service.TokenService
	logger *logrus.Logger
}

func NewAuthMiddleware(tokens *service.TokenService, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := m.tokens.Verify(parts[1])
		if err != nil {
			m.logger.WithError(err).Debug("Token verification failed")
			writeError(w, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the session claims stored by RequireAuth.
func ClaimsFromContext(ctx context.Context) (*service.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(*service.SessionClaims)
	return claims, ok
}
