package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/orgadmin/backend/internal/contextkeys"
	"github.com/orgadmin/backend/internal/domain"
	"github.com/orgadmin/backend/internal/handler"
)

// TokenVerifier checks a bearer token.
type TokenVerifier interface {
	VerifyToken(token string) (*domain.JWTClaims, error)
}

// Auth requires a valid staff bearer token and stores its claims in the context.
func Auth(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				handler.Error(w, domain.ErrUnauthorized("missing or malformed authorization header"))
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				handler.Error(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), contextkeys.UserID, claims.Sub)
			ctx = context.WithValue(ctx, contextkeys.UserEmail, claims.Email)
			ctx = context.WithValue(ctx, contextkeys.UserRole, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
