package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/cloo-solutions/draftgate/internal/api"
	"github.com/cloo-solutions/draftgate/internal/domain"
)

type contextKey string

const ClientIDKey contextKey = "client_id"

// TokenValidator resolves a bearer token to a client id
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (string, error)
}

// StaticTokens accepts a fixed set of tokens, keyed by token with the
// client id as value.
type StaticTokens map[string]string

func (s StaticTokens) ValidateToken(ctx context.Context, token string) (string, error) {
	for candidate, clientID := range s {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			return clientID, nil
		}
	}
	return "", domain.ErrInvalidAPIToken
}

func BearerAuth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				api.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				api.Error(w, http.StatusUnauthorized, "invalid authorization format")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")

			clientID, err := validator.ValidateToken(r.Context(), token)
			if err != nil {
				api.Error(w, http.StatusUnauthorized, "invalid api token")
				return
			}

			ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetClientID(ctx context.Context) string {
	clientID, _ := ctx.Value(ClientIDKey).(string)
	return clientID
}
