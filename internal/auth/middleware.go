package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

type contextKey struct{}

var ownerKey contextKey

// OwnerID returns the authenticated owner id stored by Middleware, or ""
// when the request never passed through it.
func OwnerID(ctx context.Context) string {
	id, _ := ctx.Value(ownerKey).(string)
	return id
}

// Middleware validates the Bearer token issued by the identity provider and
// stores the userId claim as the owner id for downstream handlers. The
// application only ever consumes this opaque id; display metadata stays with
// the provider.
func Middleware(secret []byte, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				http.Error(w, "Authorization header missing", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer"))
			if tokenString == "" {
				http.Error(w, "Token missing", http.StatusUnauthorized)
				return
			}

			token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				logger.Debug("rejected token", zap.Error(err))
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				http.Error(w, "Invalid token claims", http.StatusUnauthorized)
				return
			}
			userID, ok := claims["userId"].(string)
			if !ok || userID == "" {
				http.Error(w, "Invalid token userId", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ownerKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
