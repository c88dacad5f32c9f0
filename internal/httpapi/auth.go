package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"fitsync-api-go/internal/config"
)

type contextKey string

const userIDContextKey contextKey = "user_id"

// AuthMiddleware guards the user-facing routes with an HS256 bearer token and
// stashes the token subject (the local user id) on the request context. The
// webhook route is not behind this; its gate is the payload signature.
func AuthMiddleware(cfg config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Env == "local" && strings.TrimSpace(r.Header.Get("Authorization")) == "Bearer dev" {
				next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), "local-dev")))
				return
			}

			token, err := parseBearer(r.Header.Get("Authorization"))
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			claims := &jwt.RegisteredClaims{}
			parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
				if t.Method != jwt.SigningMethodHS256 {
					return nil, errors.New("unexpected signing method")
				}
				return []byte(cfg.JwtSecret), nil
			})
			if err != nil || parsed == nil || !parsed.Valid {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			if err := validateClaims(claims, cfg); err != nil {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), claims.Subject)))
		})
	}
}

func withUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

// UserIDFromContext returns the authenticated local user id, empty when the
// request did not pass through AuthMiddleware.
func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDContextKey).(string)
	return userID
}

func parseBearer(value string) (string, error) {
	if value == "" {
		return "", errors.New("missing auth")
	}
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid auth")
	}
	if parts[1] == "" {
		return "", errors.New("missing token")
	}
	return parts[1], nil
}

func validateClaims(claims *jwt.RegisteredClaims, cfg config.Config) error {
	if claims == nil {
		return errors.New("missing claims")
	}
	if claims.Subject == "" {
		return errors.New("missing subject")
	}
	if claims.Issuer != cfg.JwtIssuer {
		return errors.New("invalid issuer")
	}
	for _, aud := range claims.Audience {
		if aud == cfg.JwtAudience {
			return nil
		}
	}
	return errors.New("invalid audience")
}
