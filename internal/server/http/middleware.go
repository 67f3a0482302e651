package httpserver

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/observability"
)

type contextKey string

const ctxKeyUser contextKey = "user"

// correlationIDMiddleware ensures every request has a correlation ID.
func correlationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-ID")
		if correlationID == "" {
			correlationID = middleware.GetReqID(r.Context())
		}
		if correlationID == "" {
			buf := make([]byte, 8)
			if _, err := rand.Read(buf); err != nil {
				// Fallback to timestamp-based ID if crypto/rand fails.
				correlationID = fmt.Sprintf("%x", time.Now().UnixNano())
			} else {
				correlationID = fmt.Sprintf("%x", buf)
			}
		}

		w.Header().Set("X-Correlation-ID", correlationID)
		ctx := observability.WithRequestContext(r.Context(), observability.RequestContext{
			RequestID: correlationID,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// jsonContentTypeMiddleware sets Content-Type: application/json for all responses.
func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// NewAuthMiddleware returns middleware that resolves the requesting user
// from an HMAC-signed bearer token. Identity comes from an external
// OAuth-backed provider; this service only verifies the resulting JWT.
// Requests with no token, an invalid token, or when verification is
// disabled (empty secret) run as the anonymous user rather than being
// rejected: the feed is readable without an account.
func NewAuthMiddleware(secret string, logger zerolog.Logger) func(http.Handler) http.Handler {
	log := logger.With().Str("component", "auth").Logger()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := domain.AnonymousUser()

			if secret != "" {
				if token := bearerToken(r); token != "" {
					parsed, err := userFromToken(token, secret)
					if err != nil {
						log.Debug().Err(err).Msg("bearer token rejected")
					} else {
						user = parsed
					}
				}
			}

			ctx := context.WithValue(r.Context(), ctxKeyUser, user)
			ctx = observability.WithUserID(ctx, user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from an Authorization: Bearer header.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// userFromToken verifies the token signature and maps its claims to a User.
func userFromToken(tokenString, secret string) (domain.User, error) {
	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return domain.User{}, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return domain.User{}, fmt.Errorf("token invalid")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return domain.User{}, fmt.Errorf("token has no subject")
	}

	user := domain.User{ID: sub}
	if email, ok := claims["email"].(string); ok {
		user.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		user.Name = name
	}
	return user, nil
}

// userFromContext extracts the authenticated user from the request context.
// Returns the anonymous user when no auth middleware ran.
func userFromContext(ctx context.Context) domain.User {
	if u, ok := ctx.Value(ctxKeyUser).(domain.User); ok {
		return u
	}
	return domain.AnonymousUser()
}
