package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scholarstream/paper-feed-service/internal/domain"
	"github.com/scholarstream/paper-feed-service/internal/observability"
)

const testJWTSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

// captureUser runs the auth middleware over a handler that records the
// resolved user.
func captureUser(t *testing.T, secret, authHeader string) domain.User {
	t.Helper()

	var user domain.User
	handler := NewAuthMiddleware(secret, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user = userFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return user
}

func TestAuthMiddleware(t *testing.T) {
	t.Run("no token runs anonymous", func(t *testing.T) {
		user := captureUser(t, testJWTSecret, "")
		assert.True(t, user.IsAnonymous())
	})

	t.Run("valid token resolves user", func(t *testing.T) {
		token := signToken(t, testJWTSecret, jwt.MapClaims{
			"sub":   "user-42",
			"email": "jamie@example.org",
			"name":  "Jamie",
			"exp":   time.Now().Add(time.Hour).Unix(),
		})

		user := captureUser(t, testJWTSecret, "Bearer "+token)
		assert.Equal(t, "user-42", user.ID)
		assert.Equal(t, "jamie@example.org", user.Email)
		assert.Equal(t, "Jamie", user.Name)
		assert.False(t, user.IsAnonymous())
	})

	t.Run("wrong signature runs anonymous", func(t *testing.T) {
		token := signToken(t, "other-secret", jwt.MapClaims{"sub": "user-42"})

		user := captureUser(t, testJWTSecret, "Bearer "+token)
		assert.True(t, user.IsAnonymous())
	})

	t.Run("expired token runs anonymous", func(t *testing.T) {
		token := signToken(t, testJWTSecret, jwt.MapClaims{
			"sub": "user-42",
			"exp": time.Now().Add(-time.Hour).Unix(),
		})

		user := captureUser(t, testJWTSecret, "Bearer "+token)
		assert.True(t, user.IsAnonymous())
	})

	t.Run("token without subject runs anonymous", func(t *testing.T) {
		token := signToken(t, testJWTSecret, jwt.MapClaims{"email": "jamie@example.org"})

		user := captureUser(t, testJWTSecret, "Bearer "+token)
		assert.True(t, user.IsAnonymous())
	})

	t.Run("empty secret disables verification", func(t *testing.T) {
		token := signToken(t, testJWTSecret, jwt.MapClaims{"sub": "user-42"})

		user := captureUser(t, "", "Bearer "+token)
		assert.True(t, user.IsAnonymous())
	})

	t.Run("malformed header runs anonymous", func(t *testing.T) {
		user := captureUser(t, testJWTSecret, "Basic dXNlcjpwYXNz")
		assert.True(t, user.IsAnonymous())
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name     string
		header   string
		expected string
	}{
		{"standard bearer", "Bearer abc.def.ghi", "abc.def.ghi"},
		{"case insensitive scheme", "bearer abc", "abc"},
		{"trims whitespace", "Bearer   abc  ", "abc"},
		{"empty header", "", ""},
		{"wrong scheme", "Basic abc", ""},
		{"scheme only", "Bearer ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			assert.Equal(t, tt.expected, bearerToken(req))
		})
	}
}

func TestMiddleware_RequestIdentityOnContext(t *testing.T) {
	var rc observability.RequestContext
	handler := correlationIDMiddleware(NewAuthMiddleware(testJWTSecret, zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc = observability.RequestContextFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})))

	token := signToken(t, testJWTSecret, jwt.MapClaims{
		"sub": "user-42",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "corr-1")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "corr-1", rc.RequestID)
	assert.Equal(t, "user-42", rc.UserID)
	assert.Equal(t, "corr-1", rec.Header().Get("X-Correlation-ID"))
}

func TestUserFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	user := userFromContext(req.Context())
	assert.Equal(t, domain.AnonymousUserID, user.ID)
}
