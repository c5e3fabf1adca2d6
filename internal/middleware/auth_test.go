package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"annonces-api/internal/model"
)

type stubValidator struct {
	claims map[string]*model.AuthClaims
}

func (s stubValidator) ValidateAccess(token string) (*model.AuthClaims, error) {
	claims, ok := s.claims[token]
	if !ok {
		return nil, model.ErrTokenInvalid
	}
	return claims, nil
}

func newStubAuth() *AuthMiddleware {
	return NewAuthMiddleware(stubValidator{claims: map[string]*model.AuthClaims{
		"user-token":  {UserID: "u1", Username: "alice", Role: model.RoleUser},
		"admin-token": {UserID: "a1", Username: "admin", Role: model.RoleAdmin},
	}})
}

func claimsEchoHandler(t *testing.T, wantUserID string) http.Handler {
	t.Helper()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		require.True(t, ok)
		assert.Equal(t, wantUserID, claims.UserID)
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuth(t *testing.T) {
	auth := newStubAuth()

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"bare scheme", "Bearer", http.StatusUnauthorized},
		{"unknown token", "Bearer forged-token", http.StatusUnauthorized},
		{"valid token", "Bearer user-token", http.StatusNoContent},
		{"case-insensitive scheme", "bearer user-token", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/annonces/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			rec := httptest.NewRecorder()
			auth.RequireAuth(claimsEchoHandler(t, "u1")).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	auth := newStubAuth()

	adminOnly := auth.RequireAuth(auth.RequireRoles(model.RoleAdmin)(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		})))

	t.Run("admin passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/annonces", nil)
		req.Header.Set("Authorization", "Bearer admin-token")

		rec := httptest.NewRecorder()
		adminOnly.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("user is forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/annonces", nil)
		req.Header.Set("Authorization", "Bearer user-token")

		rec := httptest.NewRecorder()
		adminOnly.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Body.String(), "FORBIDDEN")
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/annonces", nil)

		rec := httptest.NewRecorder()
		adminOnly.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRolesWithoutAuthContext(t *testing.T) {
	auth := newStubAuth()

	handler := auth.RequireRoles(model.RoleAdmin)(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

	req := httptest.NewRequest(http.MethodGet, "/api/admin/annonces", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
