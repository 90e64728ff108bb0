package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"taskflow-sync-server/pkg/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	secret := "middleware-secret"
	valid, err := jwt.GenerateToken("alice", time.Hour, secret)
	require.NoError(t, err)
	expired, err := jwt.GenerateToken("alice", -time.Hour, secret)
	require.NoError(t, err)
	refresh, err := jwt.GenerateRefreshToken("alice", 7*24*time.Hour, secret)
	require.NoError(t, err)

	var seen string
	handler := AuthMiddleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r)
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{name: "valid token", header: "Bearer " + valid, wantStatus: http.StatusNoContent, wantUser: "alice"},
		{name: "lowercase scheme", header: "bearer " + valid, wantStatus: http.StatusNoContent, wantUser: "alice"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized},
		{name: "expired token", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "refresh token as bearer", header: "Bearer " + refresh, wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, seen)
		})
	}
}
