package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "validation-secret-key-32-chars"

func TestGenerateTokenSubjects(t *testing.T) {
	access, err := GenerateToken("user-123", 15*time.Minute, testSecret)
	require.NoError(t, err)
	refresh, err := GenerateRefreshToken("user-123", 7*24*time.Hour, testSecret)
	require.NoError(t, err)
	assert.NotEqual(t, access, refresh)

	claims, err := ValidateToken(access, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "access", claims.Subject)

	claims, err = ValidateToken(refresh, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "refresh", claims.Subject)
}

func TestValidateTokenKind(t *testing.T) {
	access, err := GenerateToken("user-123", 15*time.Minute, testSecret)
	require.NoError(t, err)
	refresh, err := GenerateRefreshToken("user-123", 7*24*time.Hour, testSecret)
	require.NoError(t, err)

	_, err = ValidateAccessToken(access, testSecret)
	assert.NoError(t, err)
	_, err = ValidateAccessToken(refresh, testSecret)
	assert.Error(t, err)

	_, err = ValidateRefreshToken(refresh, testSecret)
	assert.NoError(t, err)
	_, err = ValidateRefreshToken(access, testSecret)
	assert.Error(t, err)
}

func TestValidateToken(t *testing.T) {
	validToken, _ := GenerateToken("test-user-id", time.Hour, testSecret)
	expiredToken, _ := GenerateToken("test-user-id", -time.Hour, testSecret)
	anonymousToken, _ := GenerateToken("", time.Hour, testSecret)

	hs512 := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		UserID: "test-user-id",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	hs512Token, err := hs512.SignedString([]byte(testSecret))
	require.NoError(t, err)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "test-user-id"})
	noneToken, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		secret  string
		wantErr bool
	}{
		{name: "valid token", token: validToken, secret: testSecret},
		{name: "expired token", token: expiredToken, secret: testSecret, wantErr: true},
		{name: "wrong secret", token: validToken, secret: "wrong-secret", wantErr: true},
		{name: "missing user id", token: anonymousToken, secret: testSecret, wantErr: true},
		{name: "other hmac algorithm", token: hs512Token, secret: testSecret, wantErr: true},
		{name: "unsigned token", token: noneToken, secret: testSecret, wantErr: true},
		{name: "garbage", token: "invalid.token.format", secret: testSecret, wantErr: true},
		{name: "empty token", token: "", secret: testSecret, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ValidateToken(tt.token, tt.secret)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "test-user-id", claims.UserID)
		})
	}
}

func TestClaimsTimestamps(t *testing.T) {
	expiration := time.Hour

	before := time.Now().Add(-time.Second)
	token, err := GenerateToken("timestamp-test-user", expiration, testSecret)
	require.NoError(t, err)
	after := time.Now().Add(time.Second)

	claims, err := ValidateToken(token, testSecret)
	require.NoError(t, err)

	assert.WithinRange(t, claims.IssuedAt.Time, before, after)
	assert.WithinRange(t, claims.NotBefore.Time, before, after)
	assert.WithinRange(t, claims.ExpiresAt.Time, before.Add(expiration), after.Add(expiration))
}

func BenchmarkValidateToken(b *testing.B) {
	token, _ := GenerateToken("benchmark-user", 15*time.Minute, testSecret)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateToken(token, testSecret); err != nil {
			b.Fatalf("ValidateToken() error = %v", err)
		}
	}
}
