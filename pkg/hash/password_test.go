package hash

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  error
	}{
		{name: "valid password", password: "SecurePass123!"},
		{name: "minimum length", password: strings.Repeat("a", MinPasswordLength)},
		{name: "one short", password: strings.Repeat("a", MinPasswordLength-1), wantErr: ErrPasswordTooShort},
		{name: "empty", password: "", wantErr: ErrPasswordTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hashed, err := Hash(tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Empty(t, hashed)
				return
			}

			require.NoError(t, err)
			assert.NotEqual(t, tt.password, hashed)
			assert.True(t, strings.HasPrefix(hashed, "$2a$12$"), "unexpected bcrypt prefix in %q", hashed)
		})
	}
}

func TestHashIsSalted(t *testing.T) {
	first, err := Hash("SamePassword123!")
	require.NoError(t, err)
	second, err := Hash("SamePassword123!")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestCompare(t *testing.T) {
	password := "MySecurePassword123!"
	hashed, err := Hash(password)
	require.NoError(t, err)

	tests := []struct {
		name    string
		hashed  string
		attempt string
		wantErr bool
	}{
		{name: "correct password", hashed: hashed, attempt: password},
		{name: "wrong password", hashed: hashed, attempt: "WrongPassword", wantErr: true},
		{name: "case sensitive", hashed: hashed, attempt: strings.ToUpper(password), wantErr: true},
		{name: "empty attempt", hashed: hashed, attempt: "", wantErr: true},
		{name: "no stored hash", hashed: "", attempt: password, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compare(tt.hashed, tt.attempt)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
