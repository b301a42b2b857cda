package auth

import (
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, method jwt.SigningMethod, key any, claims jwt.RegisteredClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestJWTVerifier_Verify(t *testing.T) {
	secret := "test-secret"
	v := NewJWTVerifier(secret)
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	testCases := []struct {
		name    string
		token   string
		want    domain.UserID
		wantErr bool
	}{
		{"valid token", sign(t, jwt.SigningMethodHS256, []byte(secret), valid), "user-1", false},
		{"wrong secret", sign(t, jwt.SigningMethodHS256, []byte("other"), valid), "", true},
		{"expired", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}), "", true},
		{"no subject", sign(t, jwt.SigningMethodHS256, []byte(secret), jwt.RegisteredClaims{}), "", true},
		{"alg none", sign(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, valid), "", true},
		{"empty", "", "", true},
		{"garbage", "not-a-token", "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Verify(tc.token)
			if tc.wantErr {
				require.ErrorIs(t, err, domain.ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}
