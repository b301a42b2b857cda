package auth

import (
	"fmt"

	"github.com/dkeye/Huddle/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

// JWTVerifier checks HMAC-signed user tokens issued by the auth service.
// The user id travels in the standard "sub" claim.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

func (v *JWTVerifier) Verify(tokenString string) (domain.UserID, error) {
	if tokenString == "" {
		return "", fmt.Errorf("empty token: %w", domain.ErrUnauthorized)
	}
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("token parse/validation error: %w: %w", domain.ErrUnauthorized, err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("token is invalid: %w", domain.ErrUnauthorized)
	}
	user := domain.UserID(claims.Subject)
	if user == "" || len(user) > domain.MaxUserIDLen {
		return "", fmt.Errorf("bad subject %q: %w", claims.Subject, domain.ErrUnauthorized)
	}
	return user, nil
}
