package auth

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier validates bearer tokens issued by the auth service. Token
// issuance happens elsewhere; this side only verifies signature and expiry
// and extracts the user id.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier constructs a TokenVerifier.
func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify checks the token and returns the authenticated user id.
func (v *TokenVerifier) Verify(token string) (int64, error) {
	if token == "" {
		return 0, ErrInvalidToken
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}

	switch sub := claims["sub"].(type) {
	case string:
		userID, err := strconv.ParseInt(sub, 10, 64)
		if err != nil || userID == 0 {
			return 0, ErrInvalidToken
		}
		return userID, nil
	case float64:
		if sub == 0 {
			return 0, ErrInvalidToken
		}
		return int64(sub), nil
	default:
		return 0, ErrInvalidToken
	}
}
