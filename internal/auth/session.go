package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Session tokens are stateless: once issued, a token stays valid until its
// expiry even if the cookie carrying it is overwritten on logout or OTP
// toggle. There is no server-side revocation list.

// SessionClaims are the claims carried by a signed session token. Subject
// is the user id.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// IssueSessionToken signs a time-limited session token for the user id.
func IssueSessionToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ParseSessionToken validates a session token and returns the user id it
// was issued for. Expired, tampered or malformed tokens all fail.
func ParseSessionToken(tokenStr string, secret []byte) (string, error) {
	claims := &SessionClaims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
