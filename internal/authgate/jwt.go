package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims содержит claim токена HS256.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// JWTVerifier выпускает и проверяет токены HS256 с общим секретом. Используется при локальном запуске.
type JWTVerifier struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

// NewJWTVerifier создаёт проверку токенов HS256.
func NewJWTVerifier(secret string, ttl time.Duration) (*JWTVerifier, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTVerifier{secretKey: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue выпускает токен для пользователя с указанной ролью.
func (v *JWTVerifier) Issue(uid, role string) (string, error) {
	now := v.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(v.ttl)),
		},
		Role: role,
	})
	s, err := token.SignedString(v.secretKey)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return s, nil
}

func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return v.secretKey, nil
		},
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		return Identity{}, errors.Join(ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	return identityFromClaims(claims.Subject, map[string]any{RoleClaim: claims.Role})
}
