// Package authgate проверяет токены доступа и извлекает из них личность вызывающего.
package authgate

import (
	"context"
	"errors"
)

// RoleClaim задаёт имя пользовательского claim с ролью.
const RoleClaim = "role"

// ErrInvalidToken возвращается, если токен не прошёл проверку или не содержит обязательных полей.
var ErrInvalidToken = errors.New("invalid token")

// Identity описывает проверенную личность вызывающего.
type Identity struct {
	UID  string
	Role string
}

// TokenVerifier проверяет bearer-токен и возвращает личность вызывающего.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

func identityFromClaims(uid string, claims map[string]any) (Identity, error) {
	if uid == "" {
		return Identity{}, ErrInvalidToken
	}
	role, _ := claims[RoleClaim].(string)
	if role == "" {
		return Identity{}, errors.Join(ErrInvalidToken, errors.New("role claim is missing"))
	}
	return Identity{UID: uid, Role: role}, nil
}
