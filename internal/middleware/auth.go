// Package middleware содержит HTTP middleware сервиса банка отходов.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/mmeshcher/wastebank/internal/authgate"
	"github.com/mmeshcher/wastebank/internal/model"
)

type contextKey string

const actorKey contextKey = "actor"

// AuthMiddleware проверяет bearer-токен и кладёт вызывающего в контекст запроса.
type AuthMiddleware struct {
	verifier authgate.TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware создаёт AuthMiddleware с указанной проверкой токенов.
func NewAuthMiddleware(verifier authgate.TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// Middleware отвечает 401 без валидного токена и 403 для неизвестной роли.
func (a *AuthMiddleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		id, err := a.verifier.Verify(r.Context(), token)
		if err != nil {
			a.logger.Debug("token rejected", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		actor, err := model.NewActor(model.Role(id.Role), id.UID)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RequireRole пропускает только вызывающих с одной из указанных ролей.
func RequireRole(roles ...model.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			for _, role := range roles {
				if actor.Role() == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// WithActor возвращает контекст с вызывающим.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext извлекает вызывающего из контекста запроса.
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok
}
