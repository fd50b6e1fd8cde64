package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmeshcher/wastebank/internal/authgate"
	"github.com/mmeshcher/wastebank/internal/model"
)

type stubVerifier struct {
	id  authgate.Identity
	err error
}

func (s *stubVerifier) Verify(_ context.Context, _ string) (authgate.Identity, error) {
	return s.id, s.err
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		header    string
		verifier  *stubVerifier
		wantCode  int
		wantActor model.Actor
	}{
		{
			name:     "missing header",
			verifier: &stubVerifier{id: authgate.Identity{UID: "u1", Role: "user"}},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "wrong scheme",
			header:   "Token abc",
			verifier: &stubVerifier{id: authgate.Identity{UID: "u1", Role: "user"}},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "empty bearer",
			header:   "Bearer   ",
			verifier: &stubVerifier{id: authgate.Identity{UID: "u1", Role: "user"}},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "verifier error",
			header:   "Bearer bad",
			verifier: &stubVerifier{err: errors.Join(authgate.ErrInvalidToken, errors.New("expired"))},
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "unknown role",
			header:   "Bearer ok",
			verifier: &stubVerifier{id: authgate.Identity{UID: "s1", Role: "seller"}},
			wantCode: http.StatusForbidden,
		},
		{
			name:      "user",
			header:    "Bearer ok",
			verifier:  &stubVerifier{id: authgate.Identity{UID: "u1", Role: "user"}},
			wantCode:  http.StatusOK,
			wantActor: model.UserActor{ID: "u1"},
		},
		{
			name:      "bank",
			header:    "Bearer ok",
			verifier:  &stubVerifier{id: authgate.Identity{UID: "b1", Role: "bank"}},
			wantCode:  http.StatusOK,
			wantActor: model.BankActor{ID: "b1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.Actor
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				actor, ok := ActorFromContext(r.Context())
				if !ok {
					t.Fatalf("actor not in context")
				}
				got = actor
			})

			r := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			NewAuthMiddleware(tt.verifier, nil).Middleware(next).ServeHTTP(w, r)

			assert.Equal(t, tt.wantCode, w.Code)
			assert.Equal(t, tt.wantActor, got)
		})
	}
}

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireRole(model.RoleBank)(next)

	tests := []struct {
		name     string
		actor    model.Actor
		wantCode int
	}{
		{name: "no actor", wantCode: http.StatusUnauthorized},
		{name: "user", actor: model.UserActor{ID: "u1"}, wantCode: http.StatusForbidden},
		{name: "bank", actor: model.BankActor{ID: "b1"}, wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.actor != nil {
				r = r.WithContext(WithActor(r.Context(), tt.actor))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tt.wantCode, w.Code)
		})
	}
}
