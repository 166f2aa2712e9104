package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"loofcloud/internal/models"
)

type ctxKey string

const userKey ctxKey = "auth.user"

// UserFrom достаёт аутентифицированного пользователя из контекста запроса.
func UserFrom(r *http.Request) *models.User {
	u, _ := r.Context().Value(userKey).(*models.User)
	return u
}

// Authorization: Bearer <token>
func bearerToken(r *http.Request) string {
	const p = "Bearer "
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, p) {
		return ""
	}
	return strings.TrimPrefix(h, p)
}

// RequireAuth — 401 для отсутствующего/битого/просроченного токена и
// для выключенного пользователя; detail несёт машинный код ошибки.
func RequireAuth(svc *Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tok := bearerToken(r)
			if tok == "" {
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", ErrTokenInvalid.Error(), nil)
				return
			}
			u, err := svc.Resolve(r.Context(), tok)
			if err != nil {
				detail := ErrTokenInvalid.Error()
				if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrUserDisabled) {
					detail = err.Error()
				}
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", detail, nil)
				return
			}
			ctx := context.WithValue(r.Context(), userKey, u)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin — 403 поверх RequireAuth; не подменяет аутентификацию.
func RequireAdmin(svc *Service) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFrom(r)
			if u == nil {
				models.WriteProblem(w, http.StatusUnauthorized, "Unauthorized", ErrTokenInvalid.Error(), nil)
				return
			}
			if err := svc.RequireAdmin(u); err != nil {
				models.WriteProblem(w, http.StatusForbidden, "Forbidden", err.Error(), nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
