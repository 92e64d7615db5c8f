// Package middlewarectx содержит HTTP middleware: установление личности по
// bearer токену, защиту маршрутов, ограничение частоты и метрики запросов.
//
// Authenticate никогда не отклоняет запрос сам. Невалидный токен, неизвестный
// пользователь или истекший срок означают анонимный запрос. Отказ с 401
// выполняет RequireUser на маршрутах, которым нужна личность.
package middlewarectx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subman/internal/http/response"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
	"github.com/magabrotheeeer/subman/internal/models"
)

const bearerPrefix = "Bearer "

type userKey struct{}

// TokenService описывает проверку токенов.
type TokenService interface {
	ParseSubject(token string) (string, error)
	ParseUserID(token string) (int64, error)
	Validate(token string, user models.User) bool
}

// UserFinder ищет пользователя по id.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
}

// WithUser возвращает контекст с установленной личностью.
func WithUser(ctx context.Context, user models.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext возвращает личность, установленную для запроса.
func UserFromContext(ctx context.Context) (models.User, bool) {
	u, ok := ctx.Value(userKey{}).(models.User)
	return u, ok
}

// Authenticate возвращает middleware, которое превращает заголовок
// Authorization: Bearer <token> в личность запроса.
//
// Пользователь перечитывается из хранилища на каждый запрос, поэтому смена
// email делает ранее выданные токены недействительными.
func Authenticate(tokens TokenService, users UserFinder, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			const op = "middlewarectx.Authenticate"

			if _, ok := UserFromContext(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, bearerPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			raw := strings.TrimPrefix(authHeader, bearerPrefix)

			log := log.With(
				slog.String("op", op),
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)

			if _, err := tokens.ParseSubject(raw); err != nil {
				log.Debug("bearer token rejected", sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			userID, err := tokens.ParseUserID(raw)
			if err != nil {
				log.Debug("bearer token rejected", sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}

			user, err := users.FindByID(r.Context(), userID)
			if err != nil {
				log.Debug("token owner not found", slog.Int64("user_id", userID), sl.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			if !tokens.Validate(raw, user) {
				log.Debug("token is expired or does not match user", slog.Int64("user_id", userID))
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// RequireUser отклоняет с 401 запросы без установленной личности.
func RequireUser(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserFromContext(r.Context()); !ok {
				log.Info("unauthenticated request rejected",
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.String("path", r.URL.Path),
				)
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, response.Error("missing or invalid authorization"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
