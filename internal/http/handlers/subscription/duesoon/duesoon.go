// Package duesoon реализует HTTP-обработчик очереди ближайших списаний.
package duesoon

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/subman/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subman/internal/http/response"
	"github.com/magabrotheeeer/subman/internal/lib/query"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
)

// Service описывает интерфейс получения очереди ближайших списаний.
type Service interface {
	DueSoon(ctx context.Context, userID int64) (*query.Queue, error)
}

type Handler struct {
	log     *slog.Logger
	service Service
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Ближайшие списания
// @Description Подписки со списанием в ближайшие 30 дней, от самой ранней даты.
// @Tags Subscriptions
// @Produce  json
// @Security BearerAuth
// @Success 200 {object} response.Response "Очередь подписок"
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 500 {object} response.ErrorResponse "Внутренняя ошибка сервера"
// @Router /subscriptions/due-soon [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.subscription.duesoon"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	user, ok := middlewarectx.UserFromContext(r.Context())
	if !ok {
		log.Error("user not found in context")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("unauthorized"))
		return
	}

	queue, err := h.service.DueSoon(r.Context(), user.ID)
	if err != nil {
		log.Error("failed to build due-soon queue", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("could not list upcoming payments"))
		return
	}

	render.JSON(w, r, response.StatusOKWithData(map[string]any{
		"subscriptions": queue,
	}))
}
