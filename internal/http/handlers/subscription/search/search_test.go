package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subman/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subman/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Search(ctx context.Context, userID int64, name string) ([]models.Subscription, error) {
	args := m.Called(ctx, userID, name)
	subs, _ := args.Get(0).([]models.Subscription)
	return subs, args.Error(1)
}

func TestSearchHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alice := models.User{ID: 1, Email: "alice@example.com"}

	t.Run("передает подстроку в сервис", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Search", mock.Anything, int64(1), "net").Return([]models.Subscription{{ID: 2, UserID: 1, Name: "Netflix"}}, nil)

		r := httptest.NewRequest(http.MethodGet, "/subscriptions/search?name=net", nil)
		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, r.WithContext(middlewarectx.WithUser(r.Context(), alice)))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"name":"Netflix"`)
		svc.AssertExpectations(t)
	})

	t.Run("ошибка сервиса", func(t *testing.T) {
		svc := new(MockService)
		svc.On("Search", mock.Anything, int64(1), "").Return(nil, errors.New("boom"))

		r := httptest.NewRequest(http.MethodGet, "/subscriptions/search", nil)
		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, r.WithContext(middlewarectx.WithUser(r.Context(), alice)))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.JSONEq(t, `{"status":"Error","error":"could not search subscriptions"}`, w.Body.String())
	})

	t.Run("без авторизации", func(t *testing.T) {
		svc := new(MockService)
		w := httptest.NewRecorder()
		New(logger, svc).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/subscriptions/search?name=x", nil))

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		svc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	})
}
