package create

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subman/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subman/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Create(ctx context.Context, userID int64, req models.DummySubscription) (models.Subscription, error) {
	args := m.Called(ctx, userID, req)
	s, _ := args.Get(0).(models.Subscription)
	return s, args.Error(1)
}

func TestCreateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alice := models.User{ID: 1, Name: "Alice", Email: "alice@example.com"}
	body := `{"name":"Spotify","price":999,"category":"STREAMING","billing_cycle":"MONTHLY","due_date":"2024-02-01"}`
	req := models.DummySubscription{Name: "Spotify", Price: 999, Category: "STREAMING", BillingCycle: "MONTHLY", DueDate: "2024-02-01"}

	tests := []struct {
		name           string
		body           string
		anonymous      bool
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное создание подписки",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, int64(1), req).Return(models.Subscription{
					ID: 7, UserID: 1, Name: "Spotify", Price: 999,
					Category: models.CategoryStreaming, BillingCycle: models.CycleMonthly,
					DueDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), PaymentHistory: []string{},
				}, nil)
			},
			expectedStatus: http.StatusCreated,
			expectedBody:   `"id":7,"user_id":1,"name":"Spotify"`,
		},
		{
			name:           "без авторизации",
			body:           body,
			anonymous:      true,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:           "некорректный JSON",
			body:           `{"name":`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid request body"`,
		},
		{
			name:           "неизвестная категория",
			body:           `{"name":"Spotify","price":999,"category":"MUSIC","billing_cycle":"MONTHLY","due_date":"2024-02-01"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Category must be one of`,
		},
		{
			name:           "неверный формат даты",
			body:           `{"name":"Spotify","price":999,"category":"STREAMING","billing_cycle":"MONTHLY","due_date":"01.02.2024"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field DueDate can contain only date in format 2006-01-02`,
		},
		{
			name: "владелец не найден",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, int64(1), req).Return(models.Subscription{}, models.ErrUserNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"user not found"`,
		},
		{
			name: "ошибка сервиса",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Create", mock.Anything, int64(1), req).Return(models.Subscription{}, errors.New("disk full"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not create subscription"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := httptest.NewRequest(http.MethodPost, "/subscriptions", strings.NewReader(tt.body))
			if !tt.anonymous {
				r = r.WithContext(middlewarectx.WithUser(r.Context(), alice))
			}
			w := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(w, r)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
