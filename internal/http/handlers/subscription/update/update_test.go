package update

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/subman/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subman/internal/models"
)

// MockService реализует интерфейс update.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Update(ctx context.Context, userID, id int64, req models.DummySubscription) (models.Subscription, error) {
	args := m.Called(ctx, userID, id, req)
	s, _ := args.Get(0).(models.Subscription)
	return s, args.Error(1)
}

func TestUpdateHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	alice := models.User{ID: 1, Email: "alice@example.com"}
	body := `{"name":"Netflix Basic","price":799,"category":"STREAMING","billing_cycle":"ANNUAL","due_date":"2024-06-01"}`
	req := models.DummySubscription{Name: "Netflix Basic", Price: 799, Category: "STREAMING", BillingCycle: "ANNUAL", DueDate: "2024-06-01"}

	tests := []struct {
		name           string
		id             string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное обновление",
			id:   "10",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(1), int64(10), req).
					Return(models.Subscription{ID: 10, UserID: 1, Name: "Netflix Basic", Price: 799}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"name":"Netflix Basic","price":799`,
		},
		{
			name:           "некорректный id",
			id:             "ten",
			body:           body,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"failed to decode id from url"`,
		},
		{
			name:           "отрицательная цена",
			id:             "10",
			body:           `{"name":"Netflix","price":-1,"category":"STREAMING","billing_cycle":"ANNUAL","due_date":"2024-06-01"}`,
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `field Price must be greater or equal to 0`,
		},
		{
			name: "чужая подписка",
			id:   "11",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(1), int64(11), req).Return(models.Subscription{}, models.ErrNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"subscription not found"`,
		},
		{
			name: "ошибка сервиса",
			id:   "10",
			body: body,
			setupMock: func(m *MockService) {
				m.On("Update", mock.Anything, int64(1), int64(10), req).Return(models.Subscription{}, errors.New("boom"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"could not update subscription"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			tt.setupMock(svc)

			r := httptest.NewRequest(http.MethodPut, "/subscriptions/"+tt.id, strings.NewReader(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			ctx := middlewarectx.WithUser(context.WithValue(r.Context(), chi.RouteCtxKey, rctx), alice)

			w := httptest.NewRecorder()
			New(logger, svc).ServeHTTP(w, r.WithContext(ctx))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			svc.AssertExpectations(t)
		})
	}
}
