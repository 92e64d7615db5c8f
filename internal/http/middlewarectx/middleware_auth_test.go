package middlewarectx_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/subman/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subman/internal/lib/jwt"
	"github.com/magabrotheeeer/subman/internal/models"
)

const testSecret = "middleware_test_secret_key_0123456789"

type UserFinderMock struct {
	mock.Mock
}

func (m *UserFinderMock) FindByID(ctx context.Context, id int64) (models.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(models.User)
	return u, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

func issue(t *testing.T, secret string, ttl time.Duration, u models.User) string {
	t.Helper()
	token, err := jwt.NewJWTMaker(secret, ttl).GenerateToken(u)
	require.NoError(t, err)
	return token
}

func TestAuthenticate(t *testing.T) {
	alice := models.User{ID: 1, Name: "Alice", Email: "alice@example.com", PasswordHash: "h"}
	maker := jwt.NewJWTMaker(testSecret, time.Hour)

	valid := issue(t, testSecret, time.Hour, alice)
	expired := issue(t, testSecret, -time.Minute, alice)
	foreign := issue(t, "some_other_secret_key_0123456789abc", time.Hour, alice)

	tests := []struct {
		name       string
		authHeader string
		setupMock  func(*UserFinderMock)
		wantUser   bool
	}{
		{
			name:       "no header",
			authHeader: "",
			setupMock:  func(_ *UserFinderMock) {},
		},
		{
			name:       "basic scheme",
			authHeader: "Basic dXNlcjpwYXNz",
			setupMock:  func(_ *UserFinderMock) {},
		},
		{
			name:       "lowercase bearer",
			authHeader: "bearer " + valid,
			setupMock:  func(_ *UserFinderMock) {},
		},
		{
			name:       "malformed token",
			authHeader: "Bearer not.a.token",
			setupMock:  func(_ *UserFinderMock) {},
		},
		{
			name:       "empty token",
			authHeader: "Bearer ",
			setupMock:  func(_ *UserFinderMock) {},
		},
		{
			name:       "signed with other key",
			authHeader: "Bearer " + foreign,
			setupMock:  func(_ *UserFinderMock) {},
		},
		{
			name:       "unknown user",
			authHeader: "Bearer " + valid,
			setupMock: func(m *UserFinderMock) {
				m.On("FindByID", mock.Anything, int64(1)).Return(models.User{}, models.ErrNotFound).Once()
			},
		},
		{
			name:       "email changed since issue",
			authHeader: "Bearer " + valid,
			setupMock: func(m *UserFinderMock) {
				changed := alice
				changed.Email = "alice@new.example.com"
				m.On("FindByID", mock.Anything, int64(1)).Return(changed, nil).Once()
			},
		},
		{
			name:       "expired token",
			authHeader: "Bearer " + expired,
			setupMock: func(m *UserFinderMock) {
				m.On("FindByID", mock.Anything, int64(1)).Return(alice, nil).Once()
			},
		},
		{
			name:       "valid token",
			authHeader: "Bearer " + valid,
			setupMock: func(m *UserFinderMock) {
				m.On("FindByID", mock.Anything, int64(1)).Return(alice, nil).Once()
			},
			wantUser: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			users := new(UserFinderMock)
			tt.setupMock(users)

			called := false
			var got models.User
			var gotOK bool
			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				called = true
				got, gotOK = middlewarectx.UserFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()

			middlewarectx.Authenticate(maker, users, newNoopLogger())(next).ServeHTTP(rec, req)

			assert.True(t, called, "gate never rejects the request itself")
			assert.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.wantUser, gotOK)
			if tt.wantUser {
				assert.Equal(t, alice, got)
			}
			users.AssertExpectations(t)
		})
	}
}

func TestAuthenticate_Idempotent(t *testing.T) {
	alice := models.User{ID: 1, Email: "alice@example.com"}
	maker := jwt.NewJWTMaker(testSecret, time.Hour)
	token := issue(t, testSecret, time.Hour, alice)

	users := new(UserFinderMock)
	users.On("FindByID", mock.Anything, int64(1)).Return(alice, nil).Once()

	var got models.User
	next := http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = middlewarectx.UserFromContext(r.Context())
	})
	gate := middlewarectx.Authenticate(maker, users, newNoopLogger())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	gate(gate(next)).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, alice, got)
	users.AssertExpectations(t)
}

func TestRequireUser(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := middlewarectx.RequireUser(newNoopLogger())(next)

	t.Run("anonymous", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/users", nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		assert.Equal(t, "Error", body["status"])
	})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
		req = req.WithContext(middlewarectx.WithUser(req.Context(), models.User{ID: 1}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})
}
