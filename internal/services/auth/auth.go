// Package services содержит логику регистрации и входа пользователей.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/subman/internal/models"
)

// UserRepository описывает хранилище пользователей, нужное для регистрации и входа.
type UserRepository interface {
	// FindByEmail возвращает пользователя по email или models.ErrNotFound.
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// Create сохраняет пользователя, дубликат email дает models.ErrUserExists.
	Create(ctx context.Context, user models.User) (models.User, error)
}

// Hasher — одностороннее хеширование паролей.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

// TokenIssuer выпускает токены для пользователя.
type TokenIssuer interface {
	GenerateToken(user models.User) (string, error)
}

// AuthService отвечает за регистрацию и вход.
type AuthService struct {
	users  UserRepository
	hasher Hasher
	tokens TokenIssuer
	log    *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, hasher Hasher, tokens TokenIssuer, log *slog.Logger) *AuthService {
	return &AuthService{
		users:  users,
		hasher: hasher,
		tokens: tokens,
		log:    log,
	}
}

// Register создает пользователя с хэшированным паролем.
// Занятый email возвращает models.ErrUserExists.
func (s *AuthService) Register(ctx context.Context, req models.DummyUser) (models.UserView, error) {
	const op = "services.auth.Register"

	email := strings.TrimSpace(req.Email)
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return models.UserView{}, fmt.Errorf("%s: %w", op, models.ErrUserExists)
	} else if !errors.Is(err, models.ErrNotFound) {
		return models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}

	user, err := s.users.Create(ctx, models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        email,
		PasswordHash: hash,
	})
	if err != nil {
		return models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("user registered", slog.Int64("user_id", user.ID))
	return user.Public(), nil
}

// Login проверяет учетные данные и выпускает токен.
// Неизвестный email и неверный пароль неразличимы: оба дают models.ErrUnauthorized.
func (s *AuthService) Login(ctx context.Context, email, password string) (models.UserView, string, error) {
	const op = "services.auth.Login"

	user, err := s.users.FindByEmail(ctx, strings.TrimSpace(email))
	if errors.Is(err, models.ErrNotFound) {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}
	if err != nil {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(password, user.PasswordHash) {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, models.ErrUnauthorized)
	}

	token, err := s.tokens.GenerateToken(user)
	if err != nil {
		return models.UserView{}, "", fmt.Errorf("%s: %w", op, err)
	}
	return user.Public(), token, nil
}
