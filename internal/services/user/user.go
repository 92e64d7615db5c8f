// Package services содержит логику работы с профилями пользователей.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/subman/internal/models"
)

// UserRepository описывает хранилище пользователей.
type UserRepository interface {
	FindAll(ctx context.Context) ([]models.User, error)
	FindByID(ctx context.Context, id int64) (models.User, error)
	Update(ctx context.Context, id int64, change func(*models.User) error) (models.User, error)
	DeleteByID(ctx context.Context, id int64) error
}

// SubscriptionFinder нужен, чтобы не удалять пользователя, на которого ссылаются подписки.
type SubscriptionFinder interface {
	FindAllByUserID(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// Hasher хеширует новый пароль при обновлении профиля.
type Hasher interface {
	Hash(password string) (string, error)
}

// UserService реализует чтение, обновление и удаление профилей.
type UserService struct {
	users  UserRepository
	subs   SubscriptionFinder
	hasher Hasher
	log    *slog.Logger
}

// NewUserService создает новый экземпляр UserService.
func NewUserService(users UserRepository, subs SubscriptionFinder, hasher Hasher, log *slog.Logger) *UserService {
	return &UserService{
		users:  users,
		subs:   subs,
		hasher: hasher,
		log:    log,
	}
}

// List возвращает публичные представления всех пользователей.
func (s *UserService) List(ctx context.Context) ([]models.UserView, error) {
	const op = "services.user.List"
	users, err := s.users.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	views := make([]models.UserView, 0, len(users))
	for _, u := range users {
		views = append(views, u.Public())
	}
	return views, nil
}

// Get возвращает пользователя по id.
func (s *UserService) Get(ctx context.Context, id int64) (models.UserView, error) {
	const op = "services.user.Get"
	u, err := s.users.FindByID(ctx, id)
	if err != nil {
		return models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}
	return u.Public(), nil
}

// Update частично обновляет профиль: перезаписываются только непустые поля,
// новый пароль хешируется. Изменять можно только собственный профиль,
// чужой id неотличим от несуществующего.
func (s *UserService) Update(ctx context.Context, callerID, id int64, req models.DummyUserUpdate) (models.UserView, error) {
	const op = "services.user.Update"
	if callerID != id {
		return models.UserView{}, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	var hash string
	if req.Password != "" {
		var err error
		if hash, err = s.hasher.Hash(req.Password); err != nil {
			return models.UserView{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	saved, err := s.users.Update(ctx, id, func(u *models.User) error {
		if name := strings.TrimSpace(req.Name); name != "" {
			u.Name = name
		}
		if email := strings.TrimSpace(req.Email); email != "" {
			u.Email = email
		}
		if hash != "" {
			u.PasswordHash = hash
		}
		return nil
	})
	if err != nil {
		return models.UserView{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user profile updated", slog.Int64("user_id", id))
	return saved.Public(), nil
}

// Delete удаляет собственный профиль. Пока у пользователя есть подписки,
// удаление отклоняется с models.ErrUserHasSubscriptions.
func (s *UserService) Delete(ctx context.Context, callerID, id int64) error {
	const op = "services.user.Delete"
	if callerID != id {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	if _, err := s.users.FindByID(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	subs, err := s.subs.FindAllByUserID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(subs) > 0 {
		return fmt.Errorf("%s: %w", op, models.ErrUserHasSubscriptions)
	}

	if err := s.users.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user deleted", slog.Int64("user_id", id))
	return nil
}
