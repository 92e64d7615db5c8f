// Package repository реализует хранилища пользователей и подписок поверх
// снимков из пакета snapshot. Каждый репозиторий владеет своим Store и
// добавляет к нему предметные поиски и ограничения уникальности.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/magabrotheeeer/subman/internal/models"
	"github.com/magabrotheeeer/subman/internal/storage/snapshot"
)

// Users — хранилище пользователей.
type Users struct {
	store *snapshot.Store[models.User]
}

// OpenUsers загружает снимок пользователей из path.
func OpenUsers(path string, opts ...snapshot.Option) (*Users, error) {
	const op = "storage.OpenUsers"
	store, err := snapshot.Open("users", path, func(u *models.User) *int64 { return &u.ID }, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Users{store: store}, nil
}

// FindAll возвращает всех пользователей.
func (r *Users) FindAll(ctx context.Context) ([]models.User, error) {
	const op = "storage.Users.FindAll"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.store.FindAll(), nil
}

// FindByID возвращает пользователя по id или models.ErrNotFound.
func (r *Users) FindByID(ctx context.Context, id int64) (models.User, error) {
	const op = "storage.Users.FindByID"
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u, ok := r.store.FindByID(id)
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return u, nil
}

// FindByEmail ищет пользователя по email без учета регистра.
// При дубликатах возвращается пользователь с наименьшим id.
func (r *Users) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const op = "storage.Users.FindByEmail"
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u, ok := r.store.First(sameEmail(email))
	if !ok {
		return models.User{}, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return u, nil
}

// Create сохраняет нового пользователя. Проверка уникальности email и вставка
// выполняются атомарно, дубликат возвращает models.ErrUserExists.
func (r *Users) Create(ctx context.Context, u models.User) (models.User, error) {
	const op = "storage.Users.Create"
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	u.ID = 0
	saved, err := r.store.SaveUnique(u, sameEmail(u.Email))
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapConflict(err))
	}
	return saved, nil
}

// Update атомарно применяет change к существующему пользователю. Новый email
// не должен совпадать с email другого пользователя (models.ErrUserExists),
// отсутствующий или удаленный пользователь — models.ErrNotFound.
func (r *Users) Update(ctx context.Context, id int64, change func(*models.User) error) (models.User, error) {
	const op = "storage.Users.Update"
	if err := ctx.Err(); err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, err)
	}
	saved, err := r.store.UpdateUnique(id, change, func(updated, existing models.User) bool {
		return strings.EqualFold(updated.Email, existing.Email)
	})
	if err != nil {
		return models.User{}, fmt.Errorf("%s: %w", op, mapConflict(err))
	}
	return saved, nil
}

// DeleteByID удаляет пользователя. Отсутствие пользователя ошибкой не считается.
func (r *Users) DeleteByID(ctx context.Context, id int64) error {
	const op = "storage.Users.DeleteByID"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.store.DeleteByID(id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close записывает финальный снимок.
func (r *Users) Close() error {
	const op = "storage.Users.Close"
	if err := r.store.Flush(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func sameEmail(email string) func(models.User) bool {
	return func(u models.User) bool {
		return strings.EqualFold(u.Email, email)
	}
}

func mapConflict(err error) error {
	if errors.Is(err, snapshot.ErrConflict) {
		return models.ErrUserExists
	}
	return mapNotFound(err)
}

func mapNotFound(err error) error {
	if errors.Is(err, snapshot.ErrNotFound) {
		return models.ErrNotFound
	}
	return err
}
