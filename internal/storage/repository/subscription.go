package repository

import (
	"context"
	"fmt"

	"github.com/magabrotheeeer/subman/internal/models"
	"github.com/magabrotheeeer/subman/internal/storage/snapshot"
)

// Subscriptions — хранилище подписок. Существование владельца здесь не
// проверяется, это делает сервисный слой при создании.
type Subscriptions struct {
	store *snapshot.Store[models.Subscription]
}

// OpenSubscriptions загружает снимок подписок из path.
func OpenSubscriptions(path string, opts ...snapshot.Option) (*Subscriptions, error) {
	const op = "storage.OpenSubscriptions"
	store, err := snapshot.Open("subscriptions", path, func(s *models.Subscription) *int64 { return &s.ID }, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Subscriptions{store: store}, nil
}

// FindAll возвращает все подписки всех пользователей.
func (r *Subscriptions) FindAll(ctx context.Context) ([]models.Subscription, error) {
	const op = "storage.Subscriptions.FindAll"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r.store.FindAll(), nil
}

// FindByID возвращает подписку по id или models.ErrNotFound.
func (r *Subscriptions) FindByID(ctx context.Context, id int64) (models.Subscription, error) {
	const op = "storage.Subscriptions.FindByID"
	if err := ctx.Err(); err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	s, ok := r.store.FindByID(id)
	if !ok {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return s, nil
}

// FindAllByUserID возвращает подписки владельца. Для userID <= 0 (владелец
// не задан) всегда возвращается пустой список.
func (r *Subscriptions) FindAllByUserID(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "storage.Subscriptions.FindAllByUserID"
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if userID <= 0 {
		return []models.Subscription{}, nil
	}
	return r.store.Find(func(s models.Subscription) bool { return s.UserID == userID }), nil
}

// Save вставляет новую подписку (ID == 0) или перезаписывает существующую.
func (r *Subscriptions) Save(ctx context.Context, s models.Subscription) (models.Subscription, error) {
	const op = "storage.Subscriptions.Save"
	if err := ctx.Err(); err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	saved, err := r.store.Save(s)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	return saved, nil
}

// Update атомарно применяет change к существующей подписке. Ошибка change
// (например, чужой владелец) возвращается обернутой, изменение не сохраняется.
func (r *Subscriptions) Update(ctx context.Context, id int64, change func(*models.Subscription) error) (models.Subscription, error) {
	const op = "storage.Subscriptions.Update"
	if err := ctx.Err(); err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	saved, err := r.store.Update(id, change)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, mapNotFound(err))
	}
	return saved, nil
}

// DeleteByID удаляет подписку. Отсутствие подписки ошибкой не считается.
func (r *Subscriptions) DeleteByID(ctx context.Context, id int64) error {
	const op = "storage.Subscriptions.DeleteByID"
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := r.store.DeleteByID(id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close записывает финальный снимок.
func (r *Subscriptions) Close() error {
	const op = "storage.Subscriptions.Close"
	if err := r.store.Flush(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
