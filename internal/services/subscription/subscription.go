// Package services содержит бизнес-логику подписок: проверку владельца,
// производные представления и кеширование чтения по id.
//
// Изменения всегда строятся из значения в хранилище, а не из кеша, и
// применяются атомарно через SubscriptionRepository.Update. Заполнение кеша
// после промаха и обновление кеша после изменения одной подписки
// сериализованы, поэтому устаревшее значение не перезаписывает свежее.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/subman/internal/lib/query"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
	"github.com/magabrotheeeer/subman/internal/models"
)

// SubscriptionRepository определяет методы хранилища подписок.
type SubscriptionRepository interface {
	FindByID(ctx context.Context, id int64) (models.Subscription, error)
	FindAllByUserID(ctx context.Context, userID int64) ([]models.Subscription, error)
	Save(ctx context.Context, sub models.Subscription) (models.Subscription, error)
	Update(ctx context.Context, id int64, change func(*models.Subscription) error) (models.Subscription, error)
	DeleteByID(ctx context.Context, id int64) error
}

// UserFinder проверяет существование владельца при создании подписки.
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (models.User, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// SubscriptionService реализует бизнес-логику работы с подписками.
type SubscriptionService struct {
	repo     SubscriptionRepository
	users    UserFinder
	cache    Cache
	cacheTTL time.Duration
	log      *slog.Logger
	now      func() time.Time

	// locks сериализуют работу с кешем по id подписки.
	locks [cacheLockStripes]sync.Mutex
}

const cacheLockStripes = 64

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, users UserFinder, cache Cache, cacheTTL time.Duration, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		users:    users,
		cache:    cache,
		cacheTTL: cacheTTL,
		log:      log,
		now:      time.Now,
	}
}

// SetClock подменяет источник текущего времени.
func (s *SubscriptionService) SetClock(now func() time.Time) {
	s.now = now
}

// Today возвращает текущую дату как полночь UTC.
func (s *SubscriptionService) Today() time.Time {
	return startOfDay(s.now())
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (s *SubscriptionService) lockFor(id int64) *sync.Mutex {
	return &s.locks[uint64(id)%cacheLockStripes]
}

func cacheKey(id int64) string {
	return fmt.Sprintf("subscription:%d", id)
}

// List возвращает подписки пользователя.
func (s *SubscriptionService) List(ctx context.Context, userID int64) ([]models.Subscription, error) {
	const op = "services.subscription.List"
	subs, err := s.repo.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return subs, nil
}

// Get возвращает подписку, если она принадлежит userID.
// Чужая подписка неотличима от несуществующей.
func (s *SubscriptionService) Get(ctx context.Context, userID, id int64) (models.Subscription, error) {
	const op = "services.subscription.Get"
	sub, err := s.load(ctx, userID, id)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	return sub, nil
}

// Create создает подписку для существующего пользователя.
func (s *SubscriptionService) Create(ctx context.Context, userID int64, req models.DummySubscription) (models.Subscription, error) {
	const op = "services.subscription.Create"

	if _, err := s.users.FindByID(ctx, userID); errors.Is(err, models.ErrNotFound) {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, models.ErrUserNotFound)
	} else if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	sub, err := s.repo.Save(ctx, models.Subscription{
		UserID:         userID,
		Name:           req.Name,
		Price:          req.Price,
		Category:       models.Category(req.Category),
		BillingCycle:   models.BillingCycle(req.BillingCycle),
		DueDate:        dueDate,
		PaymentHistory: []string{},
	})
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("created new subscription", slog.Int64("id", sub.ID), slog.Int64("user_id", userID))
	s.cacheSet(sub)
	return sub, nil
}

// Update полностью заменяет название, цену, категорию, период и дату списания.
// Идентификатор, владелец и история платежей сохраняются.
func (s *SubscriptionService) Update(ctx context.Context, userID, id int64, req models.DummySubscription) (models.Subscription, error) {
	const op = "services.subscription.Update"

	dueDate, err := parseDate(req.DueDate)
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	saved, err := s.mutate(ctx, userID, id, func(sub *models.Subscription) {
		sub.Name = req.Name
		sub.Price = req.Price
		sub.Category = models.Category(req.Category)
		sub.BillingCycle = models.BillingCycle(req.BillingCycle)
		sub.DueDate = dueDate
	})
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("updated subscription", slog.Int64("id", id))
	return saved, nil
}

// Delete удаляет подписку владельца.
func (s *SubscriptionService) Delete(ctx context.Context, userID, id int64) error {
	const op = "services.subscription.Delete"

	// владелец подписки не меняется, поэтому проверка и удаление могут быть раздельными
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sub.UserID != userID {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}

	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.invalidate(id)
	s.log.Info("deleted subscription", slog.Int64("id", id))
	return nil
}

// Search ищет подписки пользователя по подстроке в названии.
func (s *SubscriptionService) Search(ctx context.Context, userID int64, name string) ([]models.Subscription, error) {
	const op = "services.subscription.Search"
	subs, err := s.repo.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return query.SearchByName(subs, name), nil
}

// Sorted возвращает подписки пользователя, отсортированные по ключу by.
func (s *SubscriptionService) Sorted(ctx context.Context, userID int64, by string) ([]models.Subscription, error) {
	const op = "services.subscription.Sorted"
	subs, err := s.repo.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return query.Sort(subs, by), nil
}

// DueSoon возвращает очередь подписок пользователя со списанием в ближайшие 30 дней.
func (s *SubscriptionService) DueSoon(ctx context.Context, userID int64) (*query.Queue, error) {
	const op = "services.subscription.DueSoon"
	subs, err := s.repo.FindAllByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return query.DueSoon(subs, s.Today()), nil
}

// RecordPayment дописывает дату оплаты в историю и переносит дату списания
// на следующий период. Пустая дата оплаты означает сегодня.
func (s *SubscriptionService) RecordPayment(ctx context.Context, userID, id int64, req models.DummyPayment) (models.Subscription, error) {
	const op = "services.subscription.RecordPayment"

	paidAt := s.Today()
	if req.PaidAt != "" {
		var err error
		if paidAt, err = parseDate(req.PaidAt); err != nil {
			return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	saved, err := s.mutate(ctx, userID, id, func(sub *models.Subscription) {
		sub.PaymentHistory = append(sub.PaymentHistory, paidAt.Format(models.DateLayout))
		sub.DueDate = sub.BillingCycle.Next(sub.DueDate)
	})
	if err != nil {
		return models.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("payment recorded", slog.Int64("id", id), slog.Time("next_due", saved.DueDate))
	return saved, nil
}

// mutate атомарно применяет change к подписке владельца userID и кладет
// сохраненное значение в кеш. Чужая подписка неотличима от несуществующей.
func (s *SubscriptionService) mutate(ctx context.Context, userID, id int64, change func(*models.Subscription)) (models.Subscription, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	saved, err := s.repo.Update(ctx, id, func(sub *models.Subscription) error {
		if sub.UserID != userID {
			return models.ErrNotFound
		}
		change(sub)
		return nil
	})
	if err != nil {
		// при ошибке записи снимка изменение уже в памяти, значение в кеше устарело
		if !errors.Is(err, models.ErrNotFound) {
			s.invalidate(id)
		}
		return models.Subscription{}, err
	}
	s.cacheSet(saved)
	return saved, nil
}

// load читает подписку через кеш и проверяет владельца уже после чтения,
// независимо от того, откуда пришло значение.
func (s *SubscriptionService) load(ctx context.Context, userID, id int64) (models.Subscription, error) {
	var sub models.Subscription
	found, err := s.cache.Get(cacheKey(id), &sub)
	if err != nil {
		s.log.Warn("failed to read from cache", slog.String("key", cacheKey(id)), sl.Err(err))
		found = false
	}
	if !found {
		if sub, err = s.fill(ctx, id); err != nil {
			return models.Subscription{}, err
		}
	}
	if sub.UserID != userID {
		return models.Subscription{}, models.ErrNotFound
	}
	return sub, nil
}

// fill читает подписку из хранилища и кладет в кеш под блокировкой id,
// чтобы параллельное изменение не оказалось между чтением и записью в кеш.
func (s *SubscriptionService) fill(ctx context.Context, id int64) (models.Subscription, error) {
	mu := s.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return models.Subscription{}, err
	}
	s.cacheSet(sub)
	return sub, nil
}

// cacheSet кладет значение в кеш. Если записать не удалось, старое значение
// удаляется, чтобы оно не пережило изменение.
func (s *SubscriptionService) cacheSet(sub models.Subscription) {
	if err := s.cache.Set(cacheKey(sub.ID), sub, s.cacheTTL); err != nil {
		s.log.Warn("failed to cache subscription", slog.String("key", cacheKey(sub.ID)), sl.Err(err))
		s.invalidate(sub.ID)
	}
}

func (s *SubscriptionService) invalidate(id int64) {
	if err := s.cache.Invalidate(cacheKey(id)); err != nil {
		s.log.Warn("failed to remove from cache", slog.String("key", cacheKey(id)), sl.Err(err))
	}
}

func parseDate(v string) (time.Time, error) {
	d, err := time.Parse(models.DateLayout, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", v, err)
	}
	return d, nil
}
