// Package services содержит планировщик напоминаний о скором списании.
package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/magabrotheeeer/subman/internal/lib/query"
	"github.com/magabrotheeeer/subman/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
	"github.com/magabrotheeeer/subman/internal/models"
)

// UserRepository отдает всех пользователей для обхода.
type UserRepository interface {
	FindAll(ctx context.Context) ([]models.User, error)
}

// SubscriptionRepository отдает подписки пользователя.
type SubscriptionRepository interface {
	FindAllByUserID(ctx context.Context, userID int64) ([]models.Subscription, error)
}

// Publisher публикует сообщение в брокер.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// SchedulerService периодически ищет подписки со списанием в ближайшие дни
// и публикует напоминания. На каждую дату списания подписки уходит одно
// напоминание, сколько бы проходов ни попало в окно; неудачная публикация
// повторяется на следующем проходе. Учет ведется в памяти процесса.
type SchedulerService struct {
	users     UserRepository
	subs      SubscriptionRepository
	publisher Publisher
	interval  time.Duration
	ahead     time.Duration
	log       *slog.Logger
	now       func() time.Time

	mu       sync.Mutex
	notified map[int64]time.Time // подписка -> дата списания из последнего напоминания
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(users UserRepository, subs SubscriptionRepository, publisher Publisher,
	interval time.Duration, notifyAheadDays int, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		users:     users,
		subs:      subs,
		publisher: publisher,
		interval:  interval,
		ahead:     time.Duration(notifyAheadDays) * 24 * time.Hour,
		log:       log,
		now:       time.Now,
		notified:  make(map[int64]time.Time),
	}
}

// SetClock подменяет источник текущего времени.
func (s *SchedulerService) SetClock(now func() time.Time) {
	s.now = now
}

// Run выполняет проход сразу и затем по таймеру, пока ctx не отменен.
func (s *SchedulerService) Run(ctx context.Context) error {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce выполняет один проход и возвращает число опубликованных напоминаний.
// Ошибки чтения и публикации логируются и не прерывают проход по остальным.
func (s *SchedulerService) RunOnce(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log.Info("starting search for upcoming payments")

	users, err := s.users.FindAll(ctx)
	if err != nil {
		s.log.Error("failed to list users", sl.Err(err))
		return 0
	}

	y, m, d := s.now().UTC().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	s.forgetPast(today)

	sent := 0
	for _, u := range users {
		subs, err := s.subs.FindAllByUserID(ctx, u.ID)
		if err != nil {
			s.log.Error("failed to list subscriptions", slog.Int64("user_id", u.ID), sl.Err(err))
			continue
		}

		due := query.DueWithin(subs, today, s.ahead)
		for sub, ok := due.Poll(); ok; sub, ok = due.Poll() {
			if last, ok := s.notified[sub.ID]; ok && last.Equal(sub.DueDate) {
				continue
			}
			err := s.publisher.Publish(ctx, rabbitmq.RoutingKeyUpcoming, models.ReminderInfo{
				Email:            u.Email,
				UserName:         u.Name,
				SubscriptionID:   sub.ID,
				SubscriptionName: sub.Name,
				Price:            sub.Price,
				DueDate:          sub.DueDate,
			})
			if err != nil {
				s.log.Error("failed to publish message", slog.Int64("subscription_id", sub.ID), sl.Err(err))
				continue
			}
			s.notified[sub.ID] = sub.DueDate
			sent++
		}
	}

	if sent == 0 {
		s.log.Info("no upcoming payments found")
	} else {
		s.log.Info("published reminders", slog.Int("count", sent))
	}
	return sent
}

// forgetPast удаляет отметки о датах списания, которые уже прошли.
func (s *SchedulerService) forgetPast(today time.Time) {
	for id, due := range s.notified {
		if due.Before(today) {
			delete(s.notified, id)
		}
	}
}
