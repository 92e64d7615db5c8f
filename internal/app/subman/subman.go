// Package subman собирает HTTP-приложение: хранилища, сервисы, маршруты
// и необязательный планировщик напоминаний.
package subman

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/streadway/amqp"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/subman/internal/cache"
	"github.com/magabrotheeeer/subman/internal/config"
	"github.com/magabrotheeeer/subman/internal/lib/jwt"
	"github.com/magabrotheeeer/subman/internal/lib/metrics"
	"github.com/magabrotheeeer/subman/internal/lib/password"
	"github.com/magabrotheeeer/subman/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
	authservice "github.com/magabrotheeeer/subman/internal/services/auth"
	schedulerservice "github.com/magabrotheeeer/subman/internal/services/scheduler"
	subservice "github.com/magabrotheeeer/subman/internal/services/subscription"
	userservice "github.com/magabrotheeeer/subman/internal/services/user"
	"github.com/magabrotheeeer/subman/internal/storage/repository"
	"github.com/magabrotheeeer/subman/internal/storage/snapshot"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	server    *http.Server
	logger    *slog.Logger
	users     *repository.Users
	subs      *repository.Subscriptions
	cache     cache.Cache
	scheduler *schedulerservice.SchedulerService
	conn      *amqp.Connection
	ch        *amqp.Channel
}

// New открывает хранилища и собирает приложение. Ошибка чтения снимка
// возвращается как есть: без хранилища сервис не запускается.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.subman.New"

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	storeMetrics := metrics.NewStore(reg)

	users, err := repository.OpenUsers(cfg.Storage.UsersFile,
		snapshot.WithMetrics(storeMetrics), snapshot.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	subs, err := repository.OpenSubscriptions(cfg.Storage.SubscriptionsFile,
		snapshot.WithMetrics(storeMetrics), snapshot.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := cache.New(ctx, cfg.Cache)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tokens := jwt.NewJWTMaker(cfg.JWT.Secret, cfg.JWT.TTL())
	hasher := password.Hasher{}

	subscriptionService := subservice.NewSubscriptionService(subs, users, c, cfg.Cache.TTL, logger)

	a := &App{
		logger: logger,
		users:  users,
		subs:   subs,
		cache:  c,
	}

	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("%s: failed to connect RabbitMQ: %w", op, err)
		}
		a.conn = conn

		ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("%s: failed to setup RabbitMQ channel: %w", op, err)
		}
		a.ch = ch

		a.scheduler = schedulerservice.NewSchedulerService(users, subs, rabbitmq.NewPublisher(ch),
			cfg.Scheduler.Interval, cfg.Scheduler.NotifyAheadDays, logger)
	} else {
		logger.Info("rabbitmq url is empty, reminder scheduler disabled")
	}

	router := NewRouter(logger, Deps{
		Auth:          authservice.NewAuthService(users, hasher, tokens, logger),
		Users:         userservice.NewUserService(users, subs, hasher, logger),
		Subscriptions: subscriptionService,
		Tokens:        tokens,
		UserFinder:    users,
		Limiter:       rate.NewLimiter(rate.Limit(cfg.RateLimit.RPS), cfg.RateLimit.Burst),
		Metrics:       metrics.NewHTTP(reg),
		Gatherer:      reg,
	})

	a.server = &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	return a, nil
}

// Run запускает HTTP-сервер и планировщик и ждет отмены ctx.
// После остановки снимки хранилищ сбрасываются на диск.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		return a.server.Shutdown(timeoutCtx)
	})

	if a.scheduler != nil {
		g.Go(func() error {
			return a.scheduler.Run(gctx)
		})
	}

	err := g.Wait()
	if closeErr := a.closeResources(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}

func (a *App) closeResources() error {
	var errs []error

	if err := a.users.Close(); err != nil {
		a.logger.Error("failed to flush users", sl.Err(err))
		errs = append(errs, err)
	}
	if err := a.subs.Close(); err != nil {
		a.logger.Error("failed to flush subscriptions", sl.Err(err))
		errs = append(errs, err)
	}
	if closer, ok := a.cache.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Error("failed to close cache", sl.Err(err))
		}
	}
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}

	return errors.Join(errs...)
}
