// Package sender собирает процесс subman-sender: потребитель очереди
// напоминаний, отправляющий письма через SMTP.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subman/internal/config"
	"github.com/magabrotheeeer/subman/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subman/internal/lib/sl"
	"github.com/magabrotheeeer/subman/internal/lib/smtp"
	senderservice "github.com/magabrotheeeer/subman/internal/services/sender"
)

// App — процесс рассылки напоминаний.
type App struct {
	conn    *amqp.Connection
	ch      *amqp.Channel
	sender  *senderservice.SenderService
	workers int
	logger  *slog.Logger
}

// New проверяет настройки, подключается к брокеру и объявляет очереди.
func New(_ context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.sender.New"

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn, rabbitmq.GetNotificationQueues())
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(cfg.SMTP.Workers, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		conn:    conn,
		ch:      ch,
		sender:  senderservice.NewSenderService(transport, logger),
		workers: cfg.SMTP.Workers,
		logger:  logger,
	}, nil
}

func validate(cfg *config.Config) error {
	if cfg.RabbitMQ.URL == "" {
		return errors.New("rabbitmq url is required")
	}
	if cfg.SMTP.Host == "" {
		return errors.New("smtp host is required")
	}
	return nil
}

// Run читает очередь напоминаний до отмены ctx, затем закрывает канал и соединение.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("sender started", slog.String("queue", rabbitmq.QueueUpcoming), slog.Int("workers", a.workers))

	err := rabbitmq.Consume(ctx, a.ch, rabbitmq.QueueUpcoming, a.workers, a.sender.SendReminder, a.logger)
	if err != nil {
		a.logger.Error("consumer stopped", sl.Err(err))
	}

	a.logger.Info("sender shutting down")
	return errors.Join(err, a.close())
}

func (a *App) close() error {
	var errs []error
	if err := a.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close channel: %w", err))
	}
	if err := a.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		errs = append(errs, fmt.Errorf("close connection: %w", err))
	}
	return errors.Join(errs...)
}
