// Package services содержит сервис отправки писем с напоминаниями о списаниях.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/magabrotheeeer/subman/internal/lib/sl"
	"github.com/magabrotheeeer/subman/internal/lib/smtp"
	"github.com/magabrotheeeer/subman/internal/models"
)

// ErrInvalidReminder возвращается для сообщения без адреса получателя.
var ErrInvalidReminder = errors.New("reminder has no recipient")

// Transport открывает соединение с почтовым сервером.
type Transport interface {
	Connect() (smtp.Client, error)
	From() string
}

// SenderService превращает сообщения из очереди в письма.
type SenderService struct {
	transport Transport
	log       *slog.Logger
}

// NewSenderService создает новый экземпляр SenderService.
func NewSenderService(transport Transport, log *slog.Logger) *SenderService {
	return &SenderService{transport: transport, log: log}
}

// SendReminder разбирает models.ReminderInfo из body и отправляет письмо владельцу подписки.
func (s *SenderService) SendReminder(ctx context.Context, body []byte) error {
	const op = "services.sender.SendReminder"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var info models.ReminderInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if info.Email == "" {
		return fmt.Errorf("%s: %w", op, ErrInvalidReminder)
	}

	if err := s.send(info.Email, "Напоминание о списании по подписке", reminderText(info)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("reminder sent",
		slog.String("op", op),
		slog.Int64("subscription_id", info.SubscriptionID),
		slog.String("due_date", info.DueDate.Format(models.DateLayout)),
	)
	return nil
}

func reminderText(info models.ReminderInfo) string {
	return fmt.Sprintf("Здравствуйте, %s!\r\n\r\n"+
		"%s: следующее списание %s на сумму %s.\r\n\r\n"+
		"Если подписка больше не нужна, отмените её заранее.\r\n",
		info.UserName, info.SubscriptionName, info.DueDate.Format("02.01.2006"), formatPrice(info.Price))
}

// formatPrice переводит сумму из минимальных единиц в вид 19.99.
func formatPrice(minor int64) string {
	sign := ""
	if minor < 0 {
		sign, minor = "-", -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func (s *SenderService) send(to, subject, text string) error {
	from := s.transport.From()
	msg := strings.Join([]string{
		"From: " + from,
		"To: " + to,
		"Subject: " + mime.QEncoding.Encode("utf-8", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		text,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("smtp client already closed", sl.Err(err))
		}
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write body: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close body: %w", err)
	}

	return client.Quit()
}
