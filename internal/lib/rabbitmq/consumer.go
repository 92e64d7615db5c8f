package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subman/internal/lib/sl"
)

// ConsumeChannel — часть *amqp.Channel, нужная для чтения очереди.
type ConsumeChannel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, body []byte) error

// Consume читает очередь queueName и обрабатывает сообщения не более чем в
// workers горутинах. Успешно обработанное сообщение подтверждается, при ошибке
// оно возвращается в очередь. Повторная доставка уже однажды возвращенного
// сообщения, завершившаяся ошибкой, отбрасывается.
//
// Consume блокируется до отмены ctx или закрытия канала доставки и дожидается
// завершения начатых обработчиков.
func Consume(ctx context.Context, ch ConsumeChannel, queueName string, workers int, handler Handler, log *slog.Logger) error {
	const op = "rabbitmq.Consume"

	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	log = log.With(slog.String("op", op), slog.String("queue", queueName))

	var wg sync.WaitGroup
	sem := make(chan struct{}, max(workers, 1))
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				log.Info("delivery channel closed")
				return nil
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				requeue(d, log)
				return nil
			}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				handle(ctx, d, handler, log)
			}(d)
		}
	}
}

func handle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	log = log.With(slog.String("message_id", d.MessageId))

	if err := handler(ctx, d.Body); err != nil {
		log.Error("failed to handle message", sl.Err(err), slog.Bool("redelivered", d.Redelivered))
		if d.Redelivered {
			if err := d.Nack(false, false); err != nil {
				log.Error("failed to drop message", sl.Err(err))
			}
			return
		}
		requeue(d, log)
		return
	}

	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", sl.Err(err))
	}
}

func requeue(d amqp.Delivery, log *slog.Logger) {
	if err := d.Nack(false, true); err != nil {
		log.Error("failed to nack message", sl.Err(err))
	}
}
