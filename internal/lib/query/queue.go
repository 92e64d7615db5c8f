package query

import (
	"encoding/json"

	"github.com/magabrotheeeer/subman/internal/models"
)

// Queue — FIFO очередь подписок. Нулевое значение готово к использованию.
type Queue struct {
	items []models.Subscription
}

// NewQueue создает очередь из items, первый элемент оказывается в голове.
func NewQueue(items ...models.Subscription) *Queue {
	q := &Queue{items: make([]models.Subscription, 0, len(items))}
	for _, s := range items {
		q.Offer(s)
	}
	return q
}

// Offer добавляет подписку в хвост.
func (q *Queue) Offer(s models.Subscription) {
	q.items = append(q.items, s.Clone())
}

// Len возвращает число элементов.
func (q *Queue) Len() int {
	return len(q.items)
}

// Peek возвращает голову без извлечения.
func (q *Queue) Peek() (models.Subscription, bool) {
	if len(q.items) == 0 {
		return models.Subscription{}, false
	}
	return q.items[0].Clone(), true
}

// Poll извлекает голову.
func (q *Queue) Poll() (models.Subscription, bool) {
	if len(q.items) == 0 {
		return models.Subscription{}, false
	}
	head := q.items[0]
	q.items[0] = models.Subscription{}
	q.items = q.items[1:]
	return head, true
}

// Items возвращает копию содержимого от головы к хвосту.
func (q *Queue) Items() []models.Subscription {
	out := make([]models.Subscription, len(q.items))
	for i, s := range q.items {
		out[i] = s.Clone()
	}
	return out
}

// MarshalJSON кодирует очередь как массив от головы к хвосту.
func (q *Queue) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.Items())
}
