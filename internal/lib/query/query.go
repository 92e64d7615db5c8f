// Package query содержит производные представления над списком подписок
// одного пользователя: поиск по названию, сортировку и очередь ближайших списаний.
//
// Функции пакета не изменяют входной срез и не обращаются к хранилищу.
package query

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/magabrotheeeer/subman/internal/models"
)

// DueSoonWindow — длина окна ближайших списаний, начиная с сегодняшнего дня.
const DueSoonWindow = 30 * 24 * time.Hour

// Ключи сортировки.
const (
	SortByName    = "name"
	SortByPrice   = "price"
	SortByDueDate = "duedate"
)

// SearchByName возвращает подписки, в названии которых встречается q без учета
// регистра. Относительный порядок сохраняется.
func SearchByName(subs []models.Subscription, q string) []models.Subscription {
	needle := strings.ToLower(q)
	out := make([]models.Subscription, 0)
	for _, s := range subs {
		if strings.Contains(strings.ToLower(s.Name), needle) {
			out = append(out, s)
		}
	}
	return out
}

// Sort возвращает новую, устойчиво отсортированную копию subs.
// by: "price" по возрастанию цены, "duedate" по возрастанию даты списания,
// любое другое значение — по названию (с учетом регистра).
func Sort(subs []models.Subscription, by string) []models.Subscription {
	out := slices.Clone(subs)
	if out == nil {
		out = []models.Subscription{}
	}
	slices.SortStableFunc(out, comparator(by))
	return out
}

func comparator(by string) func(a, b models.Subscription) int {
	switch strings.ToLower(by) {
	case SortByPrice:
		return func(a, b models.Subscription) int {
			return cmp.Compare(a.Price, b.Price)
		}
	case SortByDueDate:
		return func(a, b models.Subscription) int {
			return a.DueDate.Compare(b.DueDate)
		}
	default:
		return func(a, b models.Subscription) int {
			return strings.Compare(a.Name, b.Name)
		}
	}
}

// DueSoon отбирает подписки с датой списания в [today, today+30d), упорядочивает
// их по дате и возвращает очередь, в голове которой ближайшее списание.
func DueSoon(subs []models.Subscription, today time.Time) *Queue {
	return DueWithin(subs, today, DueSoonWindow)
}

// DueWithin работает как DueSoon для произвольного окна.
func DueWithin(subs []models.Subscription, today time.Time, window time.Duration) *Queue {
	limit := today.Add(window)
	inWindow := make([]models.Subscription, 0)
	for _, s := range subs {
		if !s.DueDate.Before(today) && s.DueDate.Before(limit) {
			inWindow = append(inWindow, s)
		}
	}
	return NewQueue(Sort(inWindow, SortByDueDate)...)
}
