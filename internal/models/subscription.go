// Package models содержит доменные структуры, описывающие подписку,
// а также вспомогательные типы для работы с данными из внешних источников (например, JSON-запросы).
package models

import "time"

// DateLayout — формат даты списания в запросах и в истории платежей.
const DateLayout = "2006-01-02"

// Category — категория подписки.
type Category string

const (
	CategoryStreaming Category = "STREAMING"
	CategoryGames     Category = "GAMES"
	CategoryMobile    Category = "MOBILE"
	CategoryService   Category = "SERVICE"
	CategorySaaS      Category = "SAAS"
	CategoryOther     Category = "OTHER"
)

// Valid сообщает, входит ли значение в закрытый список категорий.
func (c Category) Valid() bool {
	switch c {
	case CategoryStreaming, CategoryGames, CategoryMobile, CategoryService, CategorySaaS, CategoryOther:
		return true
	}
	return false
}

// BillingCycle — периодичность списания.
type BillingCycle string

const (
	CycleWeekly     BillingCycle = "WEEKLY"
	CycleMonthly    BillingCycle = "MONTHLY"
	CycleQuarterly  BillingCycle = "QUARTERLY"
	CycleSemiAnnual BillingCycle = "SEMI_ANNUAL"
	CycleAnnual     BillingCycle = "ANNUAL"
)

// Valid сообщает, входит ли значение в закрытый список периодов.
func (b BillingCycle) Valid() bool {
	switch b {
	case CycleWeekly, CycleMonthly, CycleQuarterly, CycleSemiAnnual, CycleAnnual:
		return true
	}
	return false
}

// Next возвращает дату следующего списания после date.
// Для неизвестного периода дата не меняется.
func (b BillingCycle) Next(date time.Time) time.Time {
	switch b {
	case CycleWeekly:
		return date.AddDate(0, 0, 7)
	case CycleMonthly:
		return date.AddDate(0, 1, 0)
	case CycleQuarterly:
		return date.AddDate(0, 3, 0)
	case CycleSemiAnnual:
		return date.AddDate(0, 6, 0)
	case CycleAnnual:
		return date.AddDate(1, 0, 0)
	}
	return date
}

// Subscription представляет собой основную модель подписки,
// используемую в бизнес-логике и хранилище.
// DueDate всегда хранится как полночь UTC.
type Subscription struct {
	ID             int64        `json:"id"`
	UserID         int64        `json:"user_id"`         // Владелец подписки
	Name           string       `json:"name"`            // Название сервиса
	Price          int64        `json:"price"`           // Стоимость в минимальных денежных единицах
	Category       Category     `json:"category"`        // Категория
	BillingCycle   BillingCycle `json:"billing_cycle"`   // Периодичность списания
	DueDate        time.Time    `json:"due_date"`        // Дата ближайшего списания
	PaymentHistory []string     `json:"payment_history"` // История платежей, только дописывается
}

// Clone возвращает копию подписки, не разделяющую историю платежей с оригиналом.
func (s Subscription) Clone() Subscription {
	c := s
	if s.PaymentHistory != nil {
		c.PaymentHistory = make([]string, len(s.PaymentHistory))
		copy(c.PaymentHistory, s.PaymentHistory)
	}
	return c
}

// DummySubscription используется для приёма данных из JSON-запроса,
// прежде чем конвертировать их в Subscription.
// Дата приходит строкой, чтобы её можно было валидировать и парсить вручную.
type DummySubscription struct {
	Name         string `json:"name" validate:"required,max=200"`
	Price        int64  `json:"price" validate:"gte=0"`
	Category     string `json:"category" validate:"required,oneof=STREAMING GAMES MOBILE SERVICE SAAS OTHER"`
	BillingCycle string `json:"billing_cycle" validate:"required,oneof=WEEKLY MONTHLY QUARTERLY SEMI_ANNUAL ANNUAL"`
	DueDate      string `json:"due_date" validate:"required,datetime=2006-01-02"`
}

// DummyPayment описывает отметку об оплате. Пустая дата означает «сегодня».
type DummyPayment struct {
	PaidAt string `json:"paid_at,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// ReminderInfo — сообщение о скором списании, публикуемое планировщиком.
type ReminderInfo struct {
	Email            string    `json:"email"`
	UserName         string    `json:"user_name"`
	SubscriptionID   int64     `json:"subscription_id"`
	SubscriptionName string    `json:"subscription_name"`
	Price            int64     `json:"price"`
	DueDate          time.Time `json:"due_date"`
}
