package rabbitmq

// Exchange — direct exchange для уведомлений.
const Exchange = "notifications"

// RoutingKeyUpcoming — ключ напоминаний о скором списании.
const RoutingKeyUpcoming = "upcoming"

// QueueUpcoming — очередь напоминаний, которую читает subman-sender.
const QueueUpcoming = "notifications.upcoming"

// QueueConfig описывает очередь и ключ, которым она привязана к Exchange.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues возвращает очереди, которые объявляет SetupChannel.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueUpcoming, RoutingKey: RoutingKeyUpcoming},
	}
}
