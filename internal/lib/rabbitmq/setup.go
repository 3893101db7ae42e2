package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Обменник и маршрут уведомлений администратору.
const (
	ExchangeNotifications = "notifications"
	RoutingKeyAdmin       = "admin"
	QueueAdmin            = "notifications.admin"
)

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// GetNotificationQueues очереди, которые слушает notification-sender.
func GetNotificationQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: QueueAdmin, RoutingKey: RoutingKeyAdmin},
	}
}

// SetupChannel открывает канал, объявляет direct-обменник notifications
// и durable-очереди с привязками.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(10, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: failed to set QoS: %w", op, err)
	}

	err = ch.ExchangeDeclare(
		ExchangeNotifications,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, ExchangeNotifications, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: failed to bind queue %s with routing key %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
