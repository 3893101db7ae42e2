// Package metrics счетчики Prometheus сервиса курса. Отдаются на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PaymentsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_payments_created_total",
		Help: "Платежи, созданные в ЮKassa.",
	})
	PaymentsConfirmed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_payments_confirmed_total",
		Help: "Покупки, впервые подтвержденные webhook или опросом статуса.",
	})
	GatewayErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_gateway_errors_total",
		Help: "Ошибки обращения к ЮKassa.",
	}, []string{"operation"})
	AccessDeactivated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "course_chat_access_deactivated_total",
		Help: "Выключенные по сроку доступы к чату.",
	})
	ExpiryNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_expiry_notifications_total",
		Help: "Напоминания об окончании доступа по результату.",
	}, []string{"outcome"})
	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "course_emails_total",
		Help: "Отправленные письма по результату.",
	}, []string{"outcome"})
)

// Значения меток outcome.
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)
