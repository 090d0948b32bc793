package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_ticks_total",
		Help: "Количество выполненных тиков рассылки",
	})
	TicksSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_ticks_skipped_total",
		Help: "Тики, пропущенные из-за блокировки другой репликой",
	})
	DeliveryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "broadcast_delivery_attempts_total",
		Help: "Попытки доставки по результату",
	}, []string{"result"})
	ItemsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_items_sent_total",
		Help: "Публикации, помеченные отправленными",
	})
	RecipientsDeactivated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "broadcast_recipients_deactivated_total",
		Help: "Получатели, деактивированные из-за постоянных ошибок",
	})
	DeliverySendSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "broadcast_send_seconds",
		Help:    "Длительность одной отправки в чат",
		Buckets: prometheus.DefBuckets,
	})

	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность сетевых запросов",
		Buckets: prometheus.DefBuckets,
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})
)

// Результаты попыток доставки для метрики DeliveryAttempts.
const (
	ResultSuccess   = "success"
	ResultPermanent = "permanent"
	ResultTransient = "transient"
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		TicksTotal,
		TicksSkipped,
		DeliveryAttempts,
		ItemsSent,
		RecipientsDeactivated,
		DeliverySendSeconds,
		NetworkRequestDuration,
		NetworkRequestTotal,
	)
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	duration := time.Since(start).Seconds()
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(duration)
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}
