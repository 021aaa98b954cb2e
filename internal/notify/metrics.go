package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus-метрики подсистемы синхронизации
// ============================================================

// EventsPublished — количество опубликованных pg_notify событий по топикам
var EventsPublished = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "notify",
		Name:      "events_published_total",
		Help:      "Total number of change events published via pg_notify",
	},
	[]string{"topic"},
)

// NotificationsReceived — количество полученных слушателем уведомлений
var NotificationsReceived = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "notify",
		Name:      "notifications_received_total",
		Help:      "Total number of notifications received by the listener",
	},
	[]string{"topic"},
)

// CallbackErrors — паники/ошибки внутри callback-ов, изолированные диспетчером
var CallbackErrors = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "notify",
		Name:      "callback_errors_total",
		Help:      "Total number of listener callbacks that panicked",
	},
	[]string{"topic"},
)

// ListenerReconnects — количество переподключений выделенного соединения
var ListenerReconnects = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "notify",
		Name:      "listener_reconnects_total",
		Help:      "Total number of listener connection re-establishments",
	},
)

// DispatchDuration — время синхронного прогона всех callback-ов одного события
var DispatchDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "signalboard",
		Subsystem: "notify",
		Name:      "dispatch_duration_ms",
		Help:      "Time to dispatch one notification to all callbacks in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 5, 10, 50, 100},
	},
)
