package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики fan-out слоя
var (
	// ClientsConnected - текущее число websocket-сессий
	ClientsConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalboard",
		Subsystem: "websocket",
		Name:      "clients_connected",
		Help:      "Number of connected websocket sessions",
	})

	// BroadcastsTotal - разосланные сообщения по типам
	BroadcastsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "websocket",
		Name:      "broadcasts_total",
		Help:      "Messages broadcast to websocket sessions by type",
	}, []string{"type"})

	// SlowClientsDropped - сессии, отключенные из-за переполнения буфера отправки
	SlowClientsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "websocket",
		Name:      "slow_clients_dropped_total",
		Help:      "Sessions dropped because their send buffer overflowed",
	})
)
