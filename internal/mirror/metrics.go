package mirror

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ChannelsMirrored - число каналов в in-memory копии
	ChannelsMirrored = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "signalboard",
		Subsystem: "mirror",
		Name:      "channels",
		Help:      "Number of channel configs held in the in-memory mirror",
	})

	// RefreshFailures - перечитки, провалившиеся после всех retry
	RefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "signalboard",
		Subsystem: "mirror",
		Name:      "refresh_failures_total",
		Help:      "Channel refreshes that failed after retries",
	})
)
