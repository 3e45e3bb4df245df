// Package metrics счетчики и датчики Prometheus для планировщика.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MonitorTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coworking_monitor_ticks_total",
		Help: "Number of completed depletion monitor passes.",
	})

	ForcedCloses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coworking_forced_closes_total",
		Help: "Number of sessions force-closed by the depletion monitor.",
	})

	DepletionEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "coworking_depletion_events_total",
		Help: "Number of depletion notifications published, by reason.",
	}, []string{"reason"})

	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coworking_publish_failures_total",
		Help: "Number of failed event publications to the broker.",
	})

	SettleRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "coworking_settle_retries_total",
		Help: "Number of retried balance settlement writes.",
	})

	OpenSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coworking_open_sessions",
		Help: "Current number of open sessions.",
	})

	RevenueSYP = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coworking_revenue_syp_today",
		Help: "Today's revenue in SYP, including live accruals.",
	})

	RevenueUSD = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "coworking_revenue_usd_today",
		Help: "Today's settled revenue in USD.",
	})
)
