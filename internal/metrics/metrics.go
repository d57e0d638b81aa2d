// Package metrics holds the Prometheus collectors for the auction site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "auction"

	outcomeSold    = "sold"
	outcomeNotSold = "not_sold"
)

// Metrics holds all collectors. Construct with NewMetrics; tests pass a
// fresh prometheus.NewRegistry() to avoid duplicate registration.
type Metrics struct {
	// Closing
	ItemsClosedTotal    *prometheus.CounterVec
	CloseConflictsTotal prometheus.Counter

	// Scheduler
	ClosingJobsScheduled prometheus.Counter
	ClosingJobsFired     prometheus.Counter
	ClosingJobsPending   prometheus.Gauge
	SweepClosedTotal     prometheus.Counter

	// Bids
	BidsPlacedTotal   prometheus.Counter
	BidsRejectedTotal *prometheus.CounterVec

	// Notifications
	NotificationsSentTotal *prometheus.CounterVec
	LiveMessagesTotal      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)
	m := &Metrics{}

	m.initClosingMetrics(factory)
	m.initSchedulerMetrics(factory)
	m.initBidMetrics(factory)

	m.NotificationsSentTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "notifications_sent_total",
			Help:      "Notifications persisted, by category",
		},
		[]string{"category"},
	)
	m.LiveMessagesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "websocket",
			Name:      "messages_total",
			Help:      "Live pushes by target and outcome",
		},
		[]string{"target", "outcome"},
	)

	return m
}

func (m *Metrics) initClosingMetrics(factory promauto.Factory) {
	m.ItemsClosedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "closing",
			Name:      "items_closed_total",
			Help:      "Items transitioned to closed, by outcome",
		},
		[]string{"outcome"},
	)

	m.CloseConflictsTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "closing",
			Name:      "conflicts_total",
			Help:      "Close attempts that found the item already closed in storage",
		},
	)
}

func (m *Metrics) initSchedulerMetrics(factory promauto.Factory) {
	m.ClosingJobsScheduled = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "jobs_scheduled_total",
			Help:      "Closing jobs scheduled or replaced",
		},
	)

	m.ClosingJobsFired = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "jobs_fired_total",
			Help:      "Closing jobs that fired",
		},
	)

	m.ClosingJobsPending = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "jobs_pending",
			Help:      "Closing jobs waiting to fire",
		},
	)

	m.SweepClosedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scheduler",
			Name:      "sweep_closed_total",
			Help:      "Overdue items closed by the periodic sweep",
		},
	)
}

func (m *Metrics) initBidMetrics(factory promauto.Factory) {
	m.BidsPlacedTotal = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "bids",
			Name:      "placed_total",
			Help:      "Accepted bids",
		},
	)

	m.BidsRejectedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "bids",
			Name:      "rejected_total",
			Help:      "Rejected bids, by reason",
		},
		[]string{"reason"},
	)
}

// RecordClosed counts a successful close.
func (m *Metrics) RecordClosed(sold bool) {
	outcome := outcomeNotSold
	if sold {
		outcome = outcomeSold
	}
	m.ItemsClosedTotal.WithLabelValues(outcome).Inc()
}
