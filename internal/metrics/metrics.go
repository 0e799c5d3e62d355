// Package metrics exposes Prometheus instrumentation for the message core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	MessagesSent         *prometheus.CounterVec
	MessagesRemoved      *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationsDropped *prometheus.CounterVec
	JobsScheduled        *prometheus.CounterVec
	JobsFired            *prometheus.CounterVec
	JobsPending          prometheus.Gauge
	ActiveStandups       prometheus.Gauge
	GatewayConnections   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "messages_sent_total",
			Help:      "Messages materialized into a conversation, by kind and origin.",
		}, []string{"kind", "origin"}),
		MessagesRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "messages_removed_total",
			Help:      "Messages removed from a conversation.",
		}, []string{"kind"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "notifications_sent_total",
			Help:      "Notifications inserted into a user's feed.",
		}, []string{"event"}),
		NotificationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "notifications_dropped_total",
			Help:      "Notifications skipped at dispatch time.",
		}, []string{"event", "reason"}),
		JobsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "scheduler_jobs_scheduled_total",
			Help:      "Deferred jobs armed.",
		}, []string{"job"}),
		JobsFired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "huddle",
			Name:      "scheduler_jobs_fired_total",
			Help:      "Deferred jobs that ran.",
		}, []string{"job"}),
		JobsPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "scheduler_jobs_pending",
			Help:      "Deferred jobs armed but not yet fired.",
		}),
		ActiveStandups: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "standups_active",
			Help:      "Standups currently collecting messages.",
		}),
		GatewayConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "huddle",
			Name:      "gateway_connections",
			Help:      "Identified websocket connections.",
		}),
	}
	if reg != nil {
		reg.MustRegister(
			m.MessagesSent, m.MessagesRemoved,
			m.NotificationsSent, m.NotificationsDropped,
			m.JobsScheduled, m.JobsFired, m.JobsPending,
			m.ActiveStandups, m.GatewayConnections,
		)
	}
	return m
}

func (m *Metrics) MessageSent(kind, origin string) {
	if m == nil {
		return
	}
	m.MessagesSent.WithLabelValues(kind, origin).Inc()
}

func (m *Metrics) MessageRemoved(kind string) {
	if m == nil {
		return
	}
	m.MessagesRemoved.WithLabelValues(kind).Inc()
}

func (m *Metrics) NotificationSent(event string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(event).Inc()
}

func (m *Metrics) NotificationDropped(event, reason string) {
	if m == nil {
		return
	}
	m.NotificationsDropped.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) JobScheduled(job string) {
	if m == nil {
		return
	}
	m.JobsScheduled.WithLabelValues(job).Inc()
	m.JobsPending.Inc()
}

func (m *Metrics) JobFired(job string) {
	if m == nil {
		return
	}
	m.JobsFired.WithLabelValues(job).Inc()
	m.JobsPending.Dec()
}

// JobDropped accounts for a pending job that will never fire.
func (m *Metrics) JobDropped() {
	if m == nil {
		return
	}
	m.JobsPending.Dec()
}

func (m *Metrics) StandupStarted() {
	if m == nil {
		return
	}
	m.ActiveStandups.Inc()
}

func (m *Metrics) StandupEnded() {
	if m == nil {
		return
	}
	m.ActiveStandups.Dec()
}

func (m *Metrics) GatewayConnected() {
	if m == nil {
		return
	}
	m.GatewayConnections.Inc()
}

func (m *Metrics) GatewayDisconnected() {
	if m == nil {
		return
	}
	m.GatewayConnections.Dec()
}
