// Package metrics exposes Prometheus counters for order transitions, courier
// scans and notification delivery. A nil *Metrics is valid and records
// nothing, so components can be built without a registry in tests.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vexokart"

type Metrics struct {
	transitions     *prometheus.CounterVec
	scans           *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	retries         *prometheus.CounterVec
	publishFailures *prometheus.CounterVec
	consumeFailures *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Committed order status transitions.",
		}, []string{"from", "to"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "courier_scans_total",
			Help:      "Courier scan requests by action and result.",
		}, []string{"action", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification outcomes by channel and status.",
		}, []string{"channel", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_retries_total",
			Help:      "Provider send retries by channel.",
		}, []string{"channel"}),
		publishFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_publish_failures_total",
			Help:      "Events that could not be handed to the bus.",
		}, []string{"event"}),
		consumeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_consume_failures_total",
			Help:      "Bus messages the notifier failed to handle.",
		}, []string{"source"}),
	}
	if reg != nil {
		reg.MustRegister(m.transitions, m.scans, m.notifications, m.retries, m.publishFailures, m.consumeFailures)
	}
	return m
}

func (m *Metrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) ObserveScan(action, result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(action, result).Inc()
}

func (m *Metrics) ObserveNotification(channel, status string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(channel, status).Inc()
}

func (m *Metrics) ObserveRetry(channel string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(channel).Inc()
}

func (m *Metrics) ObservePublishFailure(event string) {
	if m == nil {
		return
	}
	m.publishFailures.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveConsumeFailure(source string) {
	if m == nil {
		return
	}
	m.consumeFailures.WithLabelValues(source).Inc()
}
