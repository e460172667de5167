// Package metrics exposes Prometheus instruments for the component session
// and its connections. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "facade"

// Invocation outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeNoHandler = "no_handler"
	OutcomeUnknownID = "unknown_id"
	OutcomeError     = "error"
)

// Metrics holds the instruments.
type Metrics struct {
	components    prometheus.Gauge
	registrations *prometheus.CounterVec
	invocations   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New creates the instruments and registers them with reg. A nil reg
// creates unregistered instruments, which is convenient in tests.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		components: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "components",
			Help:      "Number of components currently published.",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Component registrations by result.",
		}, []string{"result"}),
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Operation invocations by outcome.",
		}, []string{"outcome"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent by type.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.components, m.registrations, m.invocations, m.notifications)
	}
	return m
}

// ComponentRegistered records a successful or failed registration.
func (m *Metrics) ComponentRegistered(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.components.Inc()
		m.registrations.WithLabelValues("ok").Inc()
		return
	}
	m.registrations.WithLabelValues("failed").Inc()
}

// ComponentUnregistered records a removal.
func (m *Metrics) ComponentUnregistered() {
	if m == nil {
		return
	}
	m.components.Dec()
}

// Invocation records one invocation outcome.
func (m *Metrics) Invocation(outcome string) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(outcome).Inc()
}

// NotificationSent records one sent notification.
func (m *Metrics) NotificationSent(notificationType string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(notificationType).Inc()
}
