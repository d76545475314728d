// Package metrics counts grading and registration outcomes for Prometheus.
package metrics

import (
	"net/http"

	"github.com/CMPEQ0/lab-mark-api/apperr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "labmark"

// Metrics owns a registry so tests and servers do not share global state.
type Metrics struct {
	registry      *prometheus.Registry
	grades        *prometheus.CounterVec
	registrations *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		grades: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grade_requests_total",
			Help:      "Grade requests by course and outcome.",
		}, []string{"course", "outcome"}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registration_requests_total",
			Help:      "Registration requests by course and outcome.",
		}, []string{"course", "outcome"}),
	}
	m.registry.MustRegister(
		m.grades,
		m.registrations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome labels a finished request: "ok" or the failure kind.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.KindOf(err).String()
}

func (m *Metrics) ObserveGrade(course string, err error) {
	m.grades.WithLabelValues(course, Outcome(err)).Inc()
}

// ObserveRegistration counts a registration. outcome overrides the error
// label for successful calls, e.g. "registered" or "unchanged".
func (m *Metrics) ObserveRegistration(course, outcome string, err error) {
	if err != nil {
		outcome = Outcome(err)
	}
	m.registrations.WithLabelValues(course, outcome).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
