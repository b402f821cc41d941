// Package observe exposes the daemon's operational counters.
package observe

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the daemon counters. One instance per process.
type Metrics struct {
	LifecyclePolls    *prometheus.CounterVec
	ProverRequests    *prometheus.CounterVec
	DecryptFailures   prometheus.Counter
	LoginsCompleted   prometheus.Counter
	SessionsDiscarded prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		LifecyclePolls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veilpoll_lifecycle_polls_total",
			Help: "Lifecycle monitor polls by resulting state.",
		}, []string{"state"}),
		ProverRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "veilpoll_prover_requests_total",
			Help: "Proof service requests by outcome.",
		}, []string{"outcome"}),
		DecryptFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "veilpoll_decrypt_failures_total",
			Help: "Content decryptions that failed the integrity check.",
		}),
		LoginsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "veilpoll_logins_completed_total",
			Help: "Completed federated logins.",
		}),
		SessionsDiscarded: factory.NewCounter(prometheus.CounterOpts{
			Name: "veilpoll_sessions_discarded_total",
			Help: "Ephemeral sessions discarded on expiry.",
		}),
		registry: registry,
	}
}

// Handler serves the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
