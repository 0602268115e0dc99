// Package metrics contains definitions of the prometheus metrics that we use
// in VPN Sentinel.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// constants with the namespace and the subsystem names that we use in our
// prometheus metrics.
const (
	namespace = "vpnsentinel"

	subsystemAPI         = "api"
	subsystemApplication = "app"
	subsystemNotifier    = "notifier"
	subsystemRegistry    = "registry"
)

// SetUpGauge signals that the server has been started.  We're using a
// function here to avoid circular dependencies.
func SetUpGauge(version, committime, branch, revision, goversion string) {
	upGauge := promauto.NewGauge(
		prometheus.GaugeOpts{
			Name:      "up",
			Namespace: namespace,
			Subsystem: subsystemApplication,
			Help: `A metric with a constant '1' value labeled by version and ` +
				`goversion from which the program was built.`,
			ConstLabels: prometheus.Labels{
				"version":    version,
				"committime": committime,
				"branch":     branch,
				"revision":   revision,
				"goversion":  goversion,
			},
		},
	)

	upGauge.Set(1)
}

var (
	// KeepalivesTotal is the number of keepalive requests processed, labeled
	// by result: "accepted", "invalid", "unauthorized", or "ratelimited".
	KeepalivesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "keepalives_total",
		Namespace: namespace,
		Subsystem: subsystemAPI,
		Help:      "The number of processed keepalive requests by result.",
	}, []string{"result"})

	// RateLimitDroppedTotal is the number of requests rejected by the per-IP
	// rate limiter.
	RateLimitDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name:      "ratelimit_dropped_total",
		Namespace: namespace,
		Subsystem: subsystemAPI,
		Help:      "The number of requests dropped by the rate limiter.",
	})
)

var (
	// ClientsCountGauge is the current number of known clients.
	ClientsCountGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "clients_count",
		Namespace: namespace,
		Subsystem: subsystemRegistry,
		Help:      "The current number of clients in the registry.",
	})

	// ClientsOnlineGauge is the current number of clients in an online state.
	ClientsOnlineGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:      "clients_online",
		Namespace: namespace,
		Subsystem: subsystemRegistry,
		Help:      "The current number of online clients in the registry.",
	})

	// TransitionsTotal is the number of emitted state transitions, labeled by
	// notification kind.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "transitions_total",
		Namespace: namespace,
		Subsystem: subsystemRegistry,
		Help:      "The number of emitted client state transitions by kind.",
	}, []string{"kind"})
)

var (
	// NotificationsTotal is the number of outbound notification sends, labeled
	// by kind and result: "ok", "error", or "dropped".
	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name:      "notifications_total",
		Namespace: namespace,
		Subsystem: subsystemNotifier,
		Help:      "The number of outbound notifications by kind and result.",
	}, []string{"kind", "result"})
)
