package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LoginsStarted    prometheus.Counter
	LoginsSucceeded  prometheus.Counter
	LoginsFailed     prometheus.Counter
	UsersCreated     prometheus.Counter
	SessionsMinted   prometheus.Counter
	SessionsRedeemed prometheus.Counter
	SessionsRejected prometheus.Counter
	TokensRefreshed  prometheus.Counter
	RequestLatency   *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return newWithRegisterer(prometheus.DefaultRegisterer)
}

// NewForTest registers metrics on a private registry so parallel tests do not
// collide on duplicate registration.
func NewForTest() *Metrics {
	return newWithRegisterer(prometheus.NewRegistry())
}

func newWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		LoginsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_logins_started_total",
			Help: "Total OAuth callbacks received with an authorization code",
		}),
		LoginsSucceeded: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_logins_succeeded_total",
			Help: "Total logins that minted a handoff session",
		}),
		LoginsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_logins_failed_total",
			Help: "Total logins that failed (provider error, exchange failure, persistence)",
		}),
		UsersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_users_created_total",
			Help: "Total users created from first-time Strava logins",
		}),
		SessionsMinted: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_handoff_sessions_minted_total",
			Help: "Total handoff session tokens minted",
		}),
		SessionsRedeemed: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_handoff_sessions_redeemed_total",
			Help: "Total handoff session tokens redeemed successfully",
		}),
		SessionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_handoff_sessions_rejected_total",
			Help: "Total redeem attempts rejected (unknown, expired, or replayed token)",
		}),
		TokensRefreshed: factory.NewCounter(prometheus.CounterOpts{
			Name: "peryon_tokens_refreshed_total",
			Help: "Total credential bundles replaced via the refresh endpoint",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peryon_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status class",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}
