// Package metrics exposes the authlink counters through Prometheus.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements authlink.Metrics on top of Prometheus counters.
type Collector struct {
	tokensIssued   prometheus.Counter
	tokensRejected *prometheus.CounterVec
	tokensRevoked  prometheus.Counter
	usesRecorded   prometheus.Counter
	usesFailed     prometheus.Counter
	authsLinked    *prometheus.CounterVec
	attempts       *prometheus.CounterVec
}

// NewCollector creates the counters and registers them with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authlink_tokens_issued_total",
			Help: "Number of bearer tokens issued",
		}),
		tokensRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlink_tokens_rejected_total",
			Help: "Number of rejected tokens by reason",
		}, []string{"reason"}),
		tokensRevoked: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authlink_tokens_revoked_total",
			Help: "Number of revoked tokens",
		}),
		usesRecorded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authlink_token_uses_total",
			Help: "Number of recorded token uses",
		}),
		usesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authlink_token_use_failures_total",
			Help: "Number of token uses that could not be recorded",
		}),
		authsLinked: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlink_auths_linked_total",
			Help: "Number of link operations by outcome",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authlink_login_attempts_total",
			Help: "Number of recorded login attempts",
		}, []string{"successful"}),
	}

	reg.MustRegister(
		c.tokensIssued,
		c.tokensRejected,
		c.tokensRevoked,
		c.usesRecorded,
		c.usesFailed,
		c.authsLinked,
		c.attempts,
	)

	return c
}

func (c *Collector) TokenIssued() {
	c.tokensIssued.Inc()
}

func (c *Collector) TokenRejected(reason string) {
	c.tokensRejected.WithLabelValues(reason).Inc()
}

func (c *Collector) TokensRevoked(count int) {
	if count > 0 {
		c.tokensRevoked.Add(float64(count))
	}
}

func (c *Collector) UsageRecorded() {
	c.usesRecorded.Inc()
}

func (c *Collector) UsageFailed() {
	c.usesFailed.Inc()
}

func (c *Collector) AuthLinked(outcome string) {
	c.authsLinked.WithLabelValues(outcome).Inc()
}

func (c *Collector) AttemptRecorded(successful bool) {
	c.attempts.WithLabelValues(strconv.FormatBool(successful)).Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
