package goGuard

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricID names an engine event counted by [Metrics].
type MetricID uint16

const (
	MetricLoginSuccess MetricID = iota
	MetricLoginFailure
	MetricLoginLockedOut
	MetricLoginPasswordExpired
	MetricAccountLocked
	MetricAccountUnlocked
	MetricPasswordChangeSuccess
	MetricPasswordChangeInvalidOld
	MetricPasswordChangeReuseRejected
	MetricPasswordChangePolicyRejected
	MetricPasswordReset
	MetricPasswordRehashed
	MetricAccountCreationSuccess
	MetricAccountCreationDuplicate
	MetricAccountUpdated
	MetricTokenRejected
	MetricStoreError

	metricIDCount
)

var metricNames = [metricIDCount]string{
	MetricLoginSuccess:                 "login_success",
	MetricLoginFailure:                 "login_failure",
	MetricLoginLockedOut:               "login_locked_out",
	MetricLoginPasswordExpired:         "login_password_expired",
	MetricAccountLocked:                "account_locked",
	MetricAccountUnlocked:              "account_unlocked",
	MetricPasswordChangeSuccess:        "password_change_success",
	MetricPasswordChangeInvalidOld:     "password_change_invalid_old",
	MetricPasswordChangeReuseRejected:  "password_change_reuse_rejected",
	MetricPasswordChangePolicyRejected: "password_change_policy_rejected",
	MetricPasswordReset:                "password_reset",
	MetricPasswordRehashed:             "password_rehashed",
	MetricAccountCreationSuccess:       "account_creation_success",
	MetricAccountCreationDuplicate:     "account_creation_duplicate",
	MetricAccountUpdated:               "account_updated",
	MetricTokenRejected:                "token_rejected",
	MetricStoreError:                   "store_error",
}

// String returns the event label used on the events counter.
func (id MetricID) String() string {
	if id >= metricIDCount {
		return "unknown"
	}
	return metricNames[id]
}

// Metrics exposes engine counters and the login latency histogram through a
// prometheus registerer. A nil *Metrics is valid and records nothing.
type Metrics struct {
	events       *prometheus.CounterVec
	loginLatency prometheus.Histogram
	registerer   prometheus.Registerer
	namespace    string
}

// NewMetrics registers the engine collectors on reg. It returns nil when
// metrics are disabled.
func NewMetrics(cfg MetricsConfig, reg prometheus.Registerer) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "events_total",
			Help:      "Authentication engine events by type.",
		}, []string{"event"}),
		loginLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "login_duration_seconds",
			Help:      "Latency of Login calls, including password verification.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5},
		}),
		registerer: reg,
		namespace:  cfg.Namespace,
	}

	for _, c := range []prometheus.Collector{m.events, m.loginLatency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	// Pre-create every label so series exist at zero.
	for id := MetricID(0); id < metricIDCount; id++ {
		m.events.WithLabelValues(id.String())
	}
	return m, nil
}

// Inc increments the counter for id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricIDCount {
		return
	}
	m.events.WithLabelValues(id.String()).Inc()
}

// ObserveLogin records the duration of a Login call.
func (m *Metrics) ObserveLogin(d time.Duration) {
	if m == nil {
		return
	}
	m.loginLatency.Observe(d.Seconds())
}

func (m *Metrics) registerAuditDropped(dropped func() uint64) error {
	if m == nil || dropped == nil {
		return nil
	}
	c := prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "audit_dropped_total",
		Help:      "Audit events dropped because the dispatcher buffer was full.",
	}, func() float64 { return float64(dropped()) })
	if err := m.registerer.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			return nil
		}
		return err
	}
	return nil
}
