package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const (
	MatchJobReasonTimeout     = "timeout"
	MatchJobReasonProvider    = "provider_error"
	MatchJobReasonDB          = "db"
	MatchJobReasonQueueFull   = "queue_full"
	MatchJobReasonMaxAttempts = "max_attempts"
)

// Metrics captures platform health signals: quota enforcement outcomes,
// ledger write reliability, payment events and match worker throughput.
type Metrics struct {
	usageEvents         *prometheus.CounterVec
	ledgerWriteFailures *prometheus.CounterVec
	enforcerDecisions   *prometheus.CounterVec
	limitExceeded       *prometheus.CounterVec
	paymentEvents       *prometheus.CounterVec
	matchJobs           *prometheus.CounterVec
	matchJobErrors      *prometheus.CounterVec
	matchJobDuration    *prometheus.HistogramVec
	matchQueueDepth     prometheus.Gauge
	rateLimitDenied     *prometheus.CounterVec
}

// New registers the platform instruments against the given registerer.
func New(registerer prometheus.Registerer) (*Metrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	usageEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_usage_events_total",
		Help: "Usage ledger events recorded, by action and outcome.",
	}, []string{"action", "outcome"})
	ledgerWriteFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_ledger_write_failures_total",
		Help: "Usage ledger append failures by action.",
	}, []string{"action"})
	enforcerDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_enforcer_decisions_total",
		Help: "Quota enforcement decisions by action and result.",
	}, []string{"action", "result"})
	limitExceeded := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_limit_exceeded_total",
		Help: "Requests rejected because a plan quota was exhausted.",
	}, []string{"action", "tier"})
	paymentEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_payment_events_total",
		Help: "Payment gateway events by provider and event type.",
	}, []string{"provider", "event_type"})
	matchJobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_match_jobs_total",
		Help: "AI match jobs processed by final status.",
	}, []string{"status"})
	matchJobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_match_job_errors_total",
		Help: "AI match job errors by low-cardinality reason.",
	}, []string{"reason"})
	matchJobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "careerhub_match_job_duration_seconds",
		Help:    "AI match job latency including provider calls and retries.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
	}, []string{"scorer"})
	matchQueueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "careerhub_match_queue_depth",
		Help: "Pending jobs in the match worker queue.",
	})
	rateLimitDenied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "careerhub_rate_limit_denied_total",
		Help: "Requests denied by the edge rate limiter.",
	}, []string{"endpoint"})

	collectors := []prometheus.Collector{
		usageEvents,
		ledgerWriteFailures,
		enforcerDecisions,
		limitExceeded,
		paymentEvents,
		matchJobs,
		matchJobErrors,
		matchJobDuration,
		matchQueueDepth,
		rateLimitDenied,
	}
	for _, collector := range collectors {
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return nil, err
		}
	}

	return &Metrics{
		usageEvents:         usageEvents,
		ledgerWriteFailures: ledgerWriteFailures,
		enforcerDecisions:   enforcerDecisions,
		limitExceeded:       limitExceeded,
		paymentEvents:       paymentEvents,
		matchJobs:           matchJobs,
		matchJobErrors:      matchJobErrors,
		matchJobDuration:    matchJobDuration,
		matchQueueDepth:     matchQueueDepth,
		rateLimitDenied:     rateLimitDenied,
	}, nil
}

func (m *Metrics) IncUsageEvent(action, outcome string) {
	if m == nil {
		return
	}
	m.usageEvents.WithLabelValues(strings.TrimSpace(action), strings.TrimSpace(outcome)).Inc()
}

func (m *Metrics) IncLedgerWriteFailure(action string) {
	if m == nil {
		return
	}
	m.ledgerWriteFailures.WithLabelValues(strings.TrimSpace(action)).Inc()
}

func (m *Metrics) IncEnforcerDecision(action, result string) {
	if m == nil {
		return
	}
	m.enforcerDecisions.WithLabelValues(strings.TrimSpace(action), strings.TrimSpace(result)).Inc()
}

func (m *Metrics) IncLimitExceeded(action, tier string) {
	if m == nil {
		return
	}
	m.limitExceeded.WithLabelValues(strings.TrimSpace(action), strings.TrimSpace(tier)).Inc()
}

func (m *Metrics) IncPaymentEvent(provider, eventType string) {
	if m == nil {
		return
	}
	m.paymentEvents.WithLabelValues(strings.TrimSpace(provider), strings.TrimSpace(eventType)).Inc()
}

func (m *Metrics) IncMatchJob(status string) {
	if m == nil {
		return
	}
	m.matchJobs.WithLabelValues(strings.TrimSpace(status)).Inc()
}

func (m *Metrics) IncMatchJobError(reason string) {
	if m == nil {
		return
	}
	m.matchJobErrors.WithLabelValues(strings.TrimSpace(reason)).Inc()
}

func (m *Metrics) ObserveMatchJobDuration(scorer string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.matchJobDuration.WithLabelValues(strings.TrimSpace(scorer)).Observe(elapsed.Seconds())
}

func (m *Metrics) SetMatchQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.matchQueueDepth.Set(float64(depth))
}

func (m *Metrics) IncRateLimitDenied(endpoint string) {
	if m == nil {
		return
	}
	m.rateLimitDenied.WithLabelValues(strings.TrimSpace(endpoint)).Inc()
}

func provideRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

var Module = fx.Module("observability.metrics",
	fx.Provide(provideRegisterer, New),
)
