package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder for Prometheus.
type PrometheusRecorder struct {
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	txCreated    *prometheus.CounterVec
	txAmount     *prometheus.HistogramVec
	txRejected   *prometheus.CounterVec
	stateChanges *prometheus.CounterVec

	eventsPublished *prometheus.CounterVec
	circuitState    *prometheus.GaugeVec
	rateLimited     *prometheus.CounterVec
}

// NewPrometheusRecorder creates the collectors under the given namespace.
func NewPrometheusRecorder(namespace string) *PrometheusRecorder {
	return &PrometheusRecorder{
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latencies in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		txCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_created_total",
				Help:      "Transactions committed, by description",
			},
			[]string{"description"},
		),
		txAmount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_amount",
				Help:      "Amounts of committed transactions",
				Buckets:   []float64{10, 50, 100, 250, 500, 1000, 5000, 10000},
			},
			[]string{"description"},
		),
		txRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_rejected_total",
				Help:      "Transaction requests rejected by the engine, by reason",
			},
			[]string{"reason"},
		),
		stateChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_state_changes_total",
				Help:      "Transaction state updates",
			},
			[]string{"from", "to"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Transaction events handed to the broker",
			},
			[]string{"result"},
		),
		circuitState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		rateLimited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_requests_total",
				Help:      "Requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),
	}
}

// Register registers all metrics with the given registry.
func (p *PrometheusRecorder) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		p.httpRequests,
		p.httpDuration,
		p.txCreated,
		p.txAmount,
		p.txRejected,
		p.stateChanges,
		p.eventsPublished,
		p.circuitState,
		p.rateLimited,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}
	return nil
}

func (p *PrometheusRecorder) RecordRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusRecorder) RecordTransactionCreated(description string, amount float64) {
	p.txCreated.WithLabelValues(description).Inc()
	p.txAmount.WithLabelValues(description).Observe(amount)
}

func (p *PrometheusRecorder) RecordTransactionRejected(reason string) {
	p.txRejected.WithLabelValues(reason).Inc()
}

func (p *PrometheusRecorder) RecordStateChange(from, to string) {
	p.stateChanges.WithLabelValues(from, to).Inc()
}

func (p *PrometheusRecorder) RecordEventPublish(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	p.eventsPublished.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) RecordCircuitState(name string, state CircuitState) {
	p.circuitState.WithLabelValues(name).Set(float64(state))
}

func (p *PrometheusRecorder) RecordRateLimited(route string) {
	p.rateLimited.WithLabelValues(route).Inc()
}
