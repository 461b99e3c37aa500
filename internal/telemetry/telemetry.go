package telemetry

import (
	"errors"
	"time"

	"journal_backend/internal/failure"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives the workbook stack's runtime events. Calls happen
// inline with request handling and must not block.
type Collector interface {
	ObserveRemoteCall(op string, err error, elapsed time.Duration)
	IncTokenExchange(err error)
	IncCellCoercion(status string)
	ObserveWriteWait(wait time.Duration)
}

type noopCollector struct{}

// Noop returns a collector that discards everything.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) ObserveRemoteCall(string, error, time.Duration) {}
func (noopCollector) IncTokenExchange(error)                          {}
func (noopCollector) IncCellCoercion(string)                          {}
func (noopCollector) ObserveWriteWait(time.Duration)                  {}

// PrometheusCollector exposes the events as Prometheus metrics.
type PrometheusCollector struct {
	remoteCalls    *prometheus.CounterVec
	remoteDuration *prometheus.HistogramVec
	tokenExchanges *prometheus.CounterVec
	coercions      *prometheus.CounterVec
	writeWait      prometheus.Histogram
}

// NewPrometheusCollector registers the metrics with reg, reusing collectors
// that are already registered under the same name.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &PrometheusCollector{}
	var err error

	if c.remoteCalls, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_remote_calls_total",
		Help: "Workbook API calls by operation and outcome code.",
	}, []string{"op", "outcome"})); err != nil {
		return nil, err
	}
	if c.remoteDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "journal_remote_call_duration_seconds",
		Help:    "Latency of workbook API calls.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
	}, []string{"op"})); err != nil {
		return nil, err
	}
	if c.tokenExchanges, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_token_exchanges_total",
		Help: "Client-credentials exchanges against the identity provider.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.coercions, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "journal_cell_coercions_total",
		Help: "Single-cell reads by coercion status; anything but number and empty rendered as zero.",
	}, []string{"status"})); err != nil {
		return nil, err
	}
	if c.writeWait, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "journal_write_lock_wait_seconds",
		Help:    "Time mutating calls spent waiting for the workbook write lock.",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
	})); err != nil {
		return nil, err
	}
	return c, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, collector T) (T, error) {
	if err := reg.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, err
	}
	return collector, nil
}

func (c *PrometheusCollector) ObserveRemoteCall(op string, err error, elapsed time.Duration) {
	c.remoteCalls.WithLabelValues(op, failure.Code(err)).Inc()
	c.remoteDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (c *PrometheusCollector) IncTokenExchange(err error) {
	c.tokenExchanges.WithLabelValues(failure.Code(err)).Inc()
}

func (c *PrometheusCollector) IncCellCoercion(status string) {
	c.coercions.WithLabelValues(status).Inc()
}

func (c *PrometheusCollector) ObserveWriteWait(wait time.Duration) {
	c.writeWait.Observe(wait.Seconds())
}
