package metrics

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tendant/simple-gallery/pkg/gallery"
)

// DefaultNamespace prefixes every gallery metric.
const DefaultNamespace = "gallery"

// PrometheusObserver exports mutation and blob store metrics to Prometheus.
type PrometheusObserver struct {
	mutations        *prometheus.CounterVec
	mutationDuration *prometheus.HistogramVec
	blobOps          *prometheus.CounterVec
	blobDuration     *prometheus.HistogramVec
}

// NewPrometheusObserver registers the gallery metrics with reg. A nil reg
// uses prometheus.DefaultRegisterer. Registering twice on the same registry
// reuses the existing collectors.
func NewPrometheusObserver(namespace string, reg prometheus.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	mutations, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "mutations_total",
		Help:      "Gallery mutations by operation, outcome and failure kind.",
	}, []string{"op", "outcome", "kind"}))
	if err != nil {
		return nil, err
	}
	mutationDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "mutation_duration_seconds",
		Help:      "Latency of gallery mutations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}
	blobOps, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "blob_operations_total",
		Help:      "Blob store calls by operation and status.",
	}, []string{"op", "status"}))
	if err != nil {
		return nil, err
	}
	blobDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "blob_operation_duration_seconds",
		Help:      "Latency of blob store calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"}))
	if err != nil {
		return nil, err
	}

	return &PrometheusObserver{
		mutations:        mutations,
		mutationDuration: mutationDuration,
		blobOps:          blobOps,
		blobDuration:     blobDuration,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, collector C) (C, error) {
	if err := reg.Register(collector); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register gallery metric: %w", err)
	}
	return collector, nil
}

// ObserveMutation records the outcome and latency of a mutation.
func (o *PrometheusObserver) ObserveMutation(op string, result gallery.Result, d time.Duration) {
	if o == nil {
		return
	}
	kind := string(result.Kind)
	if kind == "" {
		kind = "none"
	}
	o.mutations.WithLabelValues(op, result.Outcome.String(), kind).Inc()
	o.mutationDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveBlob records a blob store call.
func (o *PrometheusObserver) ObserveBlob(op string, d time.Duration, err error) {
	if o == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.blobOps.WithLabelValues(op, status).Inc()
	o.blobDuration.WithLabelValues(op).Observe(d.Seconds())
}

var _ gallery.Observer = (*PrometheusObserver)(nil)
