package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder exports engine activity to Prometheus.
type Recorder struct {
	outcomes     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	uploads      prometheus.Counter
	fileDuration prometheus.Histogram
	fanOut       prometheus.Histogram
}

// NewRecorder registers the upload metrics on reg. Metrics that are already
// registered are reused.
func NewRecorder(namespace string, reg prometheus.Registerer) (*Recorder, error) {
	if namespace == "" {
		namespace = "mediafanout"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	outcomes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transform_outcomes_total",
		Help:      "Transform outcomes by transform id, status and failure kind.",
	}, []string{"transform", "status", "kind"}))
	if err != nil {
		return nil, err
	}

	taskDuration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transform_duration_seconds",
		Help:      "Time spent transforming and uploading one output.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"transform"}))
	if err != nil {
		return nil, err
	}

	uploads, err := register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "files_handled_total",
		Help:      "Files run through the transform set.",
	}))
	if err != nil {
		return nil, err
	}

	fileDuration, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "file_duration_seconds",
		Help:      "Time from receiving a file until every transform finished.",
		Buckets:   prometheus.DefBuckets,
	}))
	if err != nil {
		return nil, err
	}

	fanOut, err := register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transforms_per_file",
		Help:      "Transforms launched for one file.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 6),
	}))
	if err != nil {
		return nil, err
	}

	return &Recorder{
		outcomes:     outcomes,
		taskDuration: taskDuration,
		uploads:      uploads,
		fileDuration: fileDuration,
		fanOut:       fanOut,
	}, nil
}

func (r *Recorder) RecordOutcome(transformID string, status domain.OutcomeStatus, kind domain.ErrorKind, d time.Duration) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(transformID, string(status), string(kind)).Inc()
	r.taskDuration.WithLabelValues(transformID).Observe(d.Seconds())
}

func (r *Recorder) RecordInvocation(transforms int, d time.Duration) {
	if r == nil {
		return
	}
	r.uploads.Inc()
	r.fileDuration.Observe(d.Seconds())
	r.fanOut.Observe(float64(transforms))
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		var zero C
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return c, nil
}
