// Package prometheus adapts core.MetricsRecorder to Prometheus collectors.
package prometheus

import (
	"context"
	"strings"
	"sync"

	"github.com/goliatone/go-websub/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels are fixed per collector; tags outside this set are dropped and
// missing ones are reported as empty strings.
var Labels = []string{"operation", "status", "mode", "outcome"}

var defaultBuckets = []float64{1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500}

type Recorder struct {
	factory    promauto.Factory
	buckets    []float64
	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
}

type Option func(*Recorder)

// WithBuckets overrides the histogram buckets (milliseconds).
func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

// NewRecorder registers collectors lazily on registerer. A nil registerer
// falls back to prometheus.DefaultRegisterer.
func NewRecorder(registerer prometheus.Registerer, opts ...Option) *Recorder {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	recorder := &Recorder{
		factory:    promauto.With(registerer),
		buckets:    defaultBuckets,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(recorder)
		}
	}
	return recorder
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	metric := MetricName(name)
	if metric == "" {
		return
	}
	r.mu.Lock()
	vec, ok := r.counters[metric]
	if !ok {
		vec = r.factory.NewCounterVec(prometheus.CounterOpts{
			Name: metric,
			Help: "WebSub subscriber counter " + strings.TrimSpace(name),
		}, Labels)
		r.counters[metric] = vec
	}
	r.mu.Unlock()
	vec.WithLabelValues(labelValues(tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	metric := MetricName(name)
	if metric == "" {
		return
	}
	r.mu.Lock()
	vec, ok := r.histograms[metric]
	if !ok {
		vec = r.factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    "WebSub subscriber histogram " + strings.TrimSpace(name),
			Buckets: r.buckets,
		}, Labels)
		r.histograms[metric] = vec
	}
	r.mu.Unlock()
	vec.WithLabelValues(labelValues(tags)...).Observe(value)
}

// MetricName maps dotted recorder names onto the Prometheus name charset,
// e.g. websub.verify.total becomes websub_verify_total.
func MetricName(name string) string {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r == '_', r == ':':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

func labelValues(tags map[string]string) []string {
	values := make([]string, len(Labels))
	for i, label := range Labels {
		values[i] = strings.TrimSpace(tags[label])
	}
	return values
}

var _ core.MetricsRecorder = (*Recorder)(nil)
