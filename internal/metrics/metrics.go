// Package metrics exports plugin timings to Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Timer is a host.Metrics sink backed by a histogram.
//
// Timing names follow the statsd convention "<prefix>.<op>.<object key>".
// Only prefix and op become labels; the object key would give every stored
// image its own series.
type Timer struct {
	durations *prometheus.HistogramVec
}

// NewTimer registers the histogram with reg.
func NewTimer(reg prometheus.Registerer) (*Timer, error) {
	durations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "result_storage",
		Name:      "operation_duration_seconds",
		Help:      "Duration of result storage operations against the object store.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"prefix", "op"})

	if err := reg.Register(durations); err != nil {
		return nil, err
	}
	return &Timer{durations: durations}, nil
}

// Timing records d under the prefix and op parsed from name.
func (t *Timer) Timing(name string, d time.Duration) {
	prefix, op := splitName(name)
	t.durations.WithLabelValues(prefix, op).Observe(d.Seconds())
}

func splitName(name string) (prefix, op string) {
	parts := strings.SplitN(name, ".", 3)
	switch len(parts) {
	case 1:
		return parts[0], ""
	default:
		return parts[0], parts[1]
	}
}

// Handler exposes the registry in the Prometheus text format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
