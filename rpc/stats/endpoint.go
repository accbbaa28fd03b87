package stats

import (
	"fmt"
	"time"

	"github.com/rcrowley/go-metrics"
)

// histogramSampleSize is the reservoir size of the latency histogram
const histogramSampleSize = 1028

// EndpointStats tracks the calls and latencies of one endpoint.
// It only uses counters and a sampled histogram, none of which start goroutines.
type EndpointStats struct {
	name    string
	calls   metrics.Counter
	errors  metrics.Counter
	latency metrics.Histogram
}

// NewEndpointStats creates the statistics of the endpoint called name
func NewEndpointStats(name string) *EndpointStats {
	return &EndpointStats{
		name:    name,
		calls:   metrics.NewCounter(),
		errors:  metrics.NewCounter(),
		latency: metrics.NewHistogram(metrics.NewExpDecaySample(histogramSampleSize, 0.015)),
	}
}

// Observe records one finished call
func (s *EndpointStats) Observe(d time.Duration, err error) {
	s.calls.Inc(1)
	if err != nil {
		s.errors.Inc(1)
	}
	s.latency.Update(d.Microseconds())
}

// Calls returns the number of observed calls
func (s *EndpointStats) Calls() int64 {
	return s.calls.Count()
}

// Errors returns the number of observed failed calls
func (s *EndpointStats) Errors() int64 {
	return s.errors.Count()
}

// Snapshot renders the statistics, it is empty as long as no call was observed
func (s *EndpointStats) Snapshot() string {
	calls := s.calls.Count()
	if calls == 0 {
		return ""
	}
	h := s.latency.Snapshot()
	ps := h.Percentiles([]float64{0.5, 0.99})
	return fmt.Sprintf("%s calls=%d errors=%d p50=%s p99=%s max=%s",
		s.name, calls, s.errors.Count(),
		micros(ps[0]), micros(ps[1]), micros(float64(h.Max())))
}

func micros(v float64) time.Duration {
	return time.Duration(v) * time.Microsecond
}
