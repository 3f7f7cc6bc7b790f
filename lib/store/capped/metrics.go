package capped

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// storeMetrics holds the counters and gauges of one store.
// Every store owns its own metrics.Set, so stores with the same name never share counters.
type storeMetrics struct {
	set            *metrics.Set
	inserts        *metrics.Counter
	evictions      *metrics.Counter
	evictionSkips  *metrics.Counter
	evictionErrors *metrics.Counter
}

func newStoreMetrics(s *Store) *storeMetrics {
	set := metrics.NewSet()
	name := func(metric string) string {
		return fmt.Sprintf("%s{store=%q}", metric, s.name)
	}

	m := &storeMetrics{
		set:            set,
		inserts:        set.NewCounter(name("dcap_inserts_total")),
		evictions:      set.NewCounter(name("dcap_evictions_total")),
		evictionSkips:  set.NewCounter(name("dcap_eviction_skips_total")),
		evictionErrors: set.NewCounter(name("dcap_eviction_errors_total")),
	}

	set.NewGauge(name("dcap_size_bytes"), func() float64 {
		return float64(s.db.TotalBytes())
	})
	set.NewGauge(name("dcap_docs"), func() float64 {
		return float64(s.db.TotalDocs())
	})
	set.NewGauge(name("dcap_max_bytes"), func() float64 {
		return float64(s.maxBytes)
	})
	set.NewGauge(name("dcap_pending_ids"), func() float64 {
		return float64(s.tracker.Pending())
	})

	return m
}

// WritePrometheus writes the metrics of the store in Prometheus text format
func (s *Store) WritePrometheus(w io.Writer) {
	s.metrics.set.WritePrometheus(w)
}
