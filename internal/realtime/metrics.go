package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the daemon's prometheus metrics.
type Metrics struct {
	ReadsMapped     prometheus.Counter
	ReadsUnmapped   *prometheus.CounterVec
	ChunksProcessed prometheus.Counter
	EventsProcessed prometheus.Counter
	ActiveChannels  prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the provided registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	readsMapped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uncalled_reads_mapped_total",
		Help: "Total reads confidently mapped to the reference",
	})

	readsUnmapped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uncalled_reads_unmapped_total",
		Help: "Total reads that ended without a mapping",
	}, []string{"reason"})

	chunksProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uncalled_chunks_processed_total",
		Help: "Total signal chunks consumed",
	})

	eventsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "uncalled_events_processed_total",
		Help: "Total events produced by event detection",
	})

	activeChannels := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "uncalled_active_channels",
		Help: "Channels with a read currently in flight",
	})

	reg.MustRegister(readsMapped, readsUnmapped, chunksProcessed, eventsProcessed, activeChannels)

	return &Metrics{
		ReadsMapped:     readsMapped,
		ReadsUnmapped:   readsUnmapped,
		ChunksProcessed: chunksProcessed,
		EventsProcessed: eventsProcessed,
		ActiveChannels:  activeChannels,
	}
}
