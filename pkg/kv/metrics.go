package kv

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Version is the current store version.
	Version prometheus.GaugeFunc

	// Entries is the number of entries in the store.
	Entries prometheus.GaugeFunc

	// LocalWrites is the total number of local writes.
	LocalWrites prometheus.Counter

	// Merges is the total number of remote snapshots merged, labelled by
	// whether the snapshot was 'accepted' or 'stale'.
	Merges *prometheus.CounterVec
}

func newMetrics(s *Store) *Metrics {
	return &Metrics{
		Version: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "dnd",
				Subsystem: "kv",
				Name:      "version",
				Help:      "Current store version",
			},
			func() float64 {
				return float64(s.Version())
			},
		),
		Entries: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: "dnd",
				Subsystem: "kv",
				Name:      "entries",
				Help:      "Number of entries in the store",
			},
			func() float64 {
				return float64(s.Len())
			},
		),
		LocalWrites: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "kv",
				Name:      "local_writes_total",
				Help:      "Total number of local writes",
			},
		),
		Merges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "dnd",
				Subsystem: "kv",
				Name:      "merges_total",
				Help:      "Total number of remote snapshots merged",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Version,
		m.Entries,
		m.LocalWrites,
		m.Merges,
	)
}
