package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"docvault/internal/model"
)

// Metrics holds the service-level prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	operations      *prometheus.CounterVec
	integrityFaults prometheus.Counter
	extractDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docvault_operations_total",
				Help: "File operations by outcome.",
			},
			[]string{"op", "outcome"},
		),
		integrityFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docvault_integrity_faults_total",
			Help: "Detected or caused violations of the blob/content invariant.",
		}),
		extractDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docvault_extraction_duration_seconds",
				Help:    "Time spent extracting text, by bucket.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"bucket"},
		),
	}
	for _, c := range []prometheus.Collector{m.operations, m.integrityFaults, m.extractDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeOp(op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = KindOf(err).String()
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	if err != nil && KindOf(err) == KindIntegrity {
		m.integrityFaults.Inc()
	}
}

func (m *Metrics) observeExtract(bucket model.Bucket, d time.Duration) {
	if m == nil {
		return
	}
	m.extractDuration.WithLabelValues(bucket.String()).Observe(d.Seconds())
}
