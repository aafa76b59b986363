package coordinator

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Clark-Hu/movie-reviews/internal/domain"
)

// Metrics holds the Prometheus collectors for coordinated writes.
type Metrics struct {
	Writes   *prometheus.CounterVec
	Aborts   *prometheus.CounterVec
	Duration *prometheus.HistogramVec
}

// NewMetrics creates and registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Writes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "movie_reviews_coordinated_writes_total",
			Help: "Coordinated writes by operation and outcome kind",
		}, []string{"op", "outcome"}),
		Aborts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "movie_reviews_coordinated_aborts_total",
			Help: "Aborted coordinated writes by operation and the last stage reached",
		}, []string{"op", "stage"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "movie_reviews_coordinated_write_duration_seconds",
			Help:    "Latency of coordinated writes including commit",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
}

func (m *Metrics) observe(op string, reached Stage, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Writes.WithLabelValues(op, domain.Kind(err)).Inc()
	if err != nil {
		m.Aborts.WithLabelValues(op, reached.String()).Inc()
	}
	m.Duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
