package ingest

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the converter's Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Games    *prometheus.CounterVec
	Rejected *prometheus.CounterVec
	Records  prometheus.Counter
}

// NewMetrics creates the ingest collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Games: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "ingest",
			Name:      "games_total",
			Help:      "Compact games read, by result.",
		}, []string{"result"}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "ingest",
			Name:      "rejected_games_total",
			Help:      "Games rejected by the result heuristics, by reason.",
		}, []string{"reason"}),
		Records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Records written from accepted games.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Games, m.Rejected, m.Records)
	}
	return m
}

func (m *Metrics) accepted(records int) {
	if m == nil {
		return
	}
	m.Games.WithLabelValues("accepted").Inc()
	m.Records.Add(float64(records))
}

func (m *Metrics) rejected(reason Reason) {
	if m == nil {
		return
	}
	m.Games.WithLabelValues("rejected").Inc()
	m.Rejected.WithLabelValues(string(reason)).Inc()
}
