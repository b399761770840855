package store

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LoadStats describes one completed load.
type LoadStats struct {
	Path           string
	Bytes          int64
	Moves          int // records read from the file
	NewPositions   int // fingerprints not present before the load
	DuplicateMoves int // records merged into an existing node
	Elapsed        time.Duration
}

// Fragmentation is the share of records that were duplicates, in percent.
func (s LoadStats) Fragmentation() float64 {
	if s.Moves == 0 {
		return 0
	}
	return 100 * float64(s.DuplicateMoves) / float64(s.Moves)
}

// SaveStats describes one completed save.
type SaveStats struct {
	Path      string
	Full      bool
	Positions int // fingerprints written from the index (full saves only)
	Moves     int // index records written (full saves only)
	PV        int
	MultiPV   int
	Bytes     int64
}

// Stats is a snapshot of a store's contents.
type Stats struct {
	Positions      int
	Moves          int
	PendingPV      int
	PendingMultiPV int
}

// Metrics holds the store's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	Loads          *prometheus.CounterVec
	RecordsLoaded  prometheus.Counter
	DuplicateMoves prometheus.Counter
	Saves          *prometheus.CounterVec
	RecordsWritten prometheus.Counter
	BackupRestores prometheus.Counter
}

// NewMetrics creates the store collectors and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "store",
			Name:      "loads_total",
			Help:      "Experience file loads by result.",
		}, []string{"result"}),
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "store",
			Name:      "records_loaded_total",
			Help:      "Records read from experience files.",
		}),
		DuplicateMoves: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "store",
			Name:      "duplicate_moves_total",
			Help:      "Loaded records merged into an existing chain node.",
		}),
		Saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "store",
			Name:      "saves_total",
			Help:      "Experience saves by mode and result.",
		}, []string{"mode", "result"}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "store",
			Name:      "records_written_total",
			Help:      "Records written to experience files.",
		}),
		BackupRestores: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "chessexp",
			Subsystem: "store",
			Name:      "backup_restores_total",
			Help:      "Backups renamed back into place after a failed full save.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Loads, m.RecordsLoaded, m.DuplicateMoves, m.Saves, m.RecordsWritten, m.BackupRestores)
	}
	return m
}

func (m *Metrics) observeLoad(result string, st LoadStats) {
	if m == nil {
		return
	}
	m.Loads.WithLabelValues(result).Inc()
	m.RecordsLoaded.Add(float64(st.Moves))
	m.DuplicateMoves.Add(float64(st.DuplicateMoves))
}

func (m *Metrics) observeSave(full bool, err error, st SaveStats) {
	if m == nil {
		return
	}
	mode := "incremental"
	if full {
		mode = "full"
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.Saves.WithLabelValues(mode, result).Inc()
	if err == nil {
		m.RecordsWritten.Add(float64(st.Moves + st.PV + st.MultiPV))
	}
}

func (m *Metrics) observeRestore() {
	if m == nil {
		return
	}
	m.BackupRestores.Inc()
}
