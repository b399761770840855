package store

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/graph"
)

// Config configures a Store
type Config struct {
	MinDepth        uint32         // shallowest depth persisted by saves, default MinDepth
	WriteBufferSize int            // bytes buffered before each write, default 1MB
	MaxLoadRecords  int64          // refuse to load files holding more records, default 1<<28
	Logger          zerolog.Logger // zero value discards output
	Metrics         *Metrics       // optional
}

// Store is an in-memory experience index backed by one or more files.
//
// Loads run on a background goroutine. Probe, Save and a second Load are only
// meaningful once WaitForLoad has returned; Store does not enforce this.
type Store struct {
	cfg     Config
	log     zerolog.Logger
	metrics *Metrics

	index   *Index
	pv      []Record
	multiPV []Record

	// ctx is cancelled by Close to abort an in-flight load.
	ctx    context.Context
	cancel context.CancelFunc

	loadMu    sync.Mutex // serializes Load
	mu        sync.Mutex // guards fields below
	load      *loadTask
	lastErr   error
	lastStats LoadStats
}

// New creates an empty Store
func New(cfg Config) *Store {
	if cfg.MinDepth == 0 {
		cfg.MinDepth = MinDepth
	}
	if cfg.WriteBufferSize <= 0 {
		cfg.WriteBufferSize = 1 << 20
	}
	if cfg.MaxLoadRecords <= 0 {
		cfg.MaxLoadRecords = 1 << 28
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Store{
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
		index:   NewIndex(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Close aborts any in-flight load and waits for it to stop. Pending records
// are not saved.
func (s *Store) Close() error {
	s.cancel()
	if err := s.WaitForLoad(); err != nil && !errors.Is(err, ErrLoadAborted) {
		s.log.Debug().Err(err).Msg("last experience load had failed")
	}
	return nil
}

// Probe returns the chain for key, best candidate first.
func (s *Store) Probe(key graph.Fingerprint) (Node, bool) {
	return s.index.Probe(key)
}

// Index exposes the underlying chain index.
func (s *Store) Index() *Index {
	return s.index
}

// AddPV queues a principal-variation result for the next save.
func (s *Store) AddPV(rec Record) {
	s.pv = append(s.pv, rec)
}

// AddMultiPV queues a secondary-line result for the next save.
func (s *Store) AddMultiPV(rec Record) {
	s.multiPV = append(s.multiPV, rec)
}

// HasPending reports whether there are queued records not yet saved.
func (s *Store) HasPending() bool {
	return len(s.pv) > 0 || len(s.multiPV) > 0
}

// Stats returns a snapshot of the store's contents.
func (s *Store) Stats() Stats {
	return Stats{
		Positions:      s.index.Len(),
		Moves:          s.index.Moves(),
		PendingPV:      len(s.pv),
		PendingMultiPV: len(s.multiPV),
	}
}

// LastLoad returns the statistics of the most recent successful load.
func (s *Store) LastLoad() LoadStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStats
}
