// Package experience owns the experience store used during play: it loads
// the configured file in the background, answers probes, collects new
// results while learning is enabled, and persists them.
package experience

import (
	"errors"
	"io/fs"
	"sync"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/store"
)

// DefaultFile is used when Config.Path is empty.
const DefaultFile = "experience.exp"

// ErrDisabled is returned by operations that need a loaded store.
var ErrDisabled = errors.New("experience is disabled")

// Config selects and configures the experience file.
type Config struct {
	Enabled  bool
	Path     string // default DefaultFile
	ReadOnly bool   // never record or save
	Store    store.Config
	Logger   zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Path == "" {
		c.Path = DefaultFile
	}
	return c
}

// Session is an explicitly owned experience handle. It is safe for
// concurrent use.
type Session struct {
	mu     sync.Mutex
	cfg    Config
	log    zerolog.Logger
	store  *store.Store // nil while disabled
	paused bool
}

// Open creates a session and, when enabled, starts loading cfg.Path in the
// background. A missing file is not an error: the store starts empty.
func Open(cfg Config) *Session {
	cfg = cfg.withDefaults()
	s := &Session{cfg: cfg, log: cfg.Logger}
	if cfg.Enabled {
		s.mu.Lock()
		s.loadLocked()
		s.mu.Unlock()
	}
	return s
}

// loadLocked replaces the store with a fresh one loading cfg.Path.
func (s *Session) loadLocked() {
	st := store.New(s.cfg.Store)
	if err := st.Load(s.cfg.Path, false); err != nil {
		s.log.Warn().Err(err).Str("path", s.cfg.Path).Msg("could not start experience load")
	}
	s.store = st
}

// unloadLocked saves pending experience and drops the store.
func (s *Session) unloadLocked() error {
	if s.store == nil {
		return nil
	}
	err := s.saveLocked()
	s.store.Close()
	s.store = nil
	return err
}

// Apply switches to a new configuration. The store is reloaded when the
// session becomes enabled or the path changes, and unloaded (after saving)
// when it becomes disabled.
func (s *Session) Apply(cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.cfg
	switch {
	case !cfg.Enabled:
		err := s.unloadLocked()
		s.cfg = cfg
		return err
	case !prev.Enabled || prev.Path != cfg.Path || s.store == nil:
		err := s.unloadLocked()
		s.cfg = cfg
		s.loadLocked()
		s.log.Info().Str("path", cfg.Path).Bool("read_only", cfg.ReadOnly).Msg("experience reloaded")
		return err
	}
	s.cfg = cfg
	return nil
}

// Enabled reports whether a store is loaded or loading.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil
}

// WaitForLoad blocks until the background load has finished. A missing file
// counts as success.
func (s *Session) WaitForLoad() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return ErrDisabled
	}
	return ignoreMissing(s.store.WaitForLoad())
}

func ignoreMissing(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Probe returns the stored candidates for key, best first. It waits for the
// background load to finish.
func (s *Session) Probe(key graph.Fingerprint) []store.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	_ = s.store.WaitForLoad()
	head, ok := s.store.Probe(key)
	if !ok {
		return nil
	}
	return head.Records()
}

// Prober returns a store.Prober over the loaded store, or nil while
// disabled. The background load has finished when it returns.
func (s *Session) Prober() store.Prober {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return nil
	}
	_ = s.store.WaitForLoad()
	return s.store
}

func (s *Session) recording() bool {
	return s.store != nil && !s.cfg.ReadOnly && !s.paused
}

// AddPV records a principal-variation result. It is ignored while disabled,
// read-only or paused.
func (s *Session) AddPV(rec store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording() {
		s.store.AddPV(rec)
	}
}

// AddMultiPV records a secondary-line result under the same conditions as
// AddPV.
func (s *Session) AddMultiPV(rec store.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording() {
		s.store.AddMultiPV(rec)
	}
}

// PauseLearning stops AddPV and AddMultiPV from recording.
func (s *Session) PauseLearning() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
}

// ResumeLearning undoes PauseLearning.
func (s *Session) ResumeLearning() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// IsLearningPaused reports whether learning is paused.
func (s *Session) IsLearningPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// HasNewExperience reports whether there are results not yet saved.
func (s *Session) HasNewExperience() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store != nil && s.store.HasPending()
}

// Save appends new results to the file. It does nothing while disabled,
// read-only or when there is nothing new.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Session) saveLocked() error {
	if s.store == nil || s.cfg.ReadOnly || !s.store.HasPending() {
		return nil
	}
	return s.store.Save(s.cfg.Path, false)
}

// Reload saves new results and loads the file again so they become
// probeable. It does nothing when there is nothing new.
func (s *Session) Reload() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil || !s.store.HasPending() {
		return nil
	}
	err := s.unloadLocked()
	s.loadLocked()
	return err
}

// Stats describes the loaded store.
func (s *Session) Stats() (store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return store.Stats{}, ErrDisabled
	}
	_ = s.store.WaitForLoad()
	return s.store.Stats(), nil
}

// Close saves new results and releases the store.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unloadLocked()
}
