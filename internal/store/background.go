package store

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"
)

// loadTask is one background load. Its result is read through g.Wait.
type loadTask struct {
	path  string
	g     *errgroup.Group
	stats LoadStats
}

// Load reads the experience file at path into the index on a background
// goroutine. Any load already running is waited for first. With wait set the
// call blocks and returns the load's result; otherwise it returns nil at once
// and the result is available from WaitForLoad.
//
// A failed or aborted load leaves the index as it was.
func (s *Store) Load(path string, wait bool) error {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	_ = s.WaitForLoad()

	g, ctx := errgroup.WithContext(s.ctx)
	task := &loadTask{path: path, g: g}

	s.mu.Lock()
	s.load = task
	s.mu.Unlock()

	g.Go(func() error {
		st, err := s.loadFile(ctx, path)
		task.stats = st
		return err
	})

	if wait {
		return s.WaitForLoad()
	}
	return nil
}

// WaitForLoad blocks until the current load finishes and returns its error.
// With no load running it returns the result of the last one.
func (s *Store) WaitForLoad() error {
	s.mu.Lock()
	task := s.load
	s.mu.Unlock()

	if task == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.lastErr
	}

	err := task.g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.load == task {
		s.load = nil
		s.lastErr = err
		if err == nil {
			s.lastStats = task.stats
		}
	}
	return err
}

// loadFile reads and links one file. Runs on the loader goroutine.
func (s *Store) loadFile(ctx context.Context, path string) (LoadStats, error) {
	start := time.Now()
	st := LoadStats{Path: path}

	records, size, err := readExperienceFile(ctx, path, s.cfg.MaxLoadRecords)
	if err != nil {
		result := "failed"
		if errors.Is(err, ErrLoadAborted) {
			result = "aborted"
			s.log.Info().Str("path", path).Msg("experience load aborted")
		} else {
			s.log.Warn().Err(err).Str("path", path).Msg("experience load failed")
		}
		s.metrics.observeLoad(result, st)
		return st, err
	}

	prevPositions := s.index.Len()
	s.index.Reserve(len(records))
	for _, rec := range records {
		if s.index.Link(rec) == Merged {
			st.DuplicateMoves++
		}
	}

	st.Bytes = size
	st.Moves = len(records)
	st.NewPositions = s.index.Len() - prevPositions
	st.Elapsed = time.Since(start)
	s.metrics.observeLoad("ok", st)

	ev := s.log.Info().
		Str("path", path).
		Str("size", humanize.Bytes(uint64(size))).
		Int("moves", st.Moves).
		Int("duplicate_moves", st.DuplicateMoves).
		Dur("elapsed", st.Elapsed)
	if prevPositions > 0 {
		ev.Int("new_positions", st.NewPositions).Msg("experience file merged")
	} else {
		ev.Int("positions", s.index.Len()).
			Str("fragmentation", fmt.Sprintf("%.2f%%", st.Fragmentation())).
			Msg("experience file loaded")
	}
	return st, nil
}

// readExperienceFile validates and decodes a whole file. Cancellation is
// checked before every record.
func readExperienceFile(ctx context.Context, path string, limit int64) ([]Record, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, &IOError{Op: "stat", Path: path, Err: err}
	}
	size := info.Size()
	if size == 0 {
		return nil, 0, &FormatError{Path: path, Reason: "file is empty"}
	}
	count, ok := payloadCount(size)
	if !ok {
		return nil, size, &FormatError{Path: path, Reason: fmt.Sprintf(
			"corrupted: size %d is not a signature plus a whole number of %d-byte records", size, RecordSize)}
	}
	if count > limit {
		return nil, size, &AllocationError{Path: path, Records: count, Limit: limit}
	}

	r := bufio.NewReaderSize(f, 1<<20)
	sig := make([]byte, SignatureLen)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, size, &FormatError{Path: path, Reason: fmt.Sprintf("reading signature: %v", err)}
	}
	if string(sig) != Signature {
		return nil, size, &FormatError{Path: path, Reason: "signature mismatch"}
	}

	records := make([]Record, 0, count)
	done := ctx.Done()
	var buf [RecordSize]byte
	for i := int64(0); i < count; i++ {
		select {
		case <-done:
			return nil, size, ErrLoadAborted
		default:
		}
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return nil, size, &FormatError{Path: path, Reason: fmt.Sprintf(
				"short read of entry %d of %d: %v", i+1, count, err)}
		}
		rec, _ := DecodeRecord(buf[:])
		records = append(records, rec)
	}
	return records, size, nil
}
