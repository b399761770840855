package store

import (
	"bufio"
	"errors"
	"io"
	"os"
)

// writableFile is the subset of *os.File used by saves.
type writableFile interface {
	io.WriteCloser
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Sync() error
}

// openFile is replaced in tests to inject write failures.
var openFile = func(name string, flag int, perm os.FileMode) (writableFile, error) {
	return os.OpenFile(name, flag, perm)
}

// Save persists experience to path.
//
// An incremental save (full=false) appends the pending PV and MultiPV
// records. A full save rewrites the file from the whole index followed by the
// pending records, which drops duplicates and shallow entries; the previous
// file is kept as path+".bak" and renamed back if the save fails.
//
// Records shallower than the configured minimum depth are never written.
// Pending buffers are cleared only when the save succeeds.
func (s *Store) Save(path string, full bool) error {
	_ = s.WaitForLoad()

	if !s.HasPending() && (!full || s.index.Len() == 0) {
		return nil
	}

	backup := ""
	if full {
		var err error
		backup, err = makeBackup(path)
		if err != nil {
			s.log.Warn().Err(err).Str("path", path).Msg("could not back up experience file")
			s.metrics.observeSave(full, err, SaveStats{})
			return err
		}
	}

	st, err := s.writeRecords(path, full)
	s.metrics.observeSave(full, err, st)
	if err != nil {
		s.log.Error().Err(err).Str("path", path).Bool("full", full).Msg("experience save failed")
		if backup != "" {
			if rerr := os.Rename(backup, path); rerr != nil {
				s.log.Error().Err(rerr).Str("backup", backup).Msg("could not restore experience backup")
				return errors.Join(err, &IOError{Op: "restore", Path: backup, Err: rerr})
			}
			s.metrics.observeRestore()
			s.log.Info().Str("path", path).Msg("restored experience file from backup")
		}
		return err
	}

	s.pv = s.pv[:0]
	s.multiPV = s.multiPV[:0]

	if full {
		s.log.Info().
			Str("path", path).
			Int("positions", st.Positions).
			Int("moves", st.Moves).
			Int("pv", st.PV).
			Int("multipv", st.MultiPV).
			Msg("saved experience file")
	} else {
		s.log.Info().
			Str("path", path).
			Int("pv", st.PV).
			Int("multipv", st.MultiPV).
			Msg("appended new experience")
	}
	return nil
}

// makeBackup renames an existing path to path+".bak", replacing any older
// backup, and returns the backup name. It returns "" when path does not exist.
func makeBackup(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", &IOError{Op: "stat", Path: path, Err: err}
	}

	backup := path + BackupSuffix
	if err := os.Remove(backup); err != nil && !os.IsNotExist(err) {
		return "", &IOError{Op: "remove", Path: backup, Err: err}
	}
	if err := os.Rename(path, backup); err != nil {
		return "", &IOError{Op: "rename", Path: path, Err: err}
	}
	return backup, nil
}

// writeRecords appends to path through a block buffer, writing the signature
// first when the file is new. On failure an existing file is truncated back
// to its original length and a new one is removed.
func (s *Store) writeRecords(path string, full bool) (st SaveStats, err error) {
	st = SaveStats{Path: path, Full: full}

	f, err := openFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return st, &IOError{Op: "open", Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return st, &IOError{Op: "stat", Path: path, Err: err}
	}
	origSize := info.Size()

	defer func() {
		if err != nil && origSize > 0 {
			_ = f.Truncate(origSize)
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = &IOError{Op: "close", Path: path, Err: cerr}
		}
		if err != nil && origSize == 0 {
			_ = os.Remove(path)
		}
	}()

	w := bufio.NewWriterSize(f, s.cfg.WriteBufferSize)
	if origSize == 0 {
		if _, err := w.WriteString(Signature); err != nil {
			return st, &IOError{Op: "write signature", Path: path, Err: err}
		}
	}

	var buf [RecordSize]byte
	write := func(rec Record) error {
		EncodeRecord(buf[:], rec)
		if _, err := w.Write(buf[:]); err != nil {
			return &IOError{Op: "write", Path: path, Err: err}
		}
		return nil
	}

	if full {
		for _, key := range s.index.Keys() {
			head, _ := s.index.Probe(key)
			st.Positions++
			for n := head; n.Valid(); n = n.Next() {
				rec := n.Record()
				if rec.Depth < s.cfg.MinDepth {
					continue
				}
				if err := write(rec); err != nil {
					return st, err
				}
				st.Moves++
			}
		}
	}

	for _, rec := range s.pv {
		if rec.Depth < s.cfg.MinDepth {
			continue
		}
		if err := write(rec); err != nil {
			return st, err
		}
		st.PV++
	}
	for _, rec := range s.multiPV {
		if rec.Depth < s.cfg.MinDepth {
			continue
		}
		if err := write(rec); err != nil {
			return st, err
		}
		st.MultiPV++
	}

	if err := w.Flush(); err != nil {
		return st, &IOError{Op: "flush", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return st, &IOError{Op: "sync", Path: path, Err: err}
	}
	st.Bytes = int64(st.Moves+st.PV+st.MultiPV) * RecordSize
	return st, nil
}
