package store

import (
	"errors"
	"os"
)

// Defrag compacts the experience file at path in place: duplicates are merged
// and entries below the minimum depth dropped. The previous content is left
// in path+".bak".
func Defrag(path string, cfg Config) error {
	s := New(cfg)
	defer s.Close()

	s.log.Info().Str("path", path).Msg("defragmenting experience file")
	if err := s.Load(path, true); err != nil {
		return err
	}
	return s.Save(path, true)
}

// Merge loads target (when it exists) and every file in others into one
// index and rewrites target with the result. Inputs that fail to load are
// logged and skipped; Merge fails only if nothing could be loaded or the
// final save fails.
func Merge(target string, others []string, cfg Config) error {
	if len(others) == 0 {
		return errors.New("merge needs at least one file besides the target")
	}

	s := New(cfg)
	defer s.Close()

	s.log.Info().Str("target", target).Strs("files", others).Msg("merging experience files")

	paths := make([]string, 0, len(others)+1)
	if _, err := os.Stat(target); err == nil {
		paths = append(paths, target)
	}
	paths = append(paths, others...)

	var errs []error
	loaded := 0
	for _, p := range paths {
		if err := s.Load(p, true); err != nil {
			errs = append(errs, err)
			continue
		}
		loaded++
	}
	if loaded == 0 || s.index.Len() == 0 {
		return errors.Join(append([]error{ErrNothingToMerge}, errs...)...)
	}
	return s.Save(target, true)
}
