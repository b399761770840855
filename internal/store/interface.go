package store

import (
	"errors"
	"fmt"

	"github.com/freeeve/chessexp/internal/graph"
)

// ErrLoadAborted is returned by a load cancelled by Close.
var ErrLoadAborted = errors.New("experience load aborted")

// ErrNothingToMerge is returned by Merge when none of the inputs could be loaded.
var ErrNothingToMerge = errors.New("no experience data to merge")

// IOError reports a failure to open, read, write, or rename a file.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// FormatError reports a file that is not a well-formed experience file.
type FormatError struct {
	Path   string
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("experience file %s: %s", e.Path, e.Reason)
}

// AllocationError reports a load that would exceed Config.MaxLoadRecords.
type AllocationError struct {
	Path    string
	Records int64
	Limit   int64
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("experience file %s: %d records exceed the limit of %d", e.Path, e.Records, e.Limit)
}

// Prober looks up stored candidates for a position.
type Prober interface {
	Probe(key graph.Fingerprint) (Node, bool)
}

// Recorder accepts freshly computed evaluations.
type Recorder interface {
	AddPV(rec Record)
	AddMultiPV(rec Record)
}
