package store

import (
	"github.com/freeeve/chessexp/internal/graph"
)

// File layout constants
const (
	// Signature is written once at the start of every experience file.
	// The trailing digit is the format version.
	Signature    = "CGEXP1"
	SignatureLen = len(Signature)

	// RecordSize is the encoded size of a Record:
	// key (8) + move (4) + value (4) + depth (4) + reserved (4).
	RecordSize = 24

	// BackupSuffix is appended to the target path while a full save runs.
	BackupSuffix = ".bak"
)

// MinDepth is the shallowest search depth worth persisting.
const MinDepth uint32 = 4

// Record is one stored move evaluation. Value is from the point of view of
// the side to move in the position identified by Key.
type Record struct {
	Key   graph.Fingerprint
	Move  graph.Move
	Value int32
	Depth uint32
}

// NewRecord builds a Record.
func NewRecord(key graph.Fingerprint, move graph.Move, value int32, depth uint32) Record {
	return Record{Key: key, Move: move, Value: value, Depth: depth}
}

// Compare orders records that share a key: positive when r is the better
// candidate, negative when o is, zero only for identical entries.
//
// Deeper searches win; at equal depth the higher value wins; remaining ties
// go to the lower move token so insertion order never matters.
func (r Record) Compare(o Record) int {
	switch {
	case r.Depth > o.Depth:
		return 1
	case r.Depth < o.Depth:
		return -1
	case r.Value > o.Value:
		return 1
	case r.Value < o.Value:
		return -1
	case r.Move < o.Move:
		return 1
	case r.Move > o.Move:
		return -1
	}
	return 0
}

// merge folds a duplicate (same key and move) into r and reports whether r
// changed. The deeper result wins; at equal depth the existing data is kept.
func (r *Record) merge(o Record) bool {
	if o.Depth <= r.Depth {
		return false
	}
	r.Value = o.Value
	r.Depth = o.Depth
	return true
}
