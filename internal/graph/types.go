package graph

import "fmt"

// Fingerprint identifies a position in the experience store.
// Collisions are possible but treated as impossible.
type Fingerprint uint64

// String renders the fingerprint the way engines print Zobrist keys.
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016X", uint64(f))
}

// Side is the side to move.
type Side uint8

const (
	White Side = 0
	Black Side = 1
)

func (s Side) String() string {
	if s == White {
		return "white"
	}
	return "black"
}

// Evaluation scale shared by the store, the ingest filters and the
// engine analyzer. Values are from the side-to-move's point of view.
const (
	ValueDraw int32 = 0
	ValueMate int32 = 32000

	// MaxPly bounds search depth and game length.
	MaxPly = 246

	ValueMateInMaxPly  = ValueMate - 2*MaxPly
	ValueMatedInMaxPly = -ValueMateInMaxPly
)

// MateIn returns the score for delivering mate in ply half-moves.
func MateIn(ply int) int32 {
	return ValueMate - int32(ply)
}

// MatedIn returns the score for being mated in ply half-moves.
func MatedIn(ply int) int32 {
	return -ValueMate + int32(ply)
}

// FormatValue renders a score as "cp 35" or "mate 3" / "mate -2" (in moves).
func FormatValue(v int32) string {
	switch {
	case v >= ValueMateInMaxPly:
		return fmt.Sprintf("mate %d", (ValueMate-v+1)/2)
	case v <= ValueMatedInMaxPly:
		return fmt.Sprintf("mate %d", -(ValueMate+v)/2)
	default:
		return fmt.Sprintf("cp %d", v)
	}
}
