package ingest

import "github.com/freeeve/chessexp/internal/graph"

// Score bands, in centipawns from white's point of view.
const (
	DecisiveScore int32 = 1000
	MediumScore   int32 = 200
	DrawishScore  int32 = 20
)

// Game acceptance thresholds.
const (
	MinGamePlies  = 8
	MinConfidence = 4
)

// Reason explains why a game was rejected.
type Reason string

const (
	ReasonTooShort      Reason = "too_short"
	ReasonColorConflict Reason = "color_conflict"
	ReasonDrawConflict  Reason = "draw_conflict"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonInvalid       Reason = "invalid"
)

// resultTracker accumulates evidence about a game's outcome while it is
// replayed.
type resultTracker struct {
	weight       [3]int // white, black, draw
	peak         [3]int
	drawDetected bool
}

const (
	trackWhite = 0
	trackBlack = 1
	trackDraw  = 2
)

// observe folds in one evaluation. score is from the point of view of stm.
func (t *resultTracker) observe(stm graph.Side, score int32) {
	if stm == graph.Black {
		score = -score
	}
	winner, loser := trackWhite, trackBlack
	abs := score
	if score < 0 {
		winner, loser = trackBlack, trackWhite
		abs = -score
	}

	switch {
	case abs >= DecisiveScore:
		t.weight[winner] += 2
		t.weight[loser] = 0
		t.weight[trackDraw] = 0
	case abs >= MediumScore:
		t.weight[winner]++
	case abs <= DrawishScore:
		t.weight[trackDraw]++
		t.weight[trackWhite] = 0
		t.weight[trackBlack] = 0
	}
	for i, w := range t.weight {
		t.peak[i] = max(t.peak[i], w)
	}
}

// inferred returns the outcome the evidence points to.
func (t *resultTracker) inferred() Outcome {
	w, b := t.weight[trackWhite], t.weight[trackBlack]
	switch {
	case w > b && t.peak[trackWhite] >= MinConfidence:
		return OutcomeWhite
	case b > w && t.peak[trackBlack] >= MinConfidence:
		return OutcomeBlack
	case t.drawDetected || t.peak[trackDraw] >= MinConfidence:
		return OutcomeDraw
	}
	return OutcomeUnknown
}

// verdict checks the declared outcome against the evidence. It returns ""
// when the game is accepted.
func (t *resultTracker) verdict(declared Outcome, plies int) Reason {
	if plies < MinGamePlies {
		return ReasonTooShort
	}
	inferred := t.inferred()

	switch declared {
	case OutcomeWhite, OutcomeBlack:
		side, other := trackWhite, OutcomeBlack
		if declared == OutcomeBlack {
			side, other = trackBlack, OutcomeWhite
		}
		if inferred == other {
			return ReasonColorConflict
		}
		if t.drawDetected {
			return ReasonDrawConflict
		}
		if t.peak[side] < MinConfidence {
			return ReasonLowConfidence
		}
	case OutcomeDraw:
		if inferred == OutcomeWhite || inferred == OutcomeBlack {
			return ReasonDrawConflict
		}
		if !t.drawDetected && t.peak[trackDraw] < MinConfidence {
			return ReasonLowConfidence
		}
	default:
		return ReasonInvalid
	}
	return ""
}
