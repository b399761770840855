package ingest

import (
	"fmt"
	"strconv"
	"strings"
)

// Outcome is a game result tag.
type Outcome uint8

const (
	OutcomeUnknown Outcome = iota
	OutcomeWhite
	OutcomeBlack
	OutcomeDraw
)

func (o Outcome) String() string {
	switch o {
	case OutcomeWhite:
		return "w"
	case OutcomeBlack:
		return "b"
	case OutcomeDraw:
		return "d"
	}
	return "?"
}

func parseOutcome(s string) (Outcome, bool) {
	switch s {
	case "w":
		return OutcomeWhite, true
	case "b":
		return OutcomeBlack, true
	case "d":
		return OutcomeDraw, true
	}
	return OutcomeUnknown, false
}

// Ply is one move of a compact game, optionally carrying the engine's
// evaluation of the position it was played from.
type Ply struct {
	UCI     string
	Score   int32 // side to move's point of view
	Depth   uint32
	HasEval bool
}

// Game is one parsed line of compact notation.
type Game struct {
	Line     int
	FEN      string
	Declared Outcome
	Plies    []Ply
}

// ValidationError reports a line that could not be parsed or replayed.
type ValidationError struct {
	Line   int
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// ParseGame parses one line of the form
//
//	{<fen>,<w|b|d>,<move>[:<score>:<depth>],...}
//
// The braces are optional.
func ParseGame(lineNo int, line string) (*Game, error) {
	invalid := func(format string, args ...any) error {
		return &ValidationError{Line: lineNo, Reason: fmt.Sprintf(format, args...)}
	}

	s := strings.TrimSpace(line)
	s = strings.TrimPrefix(s, "{")
	s = strings.TrimSuffix(s, "}")
	fields := strings.Split(s, ",")
	if len(fields) < 2 {
		return nil, invalid("expected <fen>,<result>,<moves...>")
	}

	g := &Game{Line: lineNo, FEN: strings.TrimSpace(fields[0])}
	if g.FEN == "" {
		return nil, invalid("missing FEN")
	}
	outcome, ok := parseOutcome(strings.TrimSpace(fields[1]))
	if !ok {
		return nil, invalid("bad result tag %q", fields[1])
	}
	g.Declared = outcome

	for i, f := range fields[2:] {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		parts := strings.Split(f, ":")
		p := Ply{UCI: parts[0]}
		switch len(parts) {
		case 1:
		case 3:
			score, err := strconv.ParseInt(parts[1], 10, 32)
			if err != nil {
				return nil, invalid("move %d: bad score %q", i+1, parts[1])
			}
			depth, err := strconv.ParseUint(parts[2], 10, 32)
			if err != nil {
				return nil, invalid("move %d: bad depth %q", i+1, parts[2])
			}
			p.Score = int32(score)
			p.Depth = uint32(depth)
			p.HasEval = true
		default:
			return nil, invalid("move %d: expected <move>[:<score>:<depth>], got %q", i+1, f)
		}
		g.Plies = append(g.Plies, p)
	}
	return g, nil
}
