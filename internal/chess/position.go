// Package chess adapts pgn game states to the experience store: fingerprints,
// move tokens and the few board queries the ingest heuristics need.
package chess

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/chessexp/internal/graph"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ErrIllegalMove is returned when a move is not legal in the position.
var ErrIllegalMove = errors.New("illegal move")

// FromFEN parses a FEN string.
func FromFEN(fen string) (*pgn.GameState, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, errors.New("empty FEN")
	}
	gs, err := pgn.NewGame(fen)
	if err != nil {
		return nil, fmt.Errorf("parse FEN %q: %w", fen, err)
	}
	return gs, nil
}

// Fingerprint hashes the packed form of pos.
func Fingerprint(pos *pgn.GameState) graph.Fingerprint {
	packed := pos.Pack()
	return graph.Fingerprint(xxhash.Sum64(packed[:]))
}

// Clone returns an independent copy of pos, move clocks included.
func Clone(pos *pgn.GameState) *pgn.GameState {
	return pos.Copy()
}

// SideToMove returns the side to move in pos.
func SideToMove(pos *pgn.GameState) graph.Side {
	if pos.SideToMove == pgn.Black {
		return graph.Black
	}
	return graph.White
}

// ToMove converts a pgn move into a store move token.
func ToMove(mv pgn.Mv) graph.Move {
	promo := graph.PromoNone
	switch mv.Promo {
	case pgn.PromoQueen:
		promo = graph.PromoQueen
	case pgn.PromoRook:
		promo = graph.PromoRook
	case pgn.PromoBishop:
		promo = graph.PromoBishop
	case pgn.PromoKnight:
		promo = graph.PromoKnight
	}
	return graph.EncodeMove(int(mv.From), int(mv.To), promo)
}

// FindMove returns the legal move in pos matching m.
func FindMove(pos *pgn.GameState, m graph.Move) (pgn.Mv, error) {
	for _, mv := range pgn.GenerateLegalMoves(pos) {
		if ToMove(mv) == m {
			return mv, nil
		}
	}
	return pgn.Mv{}, fmt.Errorf("%s in %s: %w", m, pos.ToFEN(), ErrIllegalMove)
}

// ParseUCI resolves a UCI move string against the legal moves of pos.
func ParseUCI(pos *pgn.GameState, s string) (pgn.Mv, graph.Move, error) {
	m, err := graph.MoveFromUCI(s)
	if err != nil {
		return pgn.Mv{}, graph.MoveNone, err
	}
	mv, err := FindMove(pos, m)
	if err != nil {
		return pgn.Mv{}, graph.MoveNone, err
	}
	return mv, m, nil
}

// Apply plays the store move m on pos in place.
func Apply(pos *pgn.GameState, m graph.Move) error {
	mv, err := FindMove(pos, m)
	if err != nil {
		return err
	}
	return pgn.ApplyMove(pos, mv)
}

// Child returns a copy of pos with m played, leaving pos untouched.
func Child(pos *pgn.GameState, m graph.Move) (*pgn.GameState, error) {
	child := Clone(pos)
	if err := Apply(child, m); err != nil {
		return nil, err
	}
	return child, nil
}

// LegalMoves lists the legal moves of pos as store tokens.
func LegalMoves(pos *pgn.GameState) []graph.Move {
	mvs := pgn.GenerateLegalMoves(pos)
	out := make([]graph.Move, 0, len(mvs))
	for _, mv := range mvs {
		out = append(out, ToMove(mv))
	}
	return out
}
