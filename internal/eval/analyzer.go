// Package eval produces fresh experience by searching every legal move of a
// position with a UCI engine.
package eval

import (
	"context"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/store"
)

// Config configures an Analyzer.
type Config struct {
	Depth      int // search depth per move, default 20
	NumWorkers int // parallel searchers, default 1
	Logger     zerolog.Logger
	// NewSearcher starts one searcher per worker.
	NewSearcher func() (Searcher, error)
}

// Analyzer evaluates the moves of a position and hands the results to a
// store.Recorder.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.NewSearcher == nil {
		return nil, fmt.Errorf("searcher factory required")
	}
	if cfg.Depth == 0 {
		cfg.Depth = 20
	}
	if cfg.NumWorkers == 0 {
		cfg.NumWorkers = 1
	}
	return &Analyzer{cfg: cfg, log: cfg.Logger}, nil
}

// Analyze searches every legal move of pos and returns one record per move,
// best first. The best move is passed to rec.AddPV and the others to
// rec.AddMultiPV; rec may be nil.
func (a *Analyzer) Analyze(ctx context.Context, pos *pgn.GameState, rec store.Recorder) ([]store.Record, error) {
	start := time.Now()
	key := chess.Fingerprint(pos)
	moves := chess.LegalMoves(pos)
	if len(moves) == 0 {
		return nil, nil
	}

	work := make(chan int)
	records := make([]store.Record, len(moves))
	var evaluated int64

	g, ctx := errgroup.WithContext(ctx)
	workers := min(a.cfg.NumWorkers, len(moves))
	for i := 0; i < workers; i++ {
		workerID := i
		g.Go(func() error {
			log := a.log.With().Int("worker_id", workerID).Logger()
			s, err := a.cfg.NewSearcher()
			if err != nil {
				return fmt.Errorf("start searcher: %w", err)
			}
			defer s.Close()

			for idx := range work {
				r, err := a.evalMove(ctx, s, pos, moves[idx])
				if err != nil {
					return fmt.Errorf("%s: %w", moves[idx], err)
				}
				r.Key = key
				records[idx] = r

				atomic.AddInt64(&evaluated, 1)
				log.Debug().Str("move", r.Move.ToUCI()).Str("value", graph.FormatValue(r.Value)).Uint32("depth", r.Depth).Msg("evaluated")
			}
			return nil
		})
	}

	g.Go(func() error {
		defer close(work)
		for i := range moves {
			select {
			case work <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sortBest(records)
	if rec != nil {
		rec.AddPV(records[0])
		for _, r := range records[1:] {
			rec.AddMultiPV(r)
		}
	}

	a.log.Info().
		Str("fen", pos.ToFEN()).
		Str("best", records[0].Move.ToUCI()).
		Str("value", graph.FormatValue(records[0].Value)).
		Int64("moves", atomic.LoadInt64(&evaluated)).
		Dur("elapsed", time.Since(start)).
		Msg("position analyzed")
	return records, nil
}

// evalMove plays m and searches the resulting position.
func (a *Analyzer) evalMove(ctx context.Context, s Searcher, pos *pgn.GameState, m graph.Move) (store.Record, error) {
	child, err := chess.Child(pos, m)
	if err != nil {
		return store.Record{}, err
	}

	// Terminal positions need no search.
	if len(pgn.GenerateLegalMoves(child)) == 0 {
		v := graph.ValueDraw
		if child.IsInCheck() {
			v = graph.MateIn(1)
		}
		return store.Record{Move: m, Value: v, Depth: uint32(a.cfg.Depth)}, nil
	}

	res, err := s.Search(ctx, child.ToFEN(), a.cfg.Depth)
	if err != nil {
		return store.Record{}, err
	}
	depth := res.Depth
	if depth <= 0 {
		depth = a.cfg.Depth
	}
	return store.Record{Move: m, Value: parentValue(res), Depth: uint32(depth)}, nil
}

// parentValue converts a search result for the position after a move into a
// value for the side that played it.
func parentValue(r Result) int32 {
	if !r.Mate {
		v := -int32(r.Score)
		return max(min(v, graph.ValueMateInMaxPly-1), graph.ValueMatedInMaxPly+1)
	}
	switch {
	case r.Score > 0:
		// The opponent mates in Score moves: 2*Score-1 plies after ours.
		return graph.MatedIn(2 * r.Score)
	case r.Score < 0:
		return graph.MateIn(-2*r.Score + 1)
	}
	return graph.MateIn(1)
}

// sortBest orders records the way a chain does.
func sortBest(records []store.Record) {
	slices.SortFunc(records, func(a, b store.Record) int {
		return b.Compare(a)
	})
}
