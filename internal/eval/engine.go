package eval

import (
	"context"
	"errors"
	"fmt"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"
)

// Result is one finished search, from the side to move's point of view.
// With Mate set, Score is the mate distance in moves (negative when the side
// to move is getting mated).
type Result struct {
	Score int
	Mate  bool
	Depth int
}

// Searcher evaluates positions given as FEN.
type Searcher interface {
	Search(ctx context.Context, fen string, depth int) (Result, error)
	Close() error
}

// EngineConfig configures a UCI engine process.
type EngineConfig struct {
	Path    string
	HashMB  int // default 256
	Threads int // default 1
	Nice    int // 0 = leave priority alone
	Logger  zerolog.Logger
}

// Engine is a Searcher backed by a UCI engine process.
type Engine struct {
	engine *uci.Engine
}

// NewEngine starts the engine at cfg.Path and configures it.
func NewEngine(cfg EngineConfig) (*Engine, error) {
	if cfg.Path == "" {
		return nil, errors.New("engine path required")
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 256
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}

	engine, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("start engine %s: %w", cfg.Path, err)
	}

	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := engine.SetOptions(opts); err != nil {
		engine.Close()
		return nil, fmt.Errorf("set engine options: %w", err)
	}

	if cfg.Nice > 0 {
		nice := cfg.Nice
		if nice > 19 {
			cfg.Logger.Warn().Int("requested", nice).Int("clamped", 19).Msg("nice value clamped to max 19")
			nice = 19
		}
		if err := engine.SetNice(nice); err != nil {
			cfg.Logger.Warn().Err(err).Int("nice", nice).Msg("failed to set nice value")
		}
	}
	return &Engine{engine: engine}, nil
}

// Search runs a fixed-depth search. The engine call itself cannot be
// interrupted; ctx is only checked before it starts.
func (e *Engine) Search(ctx context.Context, fen string, depth int) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if err := e.engine.SetFEN(fen); err != nil {
		return Result{}, fmt.Errorf("set FEN: %w", err)
	}
	results, err := e.engine.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		return Result{}, fmt.Errorf("engine search: %w", err)
	}
	if len(results.Results) == 0 {
		return Result{}, errors.New("no results from engine")
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}
	return Result{Score: best.Score, Mate: best.Mate, Depth: best.Depth}, nil
}

// Close stops the engine process.
func (e *Engine) Close() error {
	e.engine.Close()
	return nil
}
