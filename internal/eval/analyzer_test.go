package eval

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/freeeve/pgn/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/store"
)

// fakeSearcher scores a position by the first matching FEN fragment.
type fakeSearcher struct {
	scores map[string]Result
	depth  int
	fail   bool

	mu     *sync.Mutex
	calls  *int
	closed *int
}

func (f *fakeSearcher) Search(ctx context.Context, fen string, depth int) (Result, error) {
	f.mu.Lock()
	*f.calls++
	f.mu.Unlock()
	if f.fail {
		return Result{}, errors.New("engine crashed")
	}
	for frag, r := range f.scores {
		if strings.Contains(fen, frag) {
			return r, nil
		}
	}
	return Result{Score: 0, Depth: f.depth}, nil
}

func (f *fakeSearcher) Close() error {
	f.mu.Lock()
	*f.closed++
	f.mu.Unlock()
	return nil
}

type recorder struct {
	pv, multiPV []store.Record
}

func (r *recorder) AddPV(rec store.Record)      { r.pv = append(r.pv, rec) }
func (r *recorder) AddMultiPV(rec store.Record) { r.multiPV = append(r.multiPV, rec) }

func newFake(scores map[string]Result, fail bool) (func() (Searcher, error), *int, *int) {
	var mu sync.Mutex
	calls, closed := new(int), new(int)
	return func() (Searcher, error) {
		return &fakeSearcher{scores: scores, depth: 18, fail: fail, mu: &mu, calls: calls, closed: closed}, nil
	}, calls, closed
}

func TestAnalyzeStartPosition(t *testing.T) {
	factory, calls, closed := newFake(map[string]Result{
		// After e2e4 black is to move and is worse.
		"4P3/8/PPPP1PPP": {Score: -45, Depth: 22},
	}, false)
	a, err := NewAnalyzer(Config{NewSearcher: factory, NumWorkers: 3})
	require.NoError(t, err)

	pos := pgn.NewStartingPosition()
	var rec recorder
	records, err := a.Analyze(context.Background(), pos, &rec)
	require.NoError(t, err)
	require.Len(t, records, 20)

	key := chess.Fingerprint(pos)
	assert.Equal(t, "e2e4", records[0].Move.ToUCI())
	assert.Equal(t, int32(45), records[0].Value)
	assert.Equal(t, uint32(22), records[0].Depth)
	for _, r := range records {
		assert.Equal(t, key, r.Key)
	}

	require.Len(t, rec.pv, 1)
	assert.Equal(t, records[0], rec.pv[0])
	assert.Len(t, rec.multiPV, 19)
	assert.Equal(t, 20, *calls)
	assert.Equal(t, 3, *closed)
}

func TestAnalyzeMateInOneSkipsSearch(t *testing.T) {
	factory, _, _ := newFake(nil, false)
	a, err := NewAnalyzer(Config{NewSearcher: factory})
	require.NoError(t, err)

	pos, err := chess.FromFEN("6k1/5ppp/8/8/8/8/8/R5K1 w - - 0 1")
	require.NoError(t, err)
	records, err := a.Analyze(context.Background(), pos, nil)
	require.NoError(t, err)

	assert.Equal(t, "a1a8", records[0].Move.ToUCI())
	assert.Equal(t, graph.MateIn(1), records[0].Value)
}

func TestAnalyzeSearchError(t *testing.T) {
	factory, _, closed := newFake(nil, true)
	a, err := NewAnalyzer(Config{NewSearcher: factory, NumWorkers: 2})
	require.NoError(t, err)

	var rec recorder
	_, err = a.Analyze(context.Background(), pgn.NewStartingPosition(), &rec)
	require.Error(t, err)
	assert.Empty(t, rec.pv)
	assert.Empty(t, rec.multiPV)
	assert.Equal(t, 2, *closed)
}

func TestAnalyzeNoLegalMoves(t *testing.T) {
	factory, calls, _ := newFake(nil, false)
	a, err := NewAnalyzer(Config{NewSearcher: factory})
	require.NoError(t, err)

	// Black is checkmated.
	pos, err := chess.FromFEN("R5k1/5ppp/8/8/8/8/8/6K1 b - - 0 1")
	require.NoError(t, err)
	records, err := a.Analyze(context.Background(), pos, nil)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Zero(t, *calls)
}

func TestNewAnalyzerNeedsFactory(t *testing.T) {
	_, err := NewAnalyzer(Config{})
	assert.Error(t, err)
}

func TestParentValue(t *testing.T) {
	tests := []struct {
		name string
		in   Result
		want int32
	}{
		{"centipawns negate", Result{Score: 35}, -35},
		{"negative centipawns", Result{Score: -120}, 120},
		{"opponent mates in 1", Result{Score: 1, Mate: true}, graph.MatedIn(2)},
		{"opponent mates in 3", Result{Score: 3, Mate: true}, graph.MatedIn(6)},
		{"we mate in 2", Result{Score: -1, Mate: true}, graph.MateIn(3)},
		{"mate 0", Result{Score: 0, Mate: true}, graph.MateIn(1)},
		{"huge centipawns clamp", Result{Score: -40000}, graph.ValueMateInMaxPly - 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parentValue(tt.in))
		})
	}
}

func TestEngineRequiresPath(t *testing.T) {
	_, err := NewEngine(EngineConfig{})
	assert.Error(t, err)
}
