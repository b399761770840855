package store

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/graph"
)

var (
	e2e4 = graph.EncodeMove(12, 28, graph.PromoNone)
	d2d4 = graph.EncodeMove(11, 27, graph.PromoNone)
	g1f3 = graph.EncodeMove(6, 21, graph.PromoNone)
	c2c4 = graph.EncodeMove(10, 26, graph.PromoNone)
)

func chainOf(t *testing.T, ix *Index, key graph.Fingerprint) []Record {
	t.Helper()
	head, ok := ix.Probe(key)
	require.True(t, ok, "lookup %s", key)
	return head.Records()
}

func requireSorted(t *testing.T, ix *Index) {
	t.Helper()
	for _, key := range ix.Keys() {
		recs := chainOf(t, ix, key)
		seen := make(map[graph.Move]bool)
		for i, r := range recs {
			require.Equal(t, key, r.Key)
			require.False(t, seen[r.Move], "duplicate move %s in chain %s", r.Move, key)
			seen[r.Move] = true
			if i > 0 {
				require.GreaterOrEqual(t, recs[i-1].Compare(r), 0,
					"chain %s out of order at %d: %+v before %+v", key, i, recs[i-1], r)
			}
		}
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		name string
		a, b Record
		want int
	}{
		{"deeper wins", NewRecord(1, e2e4, -50, 20), NewRecord(1, d2d4, 300, 10), 1},
		{"shallower loses", NewRecord(1, e2e4, 300, 10), NewRecord(1, d2d4, -50, 20), -1},
		{"higher value at equal depth", NewRecord(1, e2e4, 40, 12), NewRecord(1, d2d4, 10, 12), 1},
		{"lower move token breaks ties", NewRecord(1, d2d4, 10, 12), NewRecord(1, e2e4, 10, 12), 1},
		{"identical", NewRecord(1, e2e4, 10, 12), NewRecord(1, e2e4, 10, 12), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Compare(tt.b))
			assert.Equal(t, -tt.want, tt.b.Compare(tt.a))
		})
	}
}

func TestLinkNewKey(t *testing.T) {
	ix := NewIndex()
	assert.Equal(t, Inserted, ix.Link(NewRecord(7, e2e4, 30, 10)))
	assert.Equal(t, 1, ix.Len())
	assert.Equal(t, 1, ix.Moves())

	_, ok := ix.Probe(8)
	assert.False(t, ok)
}

func TestLinkSameRecordTwice(t *testing.T) {
	ix := NewIndex()
	rec := NewRecord(7, e2e4, 30, 10)
	require.Equal(t, Inserted, ix.Link(rec))
	require.Equal(t, Merged, ix.Link(rec))

	recs := chainOf(t, ix, 7)
	require.Len(t, recs, 1)
	assert.Equal(t, rec, recs[0])
}

func TestLinkDeeperDuplicateUpdates(t *testing.T) {
	ix := NewIndex()
	ix.Link(NewRecord(7, e2e4, 30, 10))
	ix.Link(NewRecord(7, d2d4, 20, 14))
	require.Equal(t, Merged, ix.Link(NewRecord(7, e2e4, 55, 18)))

	recs := chainOf(t, ix, 7)
	require.Len(t, recs, 2)
	// e2e4 moved ahead of d2d4 after its depth increased.
	assert.Equal(t, NewRecord(7, e2e4, 55, 18), recs[0])
	assert.Equal(t, NewRecord(7, d2d4, 20, 14), recs[1])
	requireSorted(t, ix)
}

func TestLinkShallowerDuplicateKeepsExisting(t *testing.T) {
	ix := NewIndex()
	ix.Link(NewRecord(7, e2e4, 30, 10))
	require.Equal(t, Merged, ix.Link(NewRecord(7, e2e4, 900, 6)))
	assert.Equal(t, []Record{NewRecord(7, e2e4, 30, 10)}, chainOf(t, ix, 7))
}

func TestLinkEqualDepthDuplicateKeepsFirst(t *testing.T) {
	ix := NewIndex()
	ix.Link(NewRecord(7, e2e4, 30, 10))
	ix.Link(NewRecord(7, e2e4, 80, 10))
	assert.Equal(t, []Record{NewRecord(7, e2e4, 30, 10)}, chainOf(t, ix, 7))
}

func TestLinkOrderIndependent(t *testing.T) {
	recs := []Record{
		NewRecord(3, e2e4, 30, 10),
		NewRecord(3, d2d4, 35, 10),
		NewRecord(3, g1f3, 10, 22),
		NewRecord(3, c2c4, 35, 10),
		NewRecord(3, e2e4, 12, 16),
		NewRecord(4, e2e4, -20, 8),
	}

	ref := NewIndex()
	for _, r := range recs {
		ref.Link(r)
	}
	want := chainOf(t, ref, 3)
	assert.Equal(t, []Record{
		NewRecord(3, g1f3, 10, 22),
		NewRecord(3, e2e4, 12, 16),
		NewRecord(3, c2c4, 35, 10),
		NewRecord(3, d2d4, 35, 10),
	}, want)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 50; i++ {
		shuffled := append([]Record(nil), recs...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		ix := NewIndex()
		for _, r := range shuffled {
			ix.Link(r)
		}
		require.Equal(t, want, chainOf(t, ix, 3))
		requireSorted(t, ix)
	}
}

func TestLinkRandomizedInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	moves := []graph.Move{e2e4, d2d4, g1f3, c2c4}
	ix := NewIndex()
	for i := 0; i < 5000; i++ {
		ix.Link(NewRecord(
			graph.Fingerprint(rng.Intn(40)),
			moves[rng.Intn(len(moves))],
			int32(rng.Intn(600)-300),
			uint32(rng.Intn(30)),
		))
	}
	requireSorted(t, ix)

	total := 0
	for _, key := range ix.Keys() {
		total += len(chainOf(t, ix, key))
	}
	assert.Equal(t, ix.Moves(), total, "every node reachable exactly once")
}

func TestNodeFind(t *testing.T) {
	ix := NewIndex()
	ix.Link(NewRecord(9, e2e4, 30, 10))
	ix.Link(NewRecord(9, d2d4, 20, 12))

	head, _ := ix.Probe(9)
	n, ok := head.Find(e2e4)
	require.True(t, ok)
	assert.Equal(t, int32(30), n.Record().Value)

	_, ok = head.Find(g1f3)
	assert.False(t, ok)
}

func TestKeysSorted(t *testing.T) {
	ix := NewIndex()
	for _, k := range []graph.Fingerprint{50, 3, 99, 7} {
		ix.Link(NewRecord(k, e2e4, 0, 5))
	}
	assert.Equal(t, []graph.Fingerprint{3, 7, 50, 99}, ix.Keys())
}
