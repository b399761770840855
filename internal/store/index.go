package store

import (
	"slices"

	"github.com/freeeve/chessexp/internal/graph"
)

// LinkResult reports what Index.Link did with a record.
type LinkResult uint8

const (
	// Inserted means the record became a new chain node.
	Inserted LinkResult = iota
	// Merged means the record duplicated an existing (key, move) node and was
	// folded into it.
	Merged
)

func (r LinkResult) String() string {
	if r == Merged {
		return "merged"
	}
	return "inserted"
}

const nilNode int32 = -1

type chainNode struct {
	rec  Record
	next int32
}

// Index maps fingerprints to chains of candidate moves sorted best first.
// Nodes live in a single arena and refer to each other by position, so a
// chain never shares nodes with another chain.
//
// Index is not safe for concurrent use.
type Index struct {
	nodes []chainNode
	heads map[graph.Fingerprint]int32
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{heads: make(map[graph.Fingerprint]int32)}
}

// Reserve grows the arena so that n more records can be linked without
// reallocating.
func (ix *Index) Reserve(n int) {
	ix.nodes = slices.Grow(ix.nodes, n)
}

// Len returns the number of distinct fingerprints.
func (ix *Index) Len() int {
	return len(ix.heads)
}

// Moves returns the number of chain nodes.
func (ix *Index) Moves() int {
	return len(ix.nodes)
}

// Link inserts rec into the chain for rec.Key, merging it into an existing
// node when the move is already present.
func (ix *Index) Link(rec Record) LinkResult {
	head, ok := ix.heads[rec.Key]
	if !ok {
		ix.heads[rec.Key] = ix.alloc(rec)
		return Inserted
	}

	prev := nilNode
	for h := head; h != nilNode; prev, h = h, ix.nodes[h].next {
		if ix.nodes[h].rec.Move != rec.Move {
			continue
		}
		if ix.nodes[h].rec.merge(rec) {
			// Depth changed, so the node may now belong further up.
			ix.unlink(rec.Key, prev, h)
			ix.insert(rec.Key, h)
		}
		return Merged
	}

	ix.insert(rec.Key, ix.alloc(rec))
	return Inserted
}

func (ix *Index) alloc(rec Record) int32 {
	ix.nodes = append(ix.nodes, chainNode{rec: rec, next: nilNode})
	return int32(len(ix.nodes) - 1)
}

func (ix *Index) unlink(key graph.Fingerprint, prev, h int32) {
	if prev == nilNode {
		ix.heads[key] = ix.nodes[h].next
	} else {
		ix.nodes[prev].next = ix.nodes[h].next
	}
	ix.nodes[h].next = nilNode
}

// insert places node h before the first node it compares greater than.
func (ix *Index) insert(key graph.Fingerprint, h int32) {
	rec := ix.nodes[h].rec
	prev := nilNode
	cur := ix.heads[key]
	for cur != nilNode && ix.nodes[cur].rec.Compare(rec) >= 0 {
		prev, cur = cur, ix.nodes[cur].next
	}
	ix.nodes[h].next = cur
	if prev == nilNode {
		ix.heads[key] = h
	} else {
		ix.nodes[prev].next = h
	}
}

// Probe returns the head of the chain for key.
func (ix *Index) Probe(key graph.Fingerprint) (Node, bool) {
	h, ok := ix.heads[key]
	if !ok {
		return Node{}, false
	}
	return Node{ix: ix, h: h}, true
}

// Keys returns all fingerprints in ascending order.
func (ix *Index) Keys() []graph.Fingerprint {
	keys := make([]graph.Fingerprint, 0, len(ix.heads))
	for k := range ix.heads {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Node is a read-only cursor into a chain. It must not be used after the
// owning store is closed or reloaded.
type Node struct {
	ix *Index
	h  int32
}

// Valid reports whether the cursor points at a node.
func (n Node) Valid() bool {
	return n.ix != nil && n.h != nilNode
}

// Record returns the node's record.
func (n Node) Record() Record {
	return n.ix.nodes[n.h].rec
}

// Next advances to the next (worse) candidate in the chain.
func (n Node) Next() Node {
	return Node{ix: n.ix, h: n.ix.nodes[n.h].next}
}

// Find walks the chain from n looking for move m.
func (n Node) Find(m graph.Move) (Node, bool) {
	for ; n.Valid(); n = n.Next() {
		if n.Record().Move == m {
			return n, true
		}
	}
	return Node{}, false
}

// Records copies the chain from n onwards.
func (n Node) Records() []Record {
	var out []Record
	for ; n.Valid(); n = n.Next() {
		out = append(out, n.Record())
	}
	return out
}
