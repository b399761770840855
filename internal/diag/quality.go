// Package diag estimates how stored candidate moves hold up when the stored
// best replies are followed, and renders the result.
package diag

import (
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/store"
)

// MaxQualityPlies bounds the continuation followed for one estimate.
const MaxQualityPlies = 16

// Config tunes the estimator.
type Config struct {
	MaxPlies int    // default MaxQualityPlies
	MinDepth uint32 // continuation stops below this depth, default store.MinDepth
}

func (c Config) withDefaults() Config {
	if c.MaxPlies <= 0 {
		c.MaxPlies = MaxQualityPlies
	}
	if c.MinDepth == 0 {
		c.MinDepth = store.MinDepth
	}
	return c
}

// Candidate is a stored move with its estimate.
type Candidate struct {
	store.Record
	Quality    int32 // root side's point of view
	HasQuality bool
	Plies      int // continuation length used for Quality
}

// Estimate follows the best stored reply from the position after rec.Move
// and returns the depth-weighted average of the values met on the way, from
// the point of view of the side to move in pos. It reports false when not
// even the first reply is stored deep enough.
func Estimate(p store.Prober, pos *pgn.GameState, rec store.Record, cfg Config) (int32, int, bool) {
	cfg = cfg.withDefaults()

	cur, err := chess.Child(pos, rec.Move)
	if err != nil {
		return 0, 0, false
	}

	var sum, weight int64
	plies := 0
	for ply := 1; ply <= cfg.MaxPlies; ply++ {
		head, ok := p.Probe(chess.Fingerprint(cur))
		if !ok {
			break
		}
		best := head.Record()
		if best.Depth < cfg.MinDepth {
			break
		}

		v := int64(best.Value)
		if ply%2 == 1 {
			v = -v
		}
		sum += v * int64(best.Depth)
		weight += int64(best.Depth)
		plies = ply

		if err := chess.Apply(cur, best.Move); err != nil {
			break
		}
	}

	if weight == 0 {
		return 0, 0, false
	}
	return int32(sum / weight), plies, true
}

// Rank probes pos and estimates every stored candidate. Candidates come back
// sorted by estimate, best first, keeping the chain order for ties; those
// without an estimate go last.
func Rank(p store.Prober, pos *pgn.GameState, cfg Config) []Candidate {
	head, ok := p.Probe(chess.Fingerprint(pos))
	if !ok {
		return nil
	}

	var out []Candidate
	for n := head; n.Valid(); n = n.Next() {
		c := Candidate{Record: n.Record()}
		c.Quality, c.Plies, c.HasQuality = Estimate(p, pos, c.Record, cfg)
		out = append(out, c)
	}

	slices.SortStableFunc(out, func(a, b Candidate) int {
		switch {
		case a.HasQuality && !b.HasQuality:
			return -1
		case !a.HasQuality && b.HasQuality:
			return 1
		case a.Quality > b.Quality:
			return -1
		case a.Quality < b.Quality:
			return 1
		}
		return 0
	})
	return out
}

// Show writes the stored candidates of pos as a table. With withQuality the
// candidates are ranked by estimate and an extra column is printed;
// otherwise they are listed in chain order.
func Show(w io.Writer, p store.Prober, pos *pgn.GameState, withQuality bool, cfg Config) error {
	key := chess.Fingerprint(pos)
	fmt.Fprintf(w, "fen: %s\nkey: %s\n", pos.ToFEN(), key)

	var cands []Candidate
	if withQuality {
		cands = Rank(p, pos, cfg)
	} else if head, ok := p.Probe(key); ok {
		for n := head; n.Valid(); n = n.Next() {
			cands = append(cands, Candidate{Record: n.Record()})
		}
	}
	if len(cands) == 0 {
		_, err := fmt.Fprintln(w, "no experience data for this position")
		return err
	}

	var tw tabwriter.Writer
	tw.Init(w, 4, 4, 1, ' ', 0)
	if withQuality {
		fmt.Fprintln(&tw, "#\tmove\tdepth\tvalue\tquality\tplies")
	} else {
		fmt.Fprintln(&tw, "#\tmove\tdepth\tvalue")
	}
	for i, c := range cands {
		if !withQuality {
			fmt.Fprintf(&tw, "%d\t%s\t%d\t%s\n", i+1, c.Move, c.Depth, graph.FormatValue(c.Value))
			continue
		}
		quality := "-"
		if c.HasQuality {
			quality = graph.FormatValue(c.Quality)
		}
		fmt.Fprintf(&tw, "%d\t%s\t%d\t%s\t%s\t%d\n", i+1, c.Move, c.Depth, graph.FormatValue(c.Value), quality, c.Plies)
	}
	return tw.Flush()
}
