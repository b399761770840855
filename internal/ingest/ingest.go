// Package ingest converts compact annotated game records into experience
// files.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/graph"
	"github.com/freeeve/chessexp/internal/store"
)

// Config configures a Converter.
type Config struct {
	MaxPly      int            // last ply whose evaluation is kept, 0 = unlimited
	MaxScore    int32          // largest |score| kept, default graph.ValueMate
	MinDepth    uint32         // default store.MinDepth
	MaxDepth    uint32         // default graph.MaxPly
	MaxLineSize int            // longest accepted input line, default 1MB
	LogEvery    time.Duration  // progress log interval, default 10s
	Logger      zerolog.Logger // Logger
	Metrics     *Metrics       // optional
	Store       store.Config   // used for the final defrag
}

// Stats summarises one conversion.
type Stats struct {
	Lines    int
	Games    int // lines that parsed and replayed
	Accepted int
	Invalid  int
	Rejected map[Reason]int
	Records  int
	Elapsed  time.Duration
}

// Converter turns compact notation into experience records.
type Converter struct {
	cfg Config
	log zerolog.Logger
}

// NewConverter creates a Converter.
func NewConverter(cfg Config) *Converter {
	if cfg.MaxScore == 0 {
		cfg.MaxScore = graph.ValueMate
	}
	if cfg.MinDepth == 0 {
		cfg.MinDepth = store.MinDepth
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = graph.MaxPly
	}
	if cfg.MaxLineSize <= 0 {
		cfg.MaxLineSize = 1 << 20
	}
	if cfg.LogEvery == 0 {
		cfg.LogEvery = 10 * time.Second
	}
	return &Converter{cfg: cfg, log: cfg.Logger}
}

// Run converts input (plain text, or zstd-compressed when it ends in .zst)
// into the experience file output, appending when output already exists,
// and finally defragments output.
func (c *Converter) Run(ctx context.Context, input, output string) (Stats, error) {
	c.log.Info().
		Str("input", input).
		Str("output", output).
		Int("max_ply", c.cfg.MaxPly).
		Int32("max_score", c.cfg.MaxScore).
		Uint32("min_depth", c.cfg.MinDepth).
		Uint32("max_depth", c.cfg.MaxDepth).
		Msg("starting conversion")

	in, err := os.Open(input)
	if err != nil {
		return Stats{}, &store.IOError{Op: "open", Path: input, Err: err}
	}
	defer in.Close()

	var r io.Reader = in
	if filepath.Ext(input) == ".zst" {
		dec, err := zstd.NewReader(in)
		if err != nil {
			return Stats{}, fmt.Errorf("zstd reader for %s: %w", input, err)
		}
		defer dec.Close()
		r = dec
	}

	out, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return Stats{}, &store.IOError{Op: "open", Path: output, Err: err}
	}
	info, err := out.Stat()
	if err != nil {
		out.Close()
		return Stats{}, &store.IOError{Op: "stat", Path: output, Err: err}
	}

	w := bufio.NewWriterSize(out, 1<<20)
	if info.Size() == 0 {
		if _, err := w.WriteString(store.Signature); err != nil {
			out.Close()
			return Stats{}, &store.IOError{Op: "write signature", Path: output, Err: err}
		}
	}

	st, convErr := c.Convert(ctx, r, w)
	if err := w.Flush(); err != nil && convErr == nil {
		convErr = &store.IOError{Op: "flush", Path: output, Err: err}
	}
	if err := out.Close(); err != nil && convErr == nil {
		convErr = &store.IOError{Op: "close", Path: output, Err: err}
	}
	if convErr != nil {
		return st, convErr
	}

	if err := store.Defrag(output, c.cfg.Store); err != nil {
		return st, fmt.Errorf("defrag %s: %w", output, err)
	}
	return st, nil
}

// Convert reads compact games from r and writes the encoded records of every
// accepted game to w. Malformed lines, and lines longer than MaxLineSize, are
// counted as invalid, logged and skipped.
func (c *Converter) Convert(ctx context.Context, r io.Reader, w io.Writer) (Stats, error) {
	st := Stats{Rejected: make(map[Reason]int)}
	start := time.Now()
	lastLog := start

	lr := &lineReader{br: bufio.NewReaderSize(r, 64*1024), max: c.cfg.MaxLineSize}

	var buf []byte
lineLoop:
	for {
		select {
		case <-ctx.Done():
			break lineLoop
		default:
		}

		line, tooLong, err := lr.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("read input: %w", err)
		}

		st.Lines++
		if tooLong {
			st.Invalid++
			c.cfg.Metrics.rejected(ReasonInvalid)
			c.log.Warn().Int("line", st.Lines).Int("max_line_size", c.cfg.MaxLineSize).Msg("skipping over-long line")
			continue
		}
		if len(line) == 0 {
			continue
		}

		recs, reason, err := c.ProcessLine(st.Lines, string(line))
		switch {
		case err != nil:
			st.Invalid++
			c.cfg.Metrics.rejected(ReasonInvalid)
			c.log.Debug().Err(err).Msg("skipping line")
			continue
		case reason != "":
			st.Games++
			st.Rejected[reason]++
			c.cfg.Metrics.rejected(reason)
			continue
		}

		st.Games++
		st.Accepted++
		st.Records += len(recs)
		c.cfg.Metrics.accepted(len(recs))

		buf = buf[:0]
		for _, rec := range recs {
			buf = store.AppendRecord(buf, rec)
		}
		if _, err := w.Write(buf); err != nil {
			return st, fmt.Errorf("write records: %w", err)
		}

		if time.Since(lastLog) > c.cfg.LogEvery {
			c.logProgress(st, start, "conversion progress")
			lastLog = time.Now()
		}
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	st.Elapsed = time.Since(start)
	c.logProgress(st, start, "conversion complete")
	return st, nil
}

// lineReader splits input into lines. Lines longer than max are discarded
// and flagged rather than ending the read.
type lineReader struct {
	br  *bufio.Reader
	max int
	buf []byte
}

// next returns the next line without its terminator, or io.EOF when the input
// is exhausted. The returned slice is valid until the next call.
func (lr *lineReader) next() (line []byte, tooLong bool, err error) {
	lr.buf = lr.buf[:0]
	read := false
	for {
		frag, err := lr.br.ReadSlice('\n')
		read = read || len(frag) > 0
		if !tooLong {
			lr.buf = append(lr.buf, frag...)
			// two bytes of slack for the "\r\n" terminator
			if len(lr.buf) > lr.max+2 {
				tooLong = true
				lr.buf = lr.buf[:0]
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && (!errors.Is(err, io.EOF) || !read) {
			return nil, false, err
		}
		break
	}
	if tooLong {
		return nil, true, nil
	}
	line = bytes.TrimSuffix(lr.buf, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	if len(line) > lr.max {
		return nil, true, nil
	}
	return line, false, nil
}

func (c *Converter) logProgress(st Stats, start time.Time, msg string) {
	elapsed := time.Since(start)
	ev := c.log.Info().
		Int("lines", st.Lines).
		Int("games", st.Games).
		Int("accepted", st.Accepted).
		Int("invalid", st.Invalid).
		Int("records", st.Records).
		Dur("elapsed", elapsed).
		Float64("games_per_sec", float64(st.Games)/elapsed.Seconds())
	for reason, n := range st.Rejected {
		ev.Int("rejected_"+string(reason), n)
	}
	ev.Msg(msg)
}

// ProcessLine parses and replays one line. It returns the records to keep
// when the game is accepted, or the rejection reason. Lines that cannot be
// parsed or replayed return a *ValidationError.
func (c *Converter) ProcessLine(lineNo int, line string) ([]store.Record, Reason, error) {
	g, err := ParseGame(lineNo, line)
	if err != nil {
		return nil, "", err
	}
	return c.ProcessGame(g)
}

// ProcessGame replays g from its FEN, staging one record per evaluated move
// that passes the ply, score and depth filters, and then applies the result
// heuristics.
func (c *Converter) ProcessGame(g *Game) ([]store.Record, Reason, error) {
	pos, err := chess.FromFEN(g.FEN)
	if err != nil {
		return nil, "", &ValidationError{Line: g.Line, Reason: err.Error()}
	}

	var (
		tracker resultTracker
		staged  []store.Record
	)
	for i, p := range g.Plies {
		ply := i + 1
		stm := chess.SideToMove(pos)
		key := chess.Fingerprint(pos)

		mv, move, err := chess.ParseUCI(pos, p.UCI)
		if err != nil {
			return nil, "", &ValidationError{Line: g.Line, Reason: fmt.Sprintf("ply %d: %v", ply, err)}
		}

		if p.HasEval {
			tracker.observe(stm, p.Score)
			if c.keep(ply, p) {
				staged = append(staged, store.NewRecord(key, move, p.Score, p.Depth))
			}
		}

		if err := pgn.ApplyMove(pos, mv); err != nil {
			return nil, "", &ValidationError{Line: g.Line, Reason: fmt.Sprintf("ply %d: %v", ply, err)}
		}
		if !tracker.drawDetected && chess.InsufficientMaterial(pos) {
			tracker.drawDetected = true
		}
	}

	if reason := tracker.verdict(g.Declared, len(g.Plies)); reason != "" {
		return nil, reason, nil
	}
	return staged, "", nil
}

func (c *Converter) keep(ply int, p Ply) bool {
	if c.cfg.MaxPly > 0 && ply > c.cfg.MaxPly {
		return false
	}
	if p.Score > c.cfg.MaxScore || p.Score < -c.cfg.MaxScore {
		return false
	}
	return p.Depth >= c.cfg.MinDepth && p.Depth <= c.cfg.MaxDepth
}
