// Package opening names positions after the opening that reaches them, so
// experience listings can say where in theory a position sits.
package opening

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/graph"
)

// Opening is one ECO classification.
type Opening struct {
	ECO  string
	Name string
}

func (o Opening) String() string {
	return o.ECO + " " + o.Name
}

// Book maps experience fingerprints to openings.
type Book struct {
	byKey   map[graph.Fingerprint]Opening
	skipped int
}

// NewBook creates an empty Book.
func NewBook() *Book {
	return &Book{byKey: make(map[graph.Fingerprint]Opening)}
}

// moveNumber matches move numbers like "1." or "12..."
var moveNumber = regexp.MustCompile(`\d+\.+\s*`)

// LoadDir reads every .tsv file in dir.
func (b *Book) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}
	for _, file := range files {
		if err := b.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile reads one TSV file.
func (b *Book) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return b.Load(f)
}

// Load reads "eco<TAB>name<TAB>moves" lines, where moves is SAN movetext such
// as "1. e4 e5 2. Nf3". A leading header line is ignored and lines whose
// moves do not replay are counted as skipped.
func (b *Book) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		pos := pgn.NewStartingPosition()
		if err := replaySAN(pos, parts[2]); err != nil {
			b.skipped++
			continue
		}
		b.byKey[chess.Fingerprint(pos)] = Opening{ECO: parts[0], Name: parts[1]}
	}
	return scanner.Err()
}

// replaySAN plays movetext like "1. e4 e5 2. Nf3 Nc6" on pos.
func replaySAN(pos *pgn.GameState, movetext string) error {
	for _, san := range strings.Fields(moveNumber.ReplaceAllString(movetext, "")) {
		if san[0] == '$' || san[0] == '{' {
			continue
		}
		san = strings.TrimRight(san, "+#")
		mv, err := pgn.ParseSAN(pos, san)
		if err != nil {
			return fmt.Errorf("parse %q: %w", san, err)
		}
		if err := pgn.ApplyMove(pos, mv); err != nil {
			return fmt.Errorf("apply %q: %w", san, err)
		}
	}
	return nil
}

// Lookup returns the opening reaching key.
func (b *Book) Lookup(key graph.Fingerprint) (Opening, bool) {
	o, ok := b.byKey[key]
	return o, ok
}

// Len returns the number of positions named.
func (b *Book) Len() int {
	return len(b.byKey)
}

// Skipped returns the number of lines whose moves could not be replayed.
func (b *Book) Skipped() int {
	return b.skipped
}
