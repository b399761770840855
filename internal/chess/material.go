package chess

import "github.com/freeeve/pgn/v3"

// Material counts the pieces on the board, kings excluded.
type Material struct {
	Pawns, Knights, Bishops, Rooks, Queens [2]int
	// BishopColors has bit 0 set for a bishop on a dark square and bit 1
	// for one on a light square, per side.
	BishopColors [2]uint8
}

// MaterialOf counts the pieces of pos.
func MaterialOf(pos *pgn.GameState) Material {
	var m Material
	for sq := 0; sq < 64; sq++ {
		c := pos.PieceAt(pgn.Square(sq))
		if c == 0 {
			continue
		}
		side := 0
		if c >= 'a' && c <= 'z' {
			side = 1
			c -= 'a' - 'A'
		}
		switch c {
		case 'P':
			m.Pawns[side]++
		case 'N':
			m.Knights[side]++
		case 'B':
			m.Bishops[side]++
			// a1 is dark: (file+rank) even
			if (sq%8+sq/8)%2 == 0 {
				m.BishopColors[side] |= 1
			} else {
				m.BishopColors[side] |= 2
			}
		case 'R':
			m.Rooks[side]++
		case 'Q':
			m.Queens[side]++
		}
	}
	return m
}

func (m Material) minors(side int) int {
	return m.Knights[side] + m.Bishops[side]
}

func (m Material) heavy(side int) int {
	return m.Pawns[side] + m.Rooks[side] + m.Queens[side]
}

// InsufficientMaterial reports the dead-draw material configurations: bare
// kings, a single minor piece against a bare king, and one bishop each with
// both on the same square colour.
func (m Material) InsufficientMaterial() bool {
	if m.heavy(0) > 0 || m.heavy(1) > 0 {
		return false
	}
	w, b := m.minors(0), m.minors(1)
	switch {
	case w == 0 && b == 0:
		return true
	case w+b == 1:
		return true
	case w == 1 && b == 1 && m.Bishops[0] == 1 && m.Bishops[1] == 1:
		return m.BishopColors[0] == m.BishopColors[1]
	}
	return false
}

// InsufficientMaterial reports whether neither side can force mate in pos.
func InsufficientMaterial(pos *pgn.GameState) bool {
	return MaterialOf(pos).InsufficientMaterial()
}
