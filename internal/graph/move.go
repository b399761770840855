package graph

import "fmt"

// Move is the opaque move token stored in experience records.
//
// Move encoding (uint32):
//
//	bits 0-5:   from square (0-63, A1=0 ... H8=63)
//	bits 6-11:  to square (0-63)
//	bits 12-14: promotion piece (0=none, 1=Q, 2=R, 3=B, 4=N)
//	bits 15-31: reserved, always zero
//
// The zero value is MoveNone (a1a1 is never a legal move).
type Move uint32

// MoveNone is the null move.
const MoveNone Move = 0

const (
	moveFromMask   = 0x3F
	moveToMask     = 0xFC0
	movePromoMask  = 0x7000
	moveToShift    = 6
	movePromoShift = 12
)

// Promotion piece codes
const (
	PromoNone   byte = 0
	PromoQueen  byte = 1
	PromoRook   byte = 2
	PromoBishop byte = 3
	PromoKnight byte = 4
)

var promoChars = [...]byte{'q', 'r', 'b', 'n'}

// EncodeMove creates a Move from square indices and optional promotion.
// Out-of-range squares or promotions yield MoveNone.
func EncodeMove(from, to int, promo byte) Move {
	if from < 0 || from > 63 || to < 0 || to > 63 || promo > PromoKnight {
		return MoveNone
	}
	return Move(uint32(from) | uint32(to)<<moveToShift | uint32(promo)<<movePromoShift)
}

// FromSquare returns the source square index (0-63).
func (m Move) FromSquare() int {
	return int(m & moveFromMask)
}

// ToSquare returns the destination square index (0-63).
func (m Move) ToSquare() int {
	return int((m & moveToMask) >> moveToShift)
}

// Promotion returns the promotion piece code.
func (m Move) Promotion() byte {
	return byte((m & movePromoMask) >> movePromoShift)
}

// IsNone reports whether m is the null move.
func (m Move) IsNone() bool {
	return m == MoveNone
}

// ToUCI converts a Move to UCI notation (e.g., "e2e4", "e7e8q").
func (m Move) ToUCI() string {
	if m.IsNone() {
		return "0000"
	}
	from, to := m.FromSquare(), m.ToSquare()
	buf := []byte{
		byte('a' + from%8), byte('1' + from/8),
		byte('a' + to%8), byte('1' + to/8),
	}
	if p := m.Promotion(); p != PromoNone {
		buf = append(buf, promoChars[p-1])
	}
	return string(buf)
}

func (m Move) String() string {
	return m.ToUCI()
}

// MoveFromUCI parses a UCI move string into a Move.
// Examples: "e2e4", "e7e8q", "a1h8"
func MoveFromUCI(uci string) (Move, error) {
	if len(uci) < 4 || len(uci) > 5 {
		return MoveNone, fmt.Errorf("invalid UCI move length: %q", uci)
	}

	fromFile := int(uci[0]) - 'a'
	fromRank := int(uci[1]) - '1'
	toFile := int(uci[2]) - 'a'
	toRank := int(uci[3]) - '1'

	if fromFile < 0 || fromFile > 7 || fromRank < 0 || fromRank > 7 {
		return MoveNone, fmt.Errorf("invalid from square in UCI: %s", uci)
	}
	if toFile < 0 || toFile > 7 || toRank < 0 || toRank > 7 {
		return MoveNone, fmt.Errorf("invalid to square in UCI: %s", uci)
	}

	promo := PromoNone
	if len(uci) == 5 {
		switch uci[4] {
		case 'q', 'Q':
			promo = PromoQueen
		case 'r', 'R':
			promo = PromoRook
		case 'b', 'B':
			promo = PromoBishop
		case 'n', 'N':
			promo = PromoKnight
		default:
			return MoveNone, fmt.Errorf("invalid promotion piece: %c", uci[4])
		}
	}

	m := EncodeMove(fromRank*8+fromFile, toRank*8+toFile, promo)
	if m.IsNone() {
		return MoveNone, fmt.Errorf("null move in UCI: %s", uci)
	}
	return m, nil
}
