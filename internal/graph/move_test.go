package graph

import (
	"testing"
)

func TestEncodeDecodeMove(t *testing.T) {
	tests := []struct {
		name  string
		from  int
		to    int
		promo byte
	}{
		{"e2e4", 12, 28, PromoNone},
		{"e7e8q", 52, 60, PromoQueen},
		{"a7a8r", 48, 56, PromoRook},
		{"h2h1b", 15, 7, PromoBishop},
		{"b7b8n", 49, 57, PromoKnight},
		{"a1h8", 0, 63, PromoNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := EncodeMove(tt.from, tt.to, tt.promo)
			from, to, promo := m.FromSquare(), m.ToSquare(), m.Promotion()
			if from != tt.from || to != tt.to || promo != tt.promo {
				t.Errorf("EncodeMove(%d, %d, %d) = %x, decode gives (%d, %d, %d)",
					tt.from, tt.to, tt.promo, m, from, to, promo)
			}
			if m.ToUCI() != tt.name {
				t.Errorf("ToUCI() = %s, want %s", m.ToUCI(), tt.name)
			}
		})
	}
}

func TestEncodeMoveOutOfRange(t *testing.T) {
	if m := EncodeMove(-1, 10, PromoNone); !m.IsNone() {
		t.Errorf("EncodeMove(-1, 10) = %x, want MoveNone", m)
	}
	if m := EncodeMove(10, 64, PromoNone); !m.IsNone() {
		t.Errorf("EncodeMove(10, 64) = %x, want MoveNone", m)
	}
	if m := EncodeMove(52, 60, 7); !m.IsNone() {
		t.Errorf("EncodeMove with promo 7 = %x, want MoveNone", m)
	}
}

func TestMoveFromUCI(t *testing.T) {
	tests := []struct {
		name    string
		uci     string
		want    Move
		wantErr bool
	}{
		{"e2e4", "e2e4", EncodeMove(12, 28, PromoNone), false},
		{"e7e8q", "e7e8q", EncodeMove(52, 60, PromoQueen), false},
		{"upper promo", "e7e8Q", EncodeMove(52, 60, PromoQueen), false},
		{"c7c8b", "c7c8b", EncodeMove(50, 58, PromoBishop), false},
		{"invalid", "xyz", MoveNone, true},
		{"too short", "e2e", MoveNone, true},
		{"too long", "e2e4qq", MoveNone, true},
		{"bad promo", "e7e8k", MoveNone, true},
		{"off board", "i2i4", MoveNone, true},
		{"null", "a1a1", MoveNone, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MoveFromUCI(tt.uci)
			if (err != nil) != tt.wantErr {
				t.Fatalf("MoveFromUCI(%s) error = %v, wantErr %v", tt.uci, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("MoveFromUCI(%s) = %x, want %x", tt.uci, got, tt.want)
			}
		})
	}
}

func TestMoveNoneString(t *testing.T) {
	if s := MoveNone.String(); s != "0000" {
		t.Errorf("MoveNone.String() = %s, want 0000", s)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		v    int32
		want string
	}{
		{35, "cp 35"},
		{-120, "cp -120"},
		{MateIn(1), "mate 1"},
		{MateIn(5), "mate 3"},
		{MatedIn(2), "mate -1"},
		{MatedIn(4), "mate -2"},
	}
	for _, tt := range tests {
		if got := FormatValue(tt.v); got != tt.want {
			t.Errorf("FormatValue(%d) = %q, want %q", tt.v, got, tt.want)
		}
	}
}
