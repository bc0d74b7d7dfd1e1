package pack

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestRightJustifiedRoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		value uint32
		width int
	}{
		{"zero", 0, 3},
		{"small", 42, 3},
		{"14bit max", 0x3fff, 2},
		{"21bit max", 0x1fffff, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, tt.width)
			PutRightJustified(data, tt.value)
			got := RightJustified(data)
			if got != tt.value {
				t.Errorf("RightJustified(PutRightJustified(%d)) = %d", tt.value, got)
			}
		})
	}
}

func TestLeftJustifiedRoundTrip(t *testing.T) {
	tests := []int16{0, 1, -1, 32767, -32768, 12345, -12345}
	for _, v := range tests {
		data := make([]byte, 3)
		PutLeftJustified(data, 16, v)
		got := LeftJustified(data, 16)
		if got != v {
			t.Errorf("LeftJustified(PutLeftJustified(%d)) = %d", v, got)
		}
	}
}

func TestPackUnpackRoundTrip(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for _, n := range []int{0, 1, 6, 7, 8, 15, 120, 121} {
		src := make([]byte, n)
		r.Read(src)
		packed := Pack(src)
		if len(packed) != PackedSize(n) {
			t.Errorf("len %d: PackedSize=%d got %d", n, PackedSize(n), len(packed))
		}
		got := Unpack(packed, n)
		if !bytes.Equal(got, src) {
			t.Errorf("len %d: round trip mismatch", n)
		}
	}
}

func TestPackedSizeFormula(t *testing.T) {
	for n := 0; n < 64; n++ {
		want := 8 * ((n + 6) / 7)
		if n%7 != 0 {
			want -= 7 - n%7
		}
		if got := PackedSize(n); got != want {
			t.Errorf("PackedSize(%d) = %d, want %d", n, got, want)
		}
	}
}
