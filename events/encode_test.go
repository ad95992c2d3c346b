package events

import "testing"

func TestMouseMoveEncodingBitLayout(t *testing.T) {
	// Horizontal in the high 16 bits, vertical in the low 16, each a
	// signed field.
	if got := EncodeMouseMove(1, 2); got != 0x00010002 {
		t.Fatalf("EncodeMouseMove(1,2) = %#08x", got)
	}
	if got := EncodeMouseMove(-1, -1); got != 0xffffffff {
		t.Fatalf("EncodeMouseMove(-1,-1) = %#08x", got)
	}
}

func TestMouseMoveEncodingRoundTrip(t *testing.T) {
	cases := []struct{ dx, dy int16 }{
		{0, 0},
		{300, -7},
		{-32768, 32767},
	}
	for _, c := range cases {
		dx, dy := DecodeMouseMove(EncodeMouseMove(c.dx, c.dy))
		if dx != c.dx || dy != c.dy {
			t.Fatalf("round trip (%d,%d) -> (%d,%d)", c.dx, c.dy, dx, dy)
		}
	}
}

func TestScrollEncodingBitLayout(t *testing.T) {
	// Horizontal in the high 8 bits of the low half-word, vertical in the
	// low 8.
	if got := EncodeScroll(1, 2); got != 0x0102 {
		t.Fatalf("EncodeScroll(1,2) = %#04x", got)
	}
}

func TestScrollEncodingRoundTrip(t *testing.T) {
	cases := []struct{ hx, vy int8 }{
		{0, 0},
		{-3, 2},
		{-128, 127},
	}
	for _, c := range cases {
		hx, vy := DecodeScroll(EncodeScroll(c.hx, c.vy))
		if hx != c.hx || vy != c.vy {
			t.Fatalf("round trip (%d,%d) -> (%d,%d)", c.hx, c.vy, hx, vy)
		}
	}
}
