package transport

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, maxVarint8}
	for _, v := range values {
		b := make([]byte, 8)
		n := putVarint(b, v)
		if n != varintLen(v) {
			t.Fatalf("putVarint(%d) wrote %d bytes, varintLen says %d", v, n, varintLen(v))
		}
		if got := peekVarintLen(b); got != n {
			t.Fatalf("peekVarintLen(%d) = %d, want %d", v, got, n)
		}
		var got uint64
		m := getVarint(b[:n], &got)
		if m != n {
			t.Fatalf("getVarint consumed %d bytes, want %d", m, n)
		}
		if got != v {
			t.Fatalf("getVarint round-trip: got %d, want %d", got, v)
		}
	}
}

func TestVarintEncodingLength(t *testing.T) {
	cases := []struct {
		v    uint64
		want int
	}{
		{0, 1}, {37, 1}, {maxVarint1, 1},
		{maxVarint1 + 1, 2}, {15293, 2}, {maxVarint2, 2},
		{maxVarint2 + 1, 4}, {494878333, 4}, {maxVarint4, 4},
		{maxVarint4 + 1, 8}, {151288809941952652, 8}, {maxVarint8, 8},
	}
	for _, c := range cases {
		if got := varintLen(c.v); got != c.want {
			t.Errorf("varintLen(%d) = %d, want %d", c.v, got, c.want)
		}
	}
}

func TestVarintTruncatedDecode(t *testing.T) {
	b := []byte{0xc0} // claims an 8-byte encoding but only 1 byte present
	var v uint64
	if n := getVarint(b, &v); n != 0 {
		t.Fatalf("getVarint on truncated input returned %d, want 0", n)
	}
	if n := getVarint(nil, &v); n != 0 {
		t.Fatalf("getVarint on empty input returned %d, want 0", n)
	}
}

func TestVarintOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("putVarint did not panic on an out-of-range value")
		}
	}()
	putVarint(make([]byte, 8), maxVarint8+1)
}
