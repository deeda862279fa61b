package transport

import "testing"

// RFC9000 Appendix A sample: largest acked 0xa82f30ea, truncated pn 0x9b32
// (len 2), expected reconstruction 0xa82f9b32.
func TestDecodePacketNumberAppendixA(t *testing.T) {
	got := decodePacketNumber(0xa82f30ea, 0x9b32, 2)
	want := uint64(0xa82f9b32)
	if got != want {
		t.Fatalf("decodePacketNumber = %#x, want %#x", got, want)
	}
}

func TestPacketNumberEncodeDecodeRoundTrip(t *testing.T) {
	cases := []struct {
		pn           uint64
		largestAcked uint64
	}{
		{0, invalidPacketNumber},
		{1, 0},
		{127, 0},
		{1000, 980},
		{1 << 20, (1 << 20) - 5},
	}
	for _, c := range cases {
		length := packetNumberLenForEncode(c.pn, c.largestAcked)
		b := make([]byte, length)
		encodePacketNumber(b, c.pn, length)
		truncated := decodeTruncatedPacketNumber(b, length)
		got := decodePacketNumber(c.largestAcked, truncated, length)
		if got != c.pn {
			t.Fatalf("pn=%d largestAcked=%d length=%d: round-trip got %d", c.pn, c.largestAcked, length, got)
		}
	}
}

func TestPacketNumberLenForEncodeGrowsWithGap(t *testing.T) {
	small := packetNumberLenForEncode(100, 99)
	if small != 1 {
		t.Fatalf("adjacent packet number length = %d, want 1", small)
	}
	large := packetNumberLenForEncode(1<<20, 0)
	if large <= small {
		t.Fatalf("a widely-separated packet number should need a longer encoding: got %d", large)
	}
}

func TestPacketTypeSpaceMapping(t *testing.T) {
	cases := []struct {
		typ   packetType
		space packetSpace
	}{
		{packetTypeInitial, packetSpaceInitial},
		{packetTypeHandshake, packetSpaceHandshake},
		{packetTypeZeroRTT, packetSpaceApplication},
		{packetTypeShort, packetSpaceApplication},
	}
	for _, c := range cases {
		if got := spaceFromPacketType(c.typ); got != c.space {
			t.Errorf("spaceFromPacketType(%s) = %s, want %s", c.typ, got, c.space)
		}
	}
	if got := packetTypeFromSpace(packetSpaceInitial); got != packetTypeInitial {
		t.Errorf("packetTypeFromSpace(initial) = %s", got)
	}
	if got := packetTypeFromSpace(packetSpaceApplication); got != packetTypeShort {
		t.Errorf("packetTypeFromSpace(application) = %s, want short", got)
	}
}

func TestDecodeLongHeaderTruncated(t *testing.T) {
	p := &packet{}
	if _, err := p.decodeHeader([]byte{0x80, 0, 0}); err == nil {
		t.Fatal("decodeHeader on a truncated long header should fail")
	}
}

func TestDecodeShortHeaderTruncated(t *testing.T) {
	p := &packet{header: packetHeader{dcil: 8}}
	if _, err := p.decodeHeader([]byte{0x40}); err == nil {
		t.Fatal("decodeHeader on a truncated short header should fail")
	}
}
