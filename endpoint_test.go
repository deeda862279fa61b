package quic

import (
	"bytes"
	"testing"
)

func TestPeekDCIDLongHeader(t *testing.T) {
	dcid := []byte{1, 2, 3, 4}
	pkt := append([]byte{0x80, 0, 0, 0, 1, byte(len(dcid))}, dcid...)
	pkt = append(pkt, 9, 9, 9) // trailing scid/payload bytes, irrelevant here

	got, ok := peekDCID(pkt)
	if !ok {
		t.Fatal("peekDCID failed on a well-formed long header")
	}
	if !bytes.Equal(got, dcid) {
		t.Fatalf("peekDCID = %x, want %x", got, dcid)
	}
}

func TestPeekDCIDShortHeader(t *testing.T) {
	dcid := make([]byte, localCIDLength)
	for i := range dcid {
		dcid[i] = byte(i + 1)
	}
	pkt := append([]byte{0x40}, dcid...)
	pkt = append(pkt, 0xaa) // packet number byte

	got, ok := peekDCID(pkt)
	if !ok {
		t.Fatal("peekDCID failed on a well-formed short header")
	}
	if !bytes.Equal(got, dcid) {
		t.Fatalf("peekDCID = %x, want %x", got, dcid)
	}
}

func TestPeekDCIDRejectsTruncatedPackets(t *testing.T) {
	if _, ok := peekDCID(nil); ok {
		t.Fatal("peekDCID accepted an empty datagram")
	}
	if _, ok := peekDCID([]byte{0x80, 0, 0, 0, 1, 20}); ok {
		t.Fatal("peekDCID accepted a long header with a truncated DCID")
	}
	if _, ok := peekDCID([]byte{0x40, 1, 2}); ok {
		t.Fatal("peekDCID accepted a short header shorter than localCIDLength")
	}
}
