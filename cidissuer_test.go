package quic

import "testing"

func TestCIDIssuerNewCIDHasFixedLength(t *testing.T) {
	iss, err := newCIDIssuer()
	if err != nil {
		t.Fatalf("newCIDIssuer: %v", err)
	}
	cid, err := iss.newCID()
	if err != nil {
		t.Fatalf("newCID: %v", err)
	}
	if len(cid) != localCIDLength {
		t.Fatalf("len(cid) = %d, want %d", len(cid), localCIDLength)
	}
}

func TestCIDIssuerNewCIDIsRandom(t *testing.T) {
	iss, err := newCIDIssuer()
	if err != nil {
		t.Fatalf("newCIDIssuer: %v", err)
	}
	a, _ := iss.newCID()
	b, _ := iss.newCID()
	equal := true
	for i := range a {
		if a[i] != b[i] {
			equal = false
			break
		}
	}
	if equal {
		t.Fatal("two consecutive issued connection IDs collided")
	}
}

func TestStatelessResetTokenIsDeterministic(t *testing.T) {
	iss, err := newCIDIssuer()
	if err != nil {
		t.Fatalf("newCIDIssuer: %v", err)
	}
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	t1 := iss.statelessResetToken(cid)
	t2 := iss.statelessResetToken(cid)
	if len(t1) != 16 {
		t.Fatalf("len(token) = %d, want 16", len(t1))
	}
	for i := range t1 {
		if t1[i] != t2[i] {
			t.Fatal("statelessResetToken is not deterministic for the same cid")
		}
	}
}

func TestStatelessResetTokenDiffersPerIssuer(t *testing.T) {
	issA, _ := newCIDIssuer()
	issB, _ := newCIDIssuer()
	cid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	tokA := issA.statelessResetToken(cid)
	tokB := issB.statelessResetToken(cid)
	equal := true
	for i := range tokA {
		if tokA[i] != tokB[i] {
			equal = false
			break
		}
	}
	if equal {
		t.Fatal("two independently-seeded issuers produced the same reset token")
	}
}
