package quic

import (
	"bytes"
	"net"
	"testing"
)

func TestTokenManagerSealOpenRoundTrip(t *testing.T) {
	tm, err := newTokenManager()
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 4242}
	odcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	retrySCID := []byte{8, 7, 6, 5, 4, 3, 2, 1}

	token, err := tm.seal(tokenPurposeRetry, addr, odcid, retrySCID)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	purpose, gotODCID, gotSCID, err := tm.open(token, addr)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if purpose != tokenPurposeRetry {
		t.Fatalf("purpose = %v, want tokenPurposeRetry", purpose)
	}
	if !bytes.Equal(gotODCID, odcid) {
		t.Fatalf("odcid = %x, want %x", gotODCID, odcid)
	}
	if !bytes.Equal(gotSCID, retrySCID) {
		t.Fatalf("retrySCID = %x, want %x", gotSCID, retrySCID)
	}
}

func TestTokenManagerRejectsWrongAddress(t *testing.T) {
	tm, err := newTokenManager()
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	issued := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}
	other := &net.UDPAddr{IP: net.ParseIP("203.0.113.2"), Port: 1}

	token, err := tm.seal(tokenPurposeNewToken, issued, nil, nil)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, _, _, err := tm.open(token, other); err != errInvalidToken {
		t.Fatalf("open with mismatched address: err = %v, want errInvalidToken", err)
	}
}

func TestTokenManagerRejectsTamperedToken(t *testing.T) {
	tm, err := newTokenManager()
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}
	token, err := tm.seal(tokenPurposeRetry, addr, []byte{9, 9, 9, 9}, []byte{1, 1, 1, 1})
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	token[len(token)-1] ^= 1
	if _, _, _, err := tm.open(token, addr); err != errInvalidToken {
		t.Fatalf("open with tampered token: err = %v, want errInvalidToken", err)
	}
}

func TestTokenManagerRejectsShortToken(t *testing.T) {
	tm, err := newTokenManager()
	if err != nil {
		t.Fatalf("newTokenManager: %v", err)
	}
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.1"), Port: 1}
	if _, _, _, err := tm.open([]byte{1, 2, 3}, addr); err != errInvalidToken {
		t.Fatalf("open with too-short token: err = %v, want errInvalidToken", err)
	}
}
