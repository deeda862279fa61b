package transport

import (
	"bytes"
	"encoding/hex"
	"testing"
)

func unhex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex literal %q: %v", s, err)
	}
	return b
}

// RFC9001 §A.1/§A.2 test vectors for the version-1 initial salt and the
// client Initial secret/key/iv/header-protection key derived from them.
func TestInitialSecretsRFC9001Vector(t *testing.T) {
	dcid := unhex(t, "8394c8f03e515708")
	clientSecret, _ := initialSecrets(dcid)

	wantClientSecret := unhex(t, "c00cf151ca5be075ed0ebfb5c80323c42d6b7db67881289af4008f1f6c357aea")
	if !bytes.Equal(clientSecret, wantClientSecret) {
		t.Fatalf("client initial secret = %x, want %x", clientSecret, wantClientSecret)
	}

	key := hkdfExpandLabel(clientSecret, keyLabel, 16)
	iv := hkdfExpandLabel(clientSecret, ivLabel, 12)
	hp := hkdfExpandLabel(clientSecret, hpKeyLabel, 16)

	wantKey := unhex(t, "1f369613dd76d5467730efcbe3b1a22d")
	wantIV := unhex(t, "fa044b2f42a3fd3b46fb255c")
	wantHP := unhex(t, "9f50449e04a0e810283a1e9933adedd2")

	if !bytes.Equal(key, wantKey) {
		t.Errorf("client initial key = %x, want %x", key, wantKey)
	}
	if !bytes.Equal(iv, wantIV) {
		t.Errorf("client initial iv = %x, want %x", iv, wantIV)
	}
	if !bytes.Equal(hp, wantHP) {
		t.Errorf("client initial hp key = %x, want %x", hp, wantHP)
	}
}

func TestCoderSealOpenRoundTrip(t *testing.T) {
	dcid := unhex(t, "8394c8f03e515708")
	client, server := deriveInitialCoders(dcid)

	aad := []byte("header bytes")
	payload := []byte("hello, quic")
	sealed := client.seal(nil, aad, payload, 2)

	opened, err := server.open(nil, aad, sealed, 2)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !bytes.Equal(opened, payload) {
		t.Fatalf("opened payload = %q, want %q", opened, payload)
	}
}

func TestCoderOpenRejectsTamperedCiphertext(t *testing.T) {
	dcid := unhex(t, "8394c8f03e515708")
	client, server := deriveInitialCoders(dcid)

	aad := []byte("header bytes")
	sealed := client.seal(nil, aad, []byte("hello, quic"), 2)
	sealed[0] ^= 0xff

	if _, err := server.open(nil, aad, sealed, 2); err == nil {
		t.Fatal("open on tampered ciphertext should fail")
	}
}

func TestRetryIntegrityTagRoundTrip(t *testing.T) {
	odcid := unhex(t, "8394c8f03e515708")
	retryHeader := []byte{0xf0, 0, 0, 0, 1, 8, 1, 2, 3, 4, 5, 6, 7, 8}

	tag := computeRetryIntegrityTag(odcid, retryHeader)
	full := append(append([]byte(nil), retryHeader...), tag[:]...)

	if !verifyRetryIntegrity(full, odcid) {
		t.Fatal("freshly computed retry integrity tag failed to verify")
	}

	full[len(full)-1] ^= 1
	if verifyRetryIntegrity(full, odcid) {
		t.Fatal("tampered retry integrity tag should not verify")
	}
}
