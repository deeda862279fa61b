package quic

import (
	"crypto/cipher"
	"encoding/binary"
	"errors"
	"net"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

var errInvalidToken = errors.New("quic: invalid address-validation token")

// tokenPurpose distinguishes a Retry token from a NEW_TOKEN token inside
// the sealed payload, SPEC_FULL.md §3 "Address-validation token".
type tokenPurpose byte

const (
	tokenPurposeRetry tokenPurpose = iota
	tokenPurposeNewToken
)

// retryTokenValidity bounds how long a server accepts its own Retry token
// back from a client before treating it as stale (RFC9000 §8.1.2 leaves the
// exact bound to implementations).
const retryTokenValidity = 10 * time.Second

// newTokenValidity is the longer window given to NEW_TOKEN tokens, meant to
// be redeemed on a later connection rather than immediately.
const newTokenValidity = 7 * 24 * time.Hour

// tokenManager seals and opens address-validation tokens carried in Retry
// and NEW_TOKEN frames: an AEAD-sealed (purpose, peer IP, original DCID,
// Retry source CID, issue time) struct, keyed by a secret rotated once per process lifetime. Grounded in
// quic-go's token package shape (SPEC_FULL.md §3).
type tokenManager struct {
	aead cipher.AEAD
}

func newTokenManager() (*tokenManager, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if err := randomBytes(key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &tokenManager{aead: aead}, nil
}

// seal encodes (purpose, peer IP, odcid, retrySCID, issue time) and
// AEAD-protects it. odcid and retrySCID are only meaningful for
// tokenPurposeRetry: odcid is the original connection ID the server must
// recall once the client's retried Initial arrives, and retrySCID is the
// connection ID the Retry packet itself carried as its source CID, which
// RFC9000 §7.3 requires the server echo back as retry_source_connection_id
// on the connection that follows. Callers pass nil for both when sealing a
// tokenPurposeNewToken token.
func (tm *tokenManager) seal(purpose tokenPurpose, addr net.Addr, odcid, retrySCID []byte) ([]byte, error) {
	ip := addrIP(addr)
	plain := make([]byte, 0, 1+1+len(ip)+1+len(odcid)+1+len(retrySCID)+8)
	plain = append(plain, byte(purpose))
	plain = append(plain, byte(len(ip)))
	plain = append(plain, ip...)
	plain = append(plain, byte(len(odcid)))
	plain = append(plain, odcid...)
	plain = append(plain, byte(len(retrySCID)))
	plain = append(plain, retrySCID...)
	var tbuf [8]byte
	binary.BigEndian.PutUint64(tbuf[:], uint64(time.Now().Unix()))
	plain = append(plain, tbuf[:]...)

	nonce := make([]byte, tm.aead.NonceSize())
	if err := randomBytes(nonce); err != nil {
		return nil, err
	}
	return tm.aead.Seal(nonce, nonce, plain, nil), nil
}

// open validates token was issued to addr and has not expired for its
// purpose, returning the purpose and (for a Retry token) the original
// connection ID and Retry-packet source CID the server embedded when it
// sent the Retry.
func (tm *tokenManager) open(token []byte, addr net.Addr) (purpose tokenPurpose, odcid, retrySCID []byte, err error) {
	if len(token) < tm.aead.NonceSize() {
		return 0, nil, nil, errInvalidToken
	}
	nonce := token[:tm.aead.NonceSize()]
	ciphertext := token[tm.aead.NonceSize():]
	plain, err := tm.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return 0, nil, nil, errInvalidToken
	}
	off := 0
	if len(plain) < off+1 {
		return 0, nil, nil, errInvalidToken
	}
	purpose = tokenPurpose(plain[off])
	off++
	if len(plain) < off+1 {
		return 0, nil, nil, errInvalidToken
	}
	ipLen := int(plain[off])
	off++
	if len(plain) < off+ipLen+1 {
		return 0, nil, nil, errInvalidToken
	}
	ip := plain[off : off+ipLen]
	off += ipLen
	odcidLen := int(plain[off])
	off++
	if len(plain) < off+odcidLen+1 {
		return 0, nil, nil, errInvalidToken
	}
	odcid = plain[off : off+odcidLen]
	off += odcidLen
	scidLen := int(plain[off])
	off++
	if len(plain) < off+scidLen+8 {
		return 0, nil, nil, errInvalidToken
	}
	retrySCID = plain[off : off+scidLen]
	off += scidLen
	issued := time.Unix(int64(binary.BigEndian.Uint64(plain[off:off+8])), 0)
	if !addrIPEqual(addr, ip) {
		return 0, nil, nil, errInvalidToken
	}
	validity := retryTokenValidity
	if purpose == tokenPurposeNewToken {
		validity = newTokenValidity
	}
	if time.Since(issued) > validity {
		return 0, nil, nil, errInvalidToken
	}
	return purpose, odcid, retrySCID, nil
}

func addrIP(addr net.Addr) net.IP {
	if u, ok := addr.(*net.UDPAddr); ok {
		return u.IP
	}
	return nil
}

func addrIPEqual(addr net.Addr, ip []byte) bool {
	return addrIP(addr).Equal(net.IP(ip))
}
