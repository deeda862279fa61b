package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/tls"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// initialSalt is the salt used to derive initial secrets from a client's
// chosen destination connection ID, RFC9001 §5.2.
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
	0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
	0xcc, 0xbb, 0x7f, 0x0a,
}

// retry integrity key/nonce, RFC9001 §5.8, pinned to the version this
// endpoint negotiates (see SPEC_FULL.md §9 Open Questions resolution).
var (
	retryIntegrityKey = []byte{
		0xcc, 0xce, 0x18, 0x7e, 0xd0, 0x9a, 0x09, 0xd0,
		0x57, 0x28, 0x15, 0x5a, 0x6c, 0xb9, 0x6b, 0xe1,
	}
	retryIntegrityNonce = []byte{
		0xe5, 0x49, 0x30, 0xf9, 0x7f, 0x21, 0x36, 0xf0,
		0x53, 0x0a, 0x8c, 0x1c,
	}
)

const retryIntegrityTagLen = 16

const (
	hpKeyLabel    = "quic hp"
	keyLabel      = "quic key"
	ivLabel       = "quic iv"
	keyUpdateLabel = "quic ku"

	clientInitialLabel = "client in"
	serverInitialLabel = "server in"
)

// hkdfExpandLabel implements HKDF-Expand-Label from RFC8446 §7.1, used by
// RFC9001 for all QUIC-specific key derivation.
func hkdfExpandLabel(secret []byte, label string, length int) []byte {
	fullLabel := "tls13 " + label
	info := make([]byte, 0, 2+1+len(fullLabel)+1)
	info = append(info, byte(length>>8), byte(length))
	info = append(info, byte(len(fullLabel)))
	info = append(info, fullLabel...)
	info = append(info, 0) // empty Context
	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, secret, info)
	if _, err := readFull(r, out); err != nil {
		panic("quic: hkdf expand failed: " + err.Error())
	}
	return out
}

func readFull(r interface{ Read([]byte) (int, error) }, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			break
		}
	}
	return n, nil
}

// headerProtector computes the 5-byte header-protection mask from a sample
// of protected payload, RFC9001 §5.4.
type headerProtector interface {
	mask(sample []byte) [5]byte
}

type aesHeaderProtector struct {
	block cipher.Block
}

func newAESHeaderProtector(key []byte) headerProtector {
	block, err := aes.NewCipher(key)
	if err != nil {
		panic(err)
	}
	return &aesHeaderProtector{block: block}
}

func (p *aesHeaderProtector) mask(sample []byte) [5]byte {
	var out [5]byte
	var enc [16]byte
	p.block.Encrypt(enc[:], sample)
	copy(out[:], enc[:5])
	return out
}

type chachaHeaderProtector struct {
	key []byte
}

func newChaChaHeaderProtector(key []byte) headerProtector {
	return &chachaHeaderProtector{key: key}
}

func (p *chachaHeaderProtector) mask(sample []byte) [5]byte {
	// sample = counter (4 bytes LE) || nonce (12 bytes), per RFC9001 §5.4.4.
	counter := uint32(sample[0]) | uint32(sample[1])<<8 | uint32(sample[2])<<16 | uint32(sample[3])<<24
	nonce := sample[4:16]
	c, err := chacha20.NewUnauthenticatedCipher(p.key, nonce)
	if err != nil {
		panic(err)
	}
	c.SetCounter(counter)
	var out [5]byte
	var zero [5]byte
	c.XORKeyStream(out[:], zero[:])
	return out
}

// coder bundles the four function-pointer-like operations (seal, open,
// protect, unprotect) that a single encryption level needs, populated at
// key install (SPEC_FULL.md §9 "Coder polymorphism").
type coder struct {
	aead    cipher.AEAD
	iv      []byte
	hp      headerProtector
	pktSent uint64 // count of packets sealed, for AEAD confidentiality-limit bookkeeping

	// suite and secret are retained (rather than discarded once key/iv/hp
	// are derived) so this coder's 1-RTT traffic secret can be advanced to
	// the next key-update generation, RFC9001 §6.1. Unused by the
	// Initial/Handshake coders, which never rotate.
	suite  uint16
	secret []byte
}

func newCoder(suite uint16, secret []byte) *coder {
	var keyLen int
	switch suite {
	case tls.TLS_CHACHA20_POLY1305_SHA256:
		keyLen = chacha20poly1305.KeySize
	default:
		keyLen = 16 // AES-128-GCM
	}
	key := hkdfExpandLabel(secret, keyLabel, keyLen)
	iv := hkdfExpandLabel(secret, ivLabel, 12)
	hpKey := hkdfExpandLabel(secret, hpKeyLabel, keyLen)

	var aead cipher.AEAD
	var hp headerProtector
	switch suite {
	case tls.TLS_CHACHA20_POLY1305_SHA256:
		a, err := chacha20poly1305.New(key)
		if err != nil {
			panic(err)
		}
		aead = a
		hp = newChaChaHeaderProtector(hpKey)
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			panic(err)
		}
		a, err := cipher.NewGCM(block)
		if err != nil {
			panic(err)
		}
		aead = a
		hp = newAESHeaderProtector(hpKey)
	}
	return &coder{aead: aead, iv: iv, hp: hp, suite: suite, secret: secret}
}

// next derives the coder for the following key-update generation by
// applying the "quic ku" label to this coder's own secret (RFC9001 §6.1).
// Header-protection keys are never updated; only the packet-protection
// secret advances.
func (c *coder) next() *coder {
	n := newCoder(c.suite, hkdfExpandLabel(c.secret, keyUpdateLabel, len(c.secret)))
	n.hp = c.hp
	return n
}

func (c *coder) nonce(pn uint64) []byte {
	nonce := make([]byte, len(c.iv))
	copy(nonce, c.iv)
	for i := 0; i < 8; i++ {
		nonce[len(nonce)-1-i] ^= byte(pn >> (8 * i))
	}
	return nonce
}

// seal encrypts payload in place (appending the AEAD tag) using aad as the
// unprotected header bytes, and returns the sealed slice.
func (c *coder) seal(dst, aad, payload []byte, pn uint64) []byte {
	out := c.aead.Seal(dst[:0], c.nonce(pn), payload, aad)
	c.pktSent++
	return out
}

func (c *coder) open(dst, aad, ciphertext []byte, pn uint64) ([]byte, error) {
	out, err := c.aead.Open(dst[:0], c.nonce(pn), ciphertext, aad)
	if err != nil {
		return nil, newError(InternalError, "aead open failed")
	}
	return out, nil
}

// initialSecrets derives the client and server Initial traffic secrets from
// the client-chosen destination connection ID, RFC9001 §5.2.
func initialSecrets(dcid []byte) (clientSecret, serverSecret []byte) {
	initial := hkdf.Extract(sha256.New, dcid, initialSalt)
	clientSecret = hkdfExpandLabel(initial, clientInitialLabel, sha256.Size)
	serverSecret = hkdfExpandLabel(initial, serverInitialLabel, sha256.Size)
	return
}

// deriveInitialCoders builds the (client, server) coders for the Initial
// encryption level. Initial packets always use AES-128-GCM regardless of
// the cipher suite eventually negotiated for the rest of the handshake.
func deriveInitialCoders(dcid []byte) (client, server *coder) {
	clientSecret, serverSecret := initialSecrets(dcid)
	client = newCoder(tls.TLS_AES_128_GCM_SHA256, clientSecret)
	server = newCoder(tls.TLS_AES_128_GCM_SHA256, serverSecret)
	return
}

// computeRetryIntegrityTag computes the 16-byte integrity tag for a Retry
// packet, RFC9001 §5.8. pseudo is the Retry pseudo-packet: the original
// DCID length-prefixed, followed by the entire Retry packet header+payload
// (without the tag).
func computeRetryIntegrityTag(odcid, retryPacket []byte) [retryIntegrityTagLen]byte {
	block, err := aes.NewCipher(retryIntegrityKey)
	if err != nil {
		panic(err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	pseudo := make([]byte, 0, 1+len(odcid)+len(retryPacket))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, retryPacket...)
	var tag [retryIntegrityTagLen]byte
	sealed := aead.Seal(nil, retryIntegrityNonce, nil, pseudo)
	copy(tag[:], sealed)
	return tag
}

func verifyRetryIntegrity(retryPacketWithTag, odcid []byte) bool {
	if len(retryPacketWithTag) < retryIntegrityTagLen {
		return false
	}
	body := retryPacketWithTag[:len(retryPacketWithTag)-retryIntegrityTagLen]
	want := computeRetryIntegrityTag(odcid, body)
	got := retryPacketWithTag[len(retryPacketWithTag)-retryIntegrityTagLen:]
	var diff byte
	for i := range want {
		diff |= want[i] ^ got[i]
	}
	return diff == 0
}
