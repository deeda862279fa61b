package quic

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
)

func randomBytes(b []byte) error {
	_, err := rand.Read(b)
	return err
}

// cidIssuer hands out server-side connection IDs and their matching
// stateless-reset tokens. The reset token is derived deterministically from
// the CID and a process-lifetime secret (quic-go's approach to stateless
// reset, grounded in SPEC_FULL.md §3 "Stateless reset tokens"), so the
// token for any CID this issuer handed out can be recomputed without a
// token table. The secret is random per process and not persisted, so
// tokens issued before a restart are not reproduced after it.
type cidIssuer struct {
	secret [32]byte
}

func newCIDIssuer() (*cidIssuer, error) {
	iss := &cidIssuer{}
	if err := randomBytes(iss.secret[:]); err != nil {
		return nil, err
	}
	return iss, nil
}

// newCID generates a fresh, randomly chosen connection ID of the
// endpoint's fixed length.
func (iss *cidIssuer) newCID() ([]byte, error) {
	cid := make([]byte, localCIDLength)
	if err := randomBytes(cid); err != nil {
		return nil, err
	}
	return cid, nil
}

// statelessResetToken deterministically derives the 16-byte token RFC9000
// §10.3 associates with cid, via HMAC-SHA256(secret, cid) truncated to 16
// bytes.
func (iss *cidIssuer) statelessResetToken(cid []byte) []byte {
	mac := hmac.New(sha256.New, iss.secret[:])
	mac.Write(cid)
	return mac.Sum(nil)[:16]
}
