package transport

import (
	"context"
	"crypto/tls"
	"errors"
)

// levelFromSpace/spaceFromLevel map between our three packet-number spaces
// and crypto/tls's QUIC encryption levels. This endpoint does not offer a
// separate 0-RTT packet-number space (0-RTT packets share the Application
// space, RFC9000 §12.3), so QUICEncryptionLevelEarly has no corresponding
// packetSpace; doHandshake ignores 0-RTT secrets and does not install them.
func levelFromSpace(space packetSpace) tls.QUICEncryptionLevel {
	switch space {
	case packetSpaceInitial:
		return tls.QUICEncryptionLevelInitial
	case packetSpaceHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func spaceFromLevel(level tls.QUICEncryptionLevel) (packetSpace, bool) {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return packetSpaceInitial, true
	case tls.QUICEncryptionLevelHandshake:
		return packetSpaceHandshake, true
	case tls.QUICEncryptionLevelApplication:
		return packetSpaceApplication, true
	default:
		return 0, false
	}
}

// tlsHandshake is the handshake driver of spec.md §4.3: a cooperative task
// (driven by repeated doHandshake calls rather than its own goroutine, see
// SPEC_FULL.md §5) that owns crypto/tls's native QUIC state machine and
// feeds CRYPTO frames in and out of the connection's per-level crypto
// streams.
type tlsHandshake struct {
	conn      *Conn
	tlsConfig *tls.Config
	quic      *tls.QUICConn
	started   bool
	complete  bool

	peerParamsBytes []byte
	peerParams      *Parameters
	alert           *uint8
}

func (h *tlsHandshake) init(conn *Conn, tlsConfig *tls.Config) {
	h.conn = conn
	if tlsConfig != nil {
		tlsConfig = tlsConfig.Clone()
	} else {
		tlsConfig = &tls.Config{}
	}
	tlsConfig.MinVersion = tls.VersionTLS13
	h.tlsConfig = tlsConfig
}

// reset discards handshake progress, used after a Retry or Version
// Negotiation restarts the Initial packet number space.
func (h *tlsHandshake) reset() {
	h.quic = nil
	h.started = false
	h.complete = false
}

// setTransportParams (re)builds the QUIC/TLS state machine with the given
// local parameters. Must be called before the first doHandshake.
func (h *tlsHandshake) setTransportParams(p *Parameters) {
	qc := &tls.QUICConfig{TLSConfig: h.tlsConfig}
	if h.conn.isClient {
		h.quic = tls.QUICClient(qc)
	} else {
		h.quic = tls.QUICServer(qc)
	}
	h.quic.SetTransportParameters(p.Marshal(h.conn.isClient))
}

// writeSpace returns the earliest packet-number space that still has
// outgoing CRYPTO data queued, for probe packets sent before the handshake
// completes (spec.md §4.6 PTO).
func (h *tlsHandshake) writeSpace() packetSpace {
	for space := packetSpaceInitial; space < packetSpaceApplication; space++ {
		cs := &h.conn.packetNumberSpaces[space].cryptoStream
		if cs.hasFlushable() {
			return space
		}
	}
	return packetSpaceApplication
}

func (h *tlsHandshake) HandshakeComplete() bool {
	return h.complete
}

func (h *tlsHandshake) peerTransportParams() *Parameters {
	return h.peerParams
}

// doHandshake feeds any newly-reassembled CRYPTO bytes into the TLS state
// machine and drains its resulting events: new keys get installed via the
// connection's crypto context, outgoing CRYPTO bytes get queued on the
// matching level's crypto stream, and the peer's transport parameters get
// decoded once seen.
func (h *tlsHandshake) doHandshake() error {
	if h.quic == nil {
		return newError(InternalError, "handshake: transport parameters not set")
	}
	if !h.started {
		if err := h.quic.Start(context.Background()); err != nil {
			return translateTLSError(err)
		}
		h.started = true
	}
	for space := packetSpaceInitial; space <= packetSpaceApplication; space++ {
		cs := &h.conn.packetNumberSpaces[space].cryptoStream
		buf := make([]byte, 4096)
		for {
			n, err := cs.recv.read(buf)
			if err != nil || n == 0 {
				break
			}
			if err := h.quic.HandleData(levelFromSpace(space), buf[:n]); err != nil {
				return translateTLSError(err)
			}
		}
	}
	for {
		ev := h.quic.NextEvent()
		switch ev.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			space, ok := spaceFromLevel(ev.Level)
			if ok {
				h.conn.installReadSecret(space, ev.Suite, ev.Data)
			}
		case tls.QUICSetWriteSecret:
			space, ok := spaceFromLevel(ev.Level)
			if ok {
				h.conn.installWriteSecret(space, ev.Suite, ev.Data)
			}
		case tls.QUICWriteData:
			space, ok := spaceFromLevel(ev.Level)
			if !ok {
				continue
			}
			cs := &h.conn.packetNumberSpaces[space].cryptoStream
			if err := cs.send.push(ev.Data, cs.send.base+uint64(len(cs.send.buf)), false); err != nil {
				return err
			}
		case tls.QUICTransportParameters:
			h.peerParamsBytes = append([]byte(nil), ev.Data...)
			p := &Parameters{}
			if err := p.Unmarshal(ev.Data); err != nil {
				return err
			}
			h.peerParams = p
		case tls.QUICHandshakeDone:
			h.complete = true
		}
	}
}

func translateTLSError(err error) error {
	var alertErr tls.AlertError
	if errors.As(err, &alertErr) {
		return newError(cryptoError(uint8(alertErr)), err.Error())
	}
	return newError(cryptoErrorStart, err.Error())
}

// cryptoStream is the per-level CRYPTO data channel feeding the handshake
// driver: the same reassembly model as a regular Stream, but unbounded by
// flow control (spec.md §3 "Crypto Stream").
type cryptoStream struct {
	send sendBuffer
	recv recvBuffer
}

func (c *cryptoStream) init() {
	c.send.init()
	c.recv.init()
}

func (c *cryptoStream) hasFlushable() bool {
	if !c.send.resend.empty() {
		return true
	}
	return c.send.base+uint64(len(c.send.buf)) > c.send.sentTo
}

func (c *cryptoStream) pushRecv(data []byte, offset uint64, fin bool) error {
	_, err := c.recv.write(data, offset, fin)
	return err
}

func (c *cryptoStream) popSend(max int) ([]byte, uint64, bool) {
	return c.send.popSend(max)
}
