package quic

import (
	"context"
	"io"
	"net"

	"github.com/sirupsen/logrus"

	"github.com/jvanbruegge/quic/transport"
)

// Server accepts inbound QUIC connections on a shared local UDP socket.
type Server struct {
	ep  *endpoint
	cid *cidIssuer
	tok *tokenManager

	// RequireRetry, when set, makes the server validate every new client's
	// address with a Retry round-trip (RFC9000 §8.1.2) before committing any
	// connection state for it. Off by default: spec.md frames Retry as a
	// defense a deployment opts into under load, not a mandatory step.
	RequireRetry bool
}

// NewServer creates a Server from config; config.TLS must carry a server
// certificate (or GetCertificate callback).
func NewServer(config *transport.Config) *Server {
	iss, err := newCIDIssuer()
	if err != nil {
		// Only fails if the system CSPRNG is broken, which nothing here
		// could recover from either.
		panic(err)
	}
	tok, err := newTokenManager()
	if err != nil {
		panic(err)
	}
	s := &Server{ep: newEndpoint(config), cid: iss, tok: tok}
	s.ep.onNewConn = s.accept
	return s
}

// SetHandler registers the Handler invoked for every connection's events.
func (s *Server) SetHandler(h Handler) {
	s.ep.handler = h
}

// SetLogger turns on qlog-style wire tracing for every connection at or
// above level, writing to w.
func (s *Server) SetLogger(level int, w io.Writer) {
	s.ep.log.setOutput(logLevel(level), w)
}

// ListenAndServe binds addr and starts accepting connections.
func (s *Server) ListenAndServe(addr string) error {
	return s.ep.listen(addr)
}

// Close shuts down the server's socket and every connection on it.
func (s *Server) Close() error {
	return s.ep.close()
}

// accept handles a datagram from an address with no known connection: any
// long-header Initial packet is treated as a new connection attempt. When
// RequireRetry is set, the first Initial without a valid token is answered
// with a Retry datagram and no connection state is created; the client's
// second Initial (carrying the token) is what actually starts the
// handshake.
func (s *Server) accept(ctx context.Context, pkt []byte, addr net.Addr, clientDCID []byte) {
	if len(pkt) < 1 || pkt[0]&0x80 == 0 {
		logrus.Debug("quic: dropping short-header packet for unknown connection")
		return
	}
	_, scid, token, ok := transport.ParseInitialToken(pkt)
	if !ok {
		logrus.Debug("quic: dropping malformed long-header packet")
		return
	}

	// odcid is left nil for the ordinary (no Retry) path: transport.Conn
	// picks it up from the Initial packet's own header once delivered below,
	// which is the same value clientDCID already holds. Passing it here
	// would also make transport.Accept believe a Retry took place and start
	// advertising a retry_source_connection_id no Retry ever produced.
	var odcid, localSCID []byte
	if s.RequireRetry {
		if len(token) == 0 {
			s.sendRetry(addr, clientDCID, scid)
			return
		}
		purpose, tokenODCID, tokenSCID, err := s.tok.open(token, addr)
		if err != nil || purpose != tokenPurposeRetry {
			logrus.Debug("quic: rejecting initial with invalid retry token")
			s.sendRetry(addr, clientDCID, scid)
			return
		}
		// The connection's SCID must match the Retry packet's SCID: that is
		// the value the client (and this token) already call retrySCID, and
		// it is what will be echoed back as retry_source_connection_id.
		odcid, localSCID = tokenODCID, tokenSCID
	}

	if localSCID == nil {
		var err error
		localSCID, err = s.cid.newCID()
		if err != nil {
			logrus.WithError(err).Warn("quic: failed to issue connection id")
			return
		}
	}
	config := *s.ep.config
	config.Params.StatelessResetToken = s.cid.statelessResetToken(localSCID)
	tconn, err := transport.Accept(localSCID, odcid, &config)
	if err != nil {
		logrus.WithError(err).Debug("quic: rejecting connection attempt")
		return
	}
	rc := newRemoteConn(s.ep, tconn, addr, localSCID)
	s.ep.log.attachLogger(rc)
	s.ep.metrics.connsAccepted.Inc()
	s.ep.startConn(rc)
	rc.deliver(pkt)
}

// sendRetry answers a client's address-unvalidated Initial with a Retry
// packet carrying a freshly issued connection ID and a token sealing the
// client's original destination CID, so it can be recovered once the
// client's retried Initial arrives (RFC9000 §17.2.5).
func (s *Server) sendRetry(addr net.Addr, clientDCID, clientSCID []byte) {
	retrySCID, err := s.cid.newCID()
	if err != nil {
		logrus.WithError(err).Warn("quic: failed to issue retry connection id")
		return
	}
	token, err := s.tok.seal(tokenPurposeRetry, addr, clientDCID, retrySCID)
	if err != nil {
		logrus.WithError(err).Warn("quic: failed to seal retry token")
		return
	}
	pkt := transport.BuildRetry(s.ep.config.Version, clientSCID, retrySCID, clientDCID, token)
	if _, err := s.ep.socket.WriteTo(pkt, addr); err != nil {
		logrus.WithError(err).Warn("quic: failed to send retry")
		return
	}
	s.ep.metrics.packetsSent.Inc()
}
