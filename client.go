package quic

import (
	"io"
	"net"

	"github.com/jvanbruegge/quic/transport"
)

// Client dials outbound QUIC connections over a shared local UDP socket.
type Client struct {
	ep *endpoint
}

// NewClient creates a Client from config; config.TLS should at minimum set
// ServerName (or InsecureSkipVerify for testing).
func NewClient(config *transport.Config) *Client {
	return &Client{ep: newEndpoint(config)}
}

// SetHandler registers the Handler invoked for every connection's events.
func (c *Client) SetHandler(h Handler) {
	c.ep.handler = h
}

// SetLogger turns on qlog-style wire tracing for every connection at or
// above level, writing to w.
func (c *Client) SetLogger(level int, w io.Writer) {
	c.ep.log.setOutput(logLevel(level), w)
}

// ListenAndServe binds the client's local UDP socket. addr may be
// "0.0.0.0:0" to let the OS pick an ephemeral port.
func (c *Client) ListenAndServe(addr string) error {
	return c.ep.listen(addr)
}

// Connect dials a new connection to addr, returning once the Initial
// packet has been queued for send; use the Handler's EventConnAccept to
// learn when the handshake completes.
func (c *Client) Connect(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	scid := make([]byte, localCIDLength)
	if err := randomBytes(scid); err != nil {
		return err
	}
	tconn, err := transport.Connect(scid, c.ep.config)
	if err != nil {
		return err
	}
	rc := newRemoteConn(c.ep, tconn, raddr, scid)
	c.ep.log.attachLogger(rc)
	c.ep.startConn(rc)
	rc.signal() // flush the client's Initial packet
	return nil
}

// Close shuts down the client's socket and every connection on it.
func (c *Client) Close() error {
	return c.ep.close()
}
