package quic

import "github.com/jvanbruegge/quic/transport"

// Connection-level events, layered on top of transport.EventType so a
// Handler's switch can match either in the same statement (see
// cmd/quince/client.go).
const (
	// EventConnAccept fires once on the server side (or once the client's
	// handshake completes) when the connection becomes active.
	EventConnAccept transport.EventType = 100 + iota
	// EventConnClose fires once, after the connection has fully drained.
	EventConnClose
)

// Handler reacts to events on a Conn. Serve is always called from the
// connection's own goroutine: implementations must not block for long or
// they will stall that connection's timers.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// HandlerFunc adapts a plain function to a Handler.
type HandlerFunc func(c Conn, events []transport.Event)

func (f HandlerFunc) Serve(c Conn, events []transport.Event) {
	f(c, events)
}
