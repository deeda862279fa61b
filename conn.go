package quic

import (
	"context"
	"io"
	"net"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jvanbruegge/quic/transport"
)

// Conn is the application-facing handle to one QUIC connection. Handler.Serve
// runs on the connection's loop goroutine; Stream and Close call straight
// into the underlying transport.Conn and do not hand off to that goroutine.
type Conn interface {
	RemoteAddr() net.Addr
	Stream(id uint64) Stream
	Close(errCode uint64, reason string)
}

// Stream is a QUIC stream's byte-oriented interface.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// remoteConn binds a sans-IO transport.Conn to one UDP peer and drives it
// with the goroutine set of SPEC_FULL.md §5: a loop goroutine that owns the
// transport.Conn outright (folding in the handshake driver, which
// transport.Conn already pumps from within Write/Read, and teardown: it
// returns once the conn reports IsClosed), a sender goroutine that owns the
// socket write path, and a timer goroutine.
type remoteConn struct {
	conn *transport.Conn
	addr net.Addr
	scid []byte

	ep      *endpoint
	handler Handler

	recvCh chan []byte
	wake   chan struct{}

	done chan struct{}

	established   bool
	closeReported bool
}

func newRemoteConn(ep *endpoint, c *transport.Conn, addr net.Addr, scid []byte) *remoteConn {
	return &remoteConn{
		conn:    c,
		addr:    addr,
		scid:    append([]byte(nil), scid...),
		ep:      ep,
		handler: ep.handler,
		recvCh:  make(chan []byte, 16),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
}

func (c *remoteConn) RemoteAddr() net.Addr { return c.addr }

// Stream returns the application handle for a stream. transport.Conn
// creates the underlying transport.Stream on this call if it does not
// exist yet.
func (c *remoteConn) Stream(id uint64) Stream {
	st, err := c.conn.Stream(id)
	if err != nil || st == nil {
		return nil
	}
	return st
}

// Close schedules a CONNECTION_CLOSE and lets the draining period run its
// course; the loop goroutine returns, ending the connection's goroutines,
// once the conn reports IsClosed.
func (c *remoteConn) Close(errCode uint64, reason string) {
	c.conn.Close(true, errCode, reason)
	c.signal()
}

// deliver hands an inbound datagram to the connection's loop goroutine. It
// never blocks the caller (the endpoint's receive loop): a full queue drops
// the datagram, matching UDP's unreliable-delivery contract.
func (c *remoteConn) deliver(b []byte) {
	select {
	case c.recvCh <- b:
	default:
		logrus.WithField("cid", c.scid).Debug("quic: dropping datagram, connection queue full")
	}
}

// signal wakes the loop goroutine without delivering a datagram so it
// flushes whatever transport.Conn has queued; Client.Connect and Close use
// it.
func (c *remoteConn) signal() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// run drives the connection until its context is cancelled or the
// connection closes on its own account.
func (c *remoteConn) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	timerReset := make(chan time.Duration, 1)
	timerFire := make(chan struct{}, 1)
	outbound := make(chan []byte, 8)

	g.Go(func() error { return c.runTimer(ctx, timerReset, timerFire) })
	g.Go(func() error { return c.runSender(ctx, outbound) })
	g.Go(func() error { return c.runLoop(ctx, timerReset, timerFire, outbound) })

	err := g.Wait()
	close(c.done)
	return err
}

// runLoop is the sole owner of conn: it is the only goroutine that ever
// calls into transport.Conn, satisfying the "at most one task mutates a
// packet-number space at a time" invariant by construction.
func (c *remoteConn) runLoop(ctx context.Context, timerReset chan<- time.Duration, timerFire <-chan struct{}, outbound chan<- []byte) error {
	defer close(outbound)
	buf := make([]byte, transport.MaxPacketSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case b, ok := <-c.recvCh:
			if !ok {
				return nil
			}
			if _, err := c.conn.Write(b); err != nil {
				logrus.WithError(err).Debug("quic: packet rejected")
			}
			c.flush(buf, outbound)
			c.dispatchEvents()
			c.resetTimer(timerReset)
		case <-c.wake:
			c.flush(buf, outbound)
			c.dispatchEvents()
			c.resetTimer(timerReset)
		case <-timerFire:
			if _, err := c.conn.Write(nil); err != nil {
				logrus.WithError(err).Debug("quic: timeout processing failed")
			}
			c.flush(buf, outbound)
			c.dispatchEvents()
			c.resetTimer(timerReset)
		}
		if c.conn.IsClosed() {
			return nil
		}
	}
}

// flush drains every packet transport.Conn currently has ready to send.
func (c *remoteConn) flush(buf []byte, outbound chan<- []byte) {
	for {
		n, err := c.conn.Read(buf)
		if err != nil {
			logrus.WithError(err).Debug("quic: read for send failed")
			return
		}
		if n == 0 {
			return
		}
		pkt := append([]byte(nil), buf[:n]...)
		select {
		case outbound <- pkt:
		case <-time.After(time.Second):
			logrus.Debug("quic: sender stalled, dropping outgoing packet")
		}
	}
}

func (c *remoteConn) dispatchEvents() {
	events := c.conn.Events(nil)
	wasEstablished := c.established
	if !wasEstablished && c.conn.IsEstablished() {
		c.established = true
		events = append(events, transport.Event{Type: EventConnAccept})
	}
	if c.conn.IsClosed() && !c.closeReported {
		c.closeReported = true
		events = append(events, transport.Event{Type: EventConnClose})
	}
	if len(events) > 0 && c.handler != nil {
		c.handler.Serve(c, events)
	}
}

func (c *remoteConn) resetTimer(timerReset chan<- time.Duration) {
	d := c.conn.Timeout()
	select {
	case timerReset <- d:
	default:
	}
}

// runTimer maintains the single loss-detection/idle timer, reporting a
// firing event to the loop goroutine and waiting for it to recompute the
// next deadline (RFC9002 §6.2, spec.md §5 "Retransmit/Timer").
func (c *remoteConn) runTimer(ctx context.Context, reset <-chan time.Duration, fire chan<- struct{}) error {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()
	armed := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d := <-reset:
			if !timer.Stop() && armed {
				<-timer.C
			}
			if d < 0 {
				armed = false
				continue
			}
			timer.Reset(d)
			armed = true
		case <-timer.C:
			armed = false
			select {
			case fire <- struct{}{}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// runSender owns the one path that writes to the shared UDP socket for
// this peer, so packet writes for one connection never interleave with
// another's mid-datagram.
func (c *remoteConn) runSender(ctx context.Context, outbound <-chan []byte) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case pkt, ok := <-outbound:
			if !ok {
				return nil
			}
			if _, err := c.ep.socket.WriteTo(pkt, c.addr); err != nil {
				logrus.WithError(err).Warn("quic: send failed")
				continue
			}
			c.ep.metrics.packetsSent.Inc()
		}
	}
}
