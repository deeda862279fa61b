package quic

import (
	"context"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jvanbruegge/quic/transport"
)

// endpoint is the shared socket-owning base of Client and Server: it reads
// datagrams off one net.PacketConn and demultiplexes them to the
// remoteConn they belong to by destination connection ID.
type endpoint struct {
	config  *transport.Config
	handler Handler
	log     *logger
	metrics *connMetrics

	socket net.PacketConn

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group

	// onNewConn accepts a datagram whose destination CID is unknown to
	// this endpoint; Server sets it to run the Initial/Retry handshake
	// start, Client leaves it nil so stray datagrams are dropped.
	onNewConn func(ctx context.Context, pkt []byte, addr net.Addr, dcid []byte)

	mu    sync.Mutex
	conns map[string]*remoteConn // keyed by raw source connection ID bytes
}

func newEndpoint(config *transport.Config) *endpoint {
	if config == nil {
		config = transport.NewConfig(nil)
	}
	return &endpoint{
		config:  config,
		log:     newLogger(),
		metrics: newMetrics(),
		conns:   make(map[string]*remoteConn),
	}
}

func (e *endpoint) listen(addr string) error {
	socket, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	e.socket = socket
	e.ctx, e.cancel = context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(e.ctx)
	e.group = g
	g.Go(func() error { return e.recvLoop(ctx) })
	return nil
}

// recvLoop is the endpoint's single reader of the shared socket: it can
// only ever belong to one goroutine, so connection IDs are assigned
// without a race against any other reader.
func (e *endpoint) recvLoop(ctx context.Context) error {
	buf := make([]byte, transport.MaxPacketSize)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		n, addr, err := e.socket.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logrus.WithError(err).Warn("quic: socket read failed")
			continue
		}
		e.metrics.packetsReceived.Inc()
		pkt := append([]byte(nil), buf[:n]...)
		e.dispatch(ctx, pkt, addr)
	}
}

// dispatch routes a datagram to its connection, creating one for the
// server side on a fresh Initial packet. Overridden behavior for accepting
// new connections lives in server.go; here we only handle the common path
// of an already-known connection ID.
func (e *endpoint) dispatch(ctx context.Context, pkt []byte, addr net.Addr) {
	dcid, ok := peekDCID(pkt)
	if !ok {
		logrus.Debug("quic: dropping malformed datagram")
		return
	}
	e.mu.Lock()
	c := e.conns[string(dcid)]
	e.mu.Unlock()
	if c != nil {
		c.deliver(pkt)
		return
	}
	if e.onNewConn != nil {
		e.onNewConn(ctx, pkt, addr, dcid)
	}
}

func (e *endpoint) addConn(c *remoteConn) {
	e.mu.Lock()
	e.conns[string(c.scid)] = c
	e.mu.Unlock()
	e.metrics.activeConns.Inc(1)
}

func (e *endpoint) removeConn(c *remoteConn) {
	e.mu.Lock()
	delete(e.conns, string(c.scid))
	e.mu.Unlock()
	e.metrics.activeConns.Dec(1)
	e.metrics.connsClosed.Inc()
}

func (e *endpoint) startConn(c *remoteConn) {
	e.addConn(c)
	e.group.Go(func() error {
		defer e.removeConn(c)
		return c.run(e.ctx)
	})
}

func (e *endpoint) close() error {
	if e.cancel != nil {
		e.cancel()
	}
	var err error
	if e.socket != nil {
		err = e.socket.Close()
	}
	if e.group != nil {
		_ = e.group.Wait()
	}
	return err
}

// localCIDLength is the fixed length of every connection ID this endpoint
// issues. RFC9000 §5.1 lets each endpoint pick any length up to
// transport.MaxCIDLength; fixing one length lets short-header packets
// (which do not carry a DCID length on the wire, RFC9000 §17.3) be
// demultiplexed without first decrypting them.
const localCIDLength = 8

// peekDCID extracts the destination connection ID from a datagram's first
// packet without fully parsing it, enough to demultiplex by connection.
func peekDCID(b []byte) ([]byte, bool) {
	if len(b) < 1 {
		return nil, false
	}
	if b[0]&0x80 != 0 {
		// Long header: version(4) dcil(1) dcid(dcil)...
		if len(b) < 6 {
			return nil, false
		}
		dcil := int(b[5])
		if len(b) < 6+dcil {
			return nil, false
		}
		return b[6 : 6+dcil], true
	}
	// Short header: dcid length is not on the wire, so this endpoint's
	// fixed CID length convention is used instead.
	if len(b) < 1+localCIDLength {
		return nil, false
	}
	return b[1 : 1+localCIDLength], true
}
