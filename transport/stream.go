package transport

import "fmt"

// Stream identifier bits, RFC9000 §2.1.
const (
	streamInitiatorServer = 0x1
	streamTypeUni         = 0x2
)

func isStreamLocal(id uint64, isClient bool) bool {
	initiatedByClient := id&streamInitiatorServer == 0
	return initiatedByClient == isClient
}

func isStreamBidi(id uint64) bool {
	return id&streamTypeUni == 0
}

// Stream is one QUIC stream's send and receive state.
type Stream struct {
	id   uint64
	bidi bool
	local bool

	send sendBuffer
	recv recvBuffer
	flow flowControl

	// connFlow lets pushRecv credit the connection-level receive window in
	// the same call that credits the stream-level one.
	connFlow *flowControl

	updateMaxData bool // a MAX_STREAM_DATA needs to be (re)sent
	closed        bool // Write side locally closed (fin pushed)
}

func newStream(id uint64, local, bidi bool) *Stream {
	s := &Stream{id: id, local: local, bidi: bidi}
	s.send.init()
	s.recv.init()
	return s
}

// Write queues data for sending on the stream.
func (s *Stream) Write(p []byte) (int, error) {
	if s.closed {
		return 0, newError(StreamStateError, "stream closed for writing")
	}
	if err := s.send.push(p, s.send.base+uint64(len(s.send.buf)), false); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close marks the send side as finished; a STREAM frame with FIN will be
// emitted for the final offset.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.send.push(nil, s.send.base+uint64(len(s.send.buf)), true)
}

// Read drains reassembled bytes in offset order.
func (s *Stream) Read(p []byte) (int, error) {
	return s.recv.read(p)
}

func (s *Stream) pushRecv(data []byte, offset uint64, fin bool) error {
	n, err := s.recv.write(data, offset, fin)
	if err != nil {
		return err
	}
	s.flow.addRecv(n)
	if s.connFlow != nil {
		s.connFlow.addRecv(n)
	}
	if s.flow.shouldUpdateMaxRecv() {
		s.updateMaxData = true
	}
	return nil
}

func (s *Stream) popSend(max int) (data []byte, offset uint64, fin bool) {
	return s.send.popSend(max)
}

func (s *Stream) ackMaxData() {
	s.updateMaxData = false
	s.flow.commitMaxRecv()
}

// hasFlushable reports whether the stream has anything left to send:
// fresh bytes, a pending resend, or an unsent FIN.
func (s *Stream) hasFlushable() bool {
	if !s.send.resend.empty() {
		return true
	}
	avail := s.send.base + uint64(len(s.send.buf)) - s.send.sentTo
	if avail > 0 {
		return true
	}
	return s.send.finalSizeSet && s.send.sentTo < s.send.finalSize
}

func (s *Stream) String() string {
	return fmt.Sprintf("stream(id=%d recv_offset=%d send_sent=%d)", s.id, s.recv.readOffset, s.send.sentTo)
}

// streamMap owns every stream opened on a connection and enforces the
// bidi/uni stream-count limits (RFC9000 §4.6).
type streamMap struct {
	streams map[uint64]*Stream

	localNextBidi, localNextUni   uint64
	peerMaxStreamsBidi, peerMaxStreamsUni uint64
	localMaxStreamsBidi, localMaxStreamsUni uint64
}

func (m *streamMap) init(maxBidi, maxUni uint64) {
	m.streams = make(map[uint64]*Stream)
	m.localMaxStreamsBidi = maxBidi
	m.localMaxStreamsUni = maxUni
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	if !m.withinLimit(id, local, bidi) {
		return nil, newError(StreamLimitError, "stream limit exceeded")
	}
	st := newStream(id, local, bidi)
	m.streams[id] = st
	return st, nil
}

func (m *streamMap) withinLimit(id uint64, local, bidi bool) bool {
	n := streamIndex(id)
	if local {
		if bidi {
			return n < m.peerMaxStreamsBidi
		}
		return n < m.peerMaxStreamsUni
	}
	if bidi {
		return n < m.localMaxStreamsBidi
	}
	return n < m.localMaxStreamsUni
}

// streamIndex returns the stream's position within its (initiator, type)
// class, i.e. id/4.
func streamIndex(id uint64) uint64 {
	return id / 4
}

func (m *streamMap) setPeerMaxStreamsBidi(v uint64) {
	if v > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = v
	}
}

func (m *streamMap) setPeerMaxStreamsUni(v uint64) {
	if v > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = v
	}
}

func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if st.hasFlushable() || st.updateMaxData {
			return true
		}
	}
	return false
}
