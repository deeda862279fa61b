package transport

import "fmt"

// Frame type codes, RFC9000 §19.
const (
	frameTypePadding             = 0x00
	frameTypePing                = 0x01
	frameTypeAck                 = 0x02
	frameTypeAckECN              = 0x03
	frameTypeResetStream         = 0x04
	frameTypeStopSending         = 0x05
	frameTypeCrypto              = 0x06
	frameTypeNewToken            = 0x07
	frameTypeStream              = 0x08
	frameTypeStreamEnd           = 0x0f
	frameTypeMaxData             = 0x10
	frameTypeMaxStreamData       = 0x11
	frameTypeMaxStreamsBidi      = 0x12
	frameTypeMaxStreamsUni       = 0x13
	frameTypeDataBlocked         = 0x14
	frameTypeStreamDataBlocked   = 0x15
	frameTypeStreamsBlockedBidi  = 0x16
	frameTypeStreamsBlockedUni   = 0x17
	frameTypeNewConnectionID     = 0x18
	frameTypeRetireConnectionID  = 0x19
	frameTypePathChallenge       = 0x1a
	frameTypePathResponse        = 0x1b
	frameTypeConnectionClose     = 0x1c
	frameTypeApplicationClose    = 0x1d
	frameTypeHandshakeDone       = 0x1e
)

// isFrameAckEliciting reports whether a frame of type typ requires the
// receiver to send an acknowledgement, RFC9000 §13.2.
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypeAck, frameTypeAckECN, frameTypePadding, frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

// isFrameRetransmittable reports whether a lost packet carrying this frame
// must have the frame re-queued for retransmission, RFC9000 §13.3. ACKs and
// close frames are never retransmitted verbatim.
func isFrameRetransmittable(f frame) bool {
	switch f.(type) {
	case *ackFrame, *connectionCloseFrame, *paddingFrame, *pathResponseFrame:
		return false
	default:
		return true
	}
}

// frame is a closed tagged union over every QUIC frame type (SPEC_FULL.md
// §9 "Dynamic dispatch over variants"): callers type-switch on the
// concrete type rather than relying on inheritance.
type frame interface {
	encode(b []byte) (int, error)
	decode(b []byte) (int, error)
	encodedLen() int
	fmt.Stringer
}

func encodeFrames(b []byte, frames []frame) (int, error) {
	n := 0
	for _, f := range frames {
		m, err := f.encode(b[n:])
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}

// --- PADDING ---

type paddingFrame struct {
	length int
}

func newPaddingFrame(n int) *paddingFrame { return &paddingFrame{length: n} }

func (f *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < f.length {
		return 0, errShortBuffer
	}
	for i := 0; i < f.length; i++ {
		b[i] = frameTypePadding
	}
	return f.length, nil
}

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	f.length = n
	if n == 0 {
		return 0, newError(FrameEncodingError, "empty padding")
	}
	return n, nil
}

func (f *paddingFrame) encodedLen() int  { return f.length }
func (f *paddingFrame) String() string   { return fmt.Sprintf("PADDING(%d)", f.length) }

// --- PING ---

type pingFrame struct{}

func (f *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypePing
	return 1, nil
}
func (f *pingFrame) decode(b []byte) (int, error) { return 1, nil }
func (f *pingFrame) encodedLen() int              { return 1 }
func (f *pingFrame) String() string               { return "PING" }

// --- ACK ---

type ackFrame struct {
	largestAck uint64
	ackDelay   uint64
	ranges     rangeSet // full set of acked packet numbers, descending
}

func newAckFrame(ackDelay uint64, recv rangeSet) *ackFrame {
	return &ackFrame{
		largestAck: recv.largest(),
		ackDelay:   ackDelay,
		ranges:     recv,
	}
}

// toRangeSet returns the decoded ack ranges (the set of packet numbers the
// peer claims to have received).
func (f *ackFrame) toRangeSet() *rangeSet {
	if len(f.ranges.ranges) == 0 {
		return nil
	}
	return &f.ranges
}

func (f *ackFrame) encode(b []byte) (int, error) {
	if f.ranges.empty() {
		return 0, newError(InternalError, "encoding empty ack")
	}
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeAck
	off++
	off += putVarint(b[off:], f.largestAck)
	off += putVarint(b[off:], f.ackDelay)
	off += putVarint(b[off:], uint64(len(f.ranges.ranges)-1))
	first := f.ranges.ranges[0]
	off += putVarint(b[off:], first.high-first.low)
	prevLow := first.low
	for _, r := range f.ranges.ranges[1:] {
		gap := prevLow - r.high - 2
		off += putVarint(b[off:], gap)
		off += putVarint(b[off:], r.high-r.low)
		prevLow = r.low
	}
	return off, nil
}

func (f *ackFrame) decode(b []byte) (int, error) {
	off := 1 // b[0] is the frame type (frameTypeAck or frameTypeAckECN)
	var largestAck, ackDelay, rangeCount, firstRange uint64
	n := getVarint(b[off:], &largestAck)
	if n == 0 {
		return 0, newError(FrameEncodingError, "ack: largest")
	}
	off += n
	n = getVarint(b[off:], &ackDelay)
	if n == 0 {
		return 0, newError(FrameEncodingError, "ack: delay")
	}
	off += n
	n = getVarint(b[off:], &rangeCount)
	if n == 0 {
		return 0, newError(FrameEncodingError, "ack: range count")
	}
	off += n
	n = getVarint(b[off:], &firstRange)
	if n == 0 {
		return 0, newError(FrameEncodingError, "ack: first range")
	}
	off += n
	if firstRange > largestAck {
		return 0, newError(FrameEncodingError, "ack: first range exceeds largest")
	}
	f.largestAck = largestAck
	f.ackDelay = ackDelay
	f.ranges = rangeSet{}
	high := largestAck
	low := largestAck - firstRange
	f.ranges.ranges = append(f.ranges.ranges, pnRange{low: low, high: high})
	for i := uint64(0); i < rangeCount; i++ {
		var gap, rng uint64
		n = getVarint(b[off:], &gap)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack: gap")
		}
		off += n
		n = getVarint(b[off:], &rng)
		if n == 0 {
			return 0, newError(FrameEncodingError, "ack: range")
		}
		off += n
		if low < gap+2 {
			return 0, newError(FrameEncodingError, "ack: range underflow")
		}
		high = low - gap - 2
		if rng > high {
			return 0, newError(FrameEncodingError, "ack: range underflow")
		}
		low = high - rng
		f.ranges.ranges = append(f.ranges.ranges, pnRange{low: low, high: high})
	}
	if len(b) > off && b[0] == frameTypeAckECN {
		var ect0, ect1, ecnce uint64
		for _, v := range []*uint64{&ect0, &ect1, &ecnce} {
			n = getVarint(b[off:], v)
			if n == 0 {
				return 0, newError(FrameEncodingError, "ack: ecn counts")
			}
			off += n
		}
	}
	return off, nil
}

func (f *ackFrame) encodedLen() int {
	n := 1 + varintLen(f.largestAck) + varintLen(f.ackDelay) + varintLen(uint64(len(f.ranges.ranges)-1))
	if len(f.ranges.ranges) == 0 {
		return n
	}
	first := f.ranges.ranges[0]
	n += varintLen(first.high - first.low)
	prevLow := first.low
	for _, r := range f.ranges.ranges[1:] {
		gap := prevLow - r.high - 2
		n += varintLen(gap) + varintLen(r.high-r.low)
		prevLow = r.low
	}
	return n
}

func (f *ackFrame) String() string {
	return fmt.Sprintf("ACK(largest=%d delay=%d ranges=%d)", f.largestAck, f.ackDelay, len(f.ranges.ranges))
}

// --- RESET_STREAM ---

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeResetStream
	off++
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	off += putVarint(b[off:], f.finalSize)
	return off, nil
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	off := 1
	var n int
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, newError(FrameEncodingError, "reset_stream")
	}
	off += n
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, newError(FrameEncodingError, "reset_stream")
	}
	off += n
	if n = getVarint(b[off:], &f.finalSize); n == 0 {
		return 0, newError(FrameEncodingError, "reset_stream")
	}
	off += n
	return off, nil
}

func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) String() string {
	return fmt.Sprintf("RESET_STREAM(id=%d code=%d final=%d)", f.streamID, f.errorCode, f.finalSize)
}

// --- STOP_SENDING ---

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeStopSending
	off++
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.errorCode)
	return off, nil
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	off := 1
	var n int
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, newError(FrameEncodingError, "stop_sending")
	}
	off += n
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, newError(FrameEncodingError, "stop_sending")
	}
	off += n
	return off, nil
}

func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) String() string {
	return fmt.Sprintf("STOP_SENDING(id=%d code=%d)", f.streamID, f.errorCode)
}

// --- CRYPTO ---

type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeCrypto
	off++
	off += putVarint(b[off:], f.offset)
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off, nil
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	off := 1
	var n int
	var length uint64
	if n = getVarint(b[off:], &f.offset); n == 0 {
		return 0, newError(FrameEncodingError, "crypto")
	}
	off += n
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, newError(FrameEncodingError, "crypto")
	}
	off += n
	if len(b) < off+int(length) {
		return 0, newError(FrameEncodingError, "crypto: truncated data")
	}
	f.data = b[off : off+int(length)]
	off += int(length)
	return off, nil
}

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) String() string {
	return fmt.Sprintf("CRYPTO(offset=%d len=%d)", f.offset, len(f.data))
}

const maxCryptoFrameOverhead = 1 + 8 + 8 // type + max offset varint + max length varint

// --- NEW_TOKEN ---

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeNewToken
	off++
	off += putVarint(b[off:], uint64(len(f.token)))
	off += copy(b[off:], f.token)
	return off, nil
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	off := 1
	var length uint64
	n := getVarint(b[off:], &length)
	if n == 0 {
		return 0, newError(FrameEncodingError, "new_token")
	}
	off += n
	if length == 0 {
		return 0, newError(FrameEncodingError, "new_token: empty")
	}
	if len(b) < off+int(length) {
		return 0, newError(FrameEncodingError, "new_token: truncated")
	}
	f.token = b[off : off+int(length)]
	off += int(length)
	return off, nil
}

func (f *newTokenFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) String() string { return fmt.Sprintf("NEW_TOKEN(len=%d)", len(f.token)) }

// --- STREAM ---

const (
	streamFlagFin = 0x01
	streamFlagLen = 0x02
	streamFlagOff = 0x04
)

type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(id uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: id, data: data, offset: offset, fin: fin}
}

func (f *streamFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	typ := byte(frameTypeStream) | streamFlagLen
	if f.offset > 0 {
		typ |= streamFlagOff
	}
	if f.fin {
		typ |= streamFlagFin
	}
	off := 0
	b[off] = typ
	off++
	off += putVarint(b[off:], f.streamID)
	if f.offset > 0 {
		off += putVarint(b[off:], f.offset)
	}
	off += putVarint(b[off:], uint64(len(f.data)))
	off += copy(b[off:], f.data)
	return off, nil
}

func (f *streamFrame) decode(b []byte) (int, error) {
	typ := b[0]
	off := 1
	var n int
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, newError(FrameEncodingError, "stream")
	}
	off += n
	f.offset = 0
	if typ&streamFlagOff != 0 {
		if n = getVarint(b[off:], &f.offset); n == 0 {
			return 0, newError(FrameEncodingError, "stream")
		}
		off += n
	}
	var length uint64
	if typ&streamFlagLen != 0 {
		if n = getVarint(b[off:], &length); n == 0 {
			return 0, newError(FrameEncodingError, "stream")
		}
		off += n
	} else {
		length = uint64(len(b) - off)
	}
	if len(b) < off+int(length) {
		return 0, newError(FrameEncodingError, "stream: truncated data")
	}
	f.data = b[off : off+int(length)]
	off += int(length)
	f.fin = typ&streamFlagFin != 0
	return off, nil
}

func (f *streamFrame) encodedLen() int {
	n := 1 + varintLen(f.streamID)
	if f.offset > 0 {
		n += varintLen(f.offset)
	}
	n += varintLen(uint64(len(f.data))) + len(f.data)
	return n
}

func (f *streamFrame) String() string {
	return fmt.Sprintf("STREAM(id=%d offset=%d len=%d fin=%v)", f.streamID, f.offset, len(f.data), f.fin)
}

const maxStreamFrameOverhead = 1 + 8 + 8 + 8 // type + id + offset + length varints

// --- MAX_DATA ---

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(v uint64) *maxDataFrame { return &maxDataFrame{maximumData: v} }

func (f *maxDataFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypeMaxData
	n := putVarint(b[1:], f.maximumData)
	return 1 + n, nil
}

func (f *maxDataFrame) decode(b []byte) (int, error) {
	n := getVarint(b[1:], &f.maximumData)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_data")
	}
	return 1 + n, nil
}

func (f *maxDataFrame) encodedLen() int { return 1 + varintLen(f.maximumData) }
func (f *maxDataFrame) String() string  { return fmt.Sprintf("MAX_DATA(%d)", f.maximumData) }

// --- MAX_STREAM_DATA ---

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(id, v uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: id, maximumData: v}
}

func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeMaxStreamData
	off++
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.maximumData)
	return off, nil
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	off := 1
	var n int
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, newError(FrameEncodingError, "max_stream_data")
	}
	off += n
	if n = getVarint(b[off:], &f.maximumData); n == 0 {
		return 0, newError(FrameEncodingError, "max_stream_data")
	}
	off += n
	return off, nil
}

func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) String() string {
	return fmt.Sprintf("MAX_STREAM_DATA(id=%d max=%d)", f.streamID, f.maximumData)
}

// --- MAX_STREAMS ---

type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(maximumStreams uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: maximumStreams}
}

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	if f.bidi {
		b[off] = frameTypeMaxStreamsBidi
	} else {
		b[off] = frameTypeMaxStreamsUni
	}
	off++
	off += putVarint(b[off:], f.maximumStreams)
	return off, nil
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	f.bidi = b[0] == frameTypeMaxStreamsBidi
	n := getVarint(b[1:], &f.maximumStreams)
	if n == 0 {
		return 0, newError(FrameEncodingError, "max_streams")
	}
	return 1 + n, nil
}

func (f *maxStreamsFrame) encodedLen() int { return 1 + varintLen(f.maximumStreams) }
func (f *maxStreamsFrame) String() string {
	return fmt.Sprintf("MAX_STREAMS(bidi=%v max=%d)", f.bidi, f.maximumStreams)
}

// --- DATA_BLOCKED / STREAM_DATA_BLOCKED / STREAMS_BLOCKED ---

type dataBlockedFrame struct{ maximumData uint64 }

func newDataBlockedFrame(maximumData uint64) *dataBlockedFrame {
	return &dataBlockedFrame{maximumData: maximumData}
}

func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypeDataBlocked
	n := putVarint(b[1:], f.maximumData)
	return 1 + n, nil
}
func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	n := getVarint(b[1:], &f.maximumData)
	if n == 0 {
		return 0, newError(FrameEncodingError, "data_blocked")
	}
	return 1 + n, nil
}
func (f *dataBlockedFrame) encodedLen() int { return 1 + varintLen(f.maximumData) }
func (f *dataBlockedFrame) String() string  { return fmt.Sprintf("DATA_BLOCKED(%d)", f.maximumData) }

type streamDataBlockedFrame struct {
	streamID    uint64
	maximumData uint64
}

func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeStreamDataBlocked
	off++
	off += putVarint(b[off:], f.streamID)
	off += putVarint(b[off:], f.maximumData)
	return off, nil
}
func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	off := 1
	var n int
	if n = getVarint(b[off:], &f.streamID); n == 0 {
		return 0, newError(FrameEncodingError, "stream_data_blocked")
	}
	off += n
	if n = getVarint(b[off:], &f.maximumData); n == 0 {
		return 0, newError(FrameEncodingError, "stream_data_blocked")
	}
	off += n
	return off, nil
}
func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}
func (f *streamDataBlockedFrame) String() string {
	return fmt.Sprintf("STREAM_DATA_BLOCKED(id=%d max=%d)", f.streamID, f.maximumData)
}

type streamsBlockedFrame struct {
	bidi           bool
	maximumStreams uint64
}

func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	if f.bidi {
		b[off] = frameTypeStreamsBlockedBidi
	} else {
		b[off] = frameTypeStreamsBlockedUni
	}
	off++
	off += putVarint(b[off:], f.maximumStreams)
	return off, nil
}
func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	f.bidi = b[0] == frameTypeStreamsBlockedBidi
	n := getVarint(b[1:], &f.maximumStreams)
	if n == 0 {
		return 0, newError(FrameEncodingError, "streams_blocked")
	}
	return 1 + n, nil
}
func (f *streamsBlockedFrame) encodedLen() int { return 1 + varintLen(f.maximumStreams) }
func (f *streamsBlockedFrame) String() string {
	return fmt.Sprintf("STREAMS_BLOCKED(bidi=%v max=%d)", f.bidi, f.maximumStreams)
}

// --- NEW_CONNECTION_ID ---

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	connectionID   []byte
	resetToken     [16]byte
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	b[off] = frameTypeNewConnectionID
	off++
	off += putVarint(b[off:], f.sequenceNumber)
	off += putVarint(b[off:], f.retirePriorTo)
	b[off] = byte(len(f.connectionID))
	off++
	off += copy(b[off:], f.connectionID)
	off += copy(b[off:], f.resetToken[:])
	return off, nil
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	off := 1
	var n int
	if n = getVarint(b[off:], &f.sequenceNumber); n == 0 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	off += n
	if n = getVarint(b[off:], &f.retirePriorTo); n == 0 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	off += n
	if len(b) < off+1 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	cidLen := int(b[off])
	off++
	if cidLen == 0 || cidLen > MaxCIDLength {
		return 0, newError(FrameEncodingError, "new_connection_id: bad cid length")
	}
	if len(b) < off+cidLen+16 {
		return 0, newError(FrameEncodingError, "new_connection_id: truncated")
	}
	f.connectionID = b[off : off+cidLen]
	off += cidLen
	copy(f.resetToken[:], b[off:off+16])
	off += 16
	return off, nil
}

func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) + 1 + len(f.connectionID) + 16
}

func (f *newConnectionIDFrame) String() string {
	return fmt.Sprintf("NEW_CONNECTION_ID(seq=%d retire_prior_to=%d cid=%x)", f.sequenceNumber, f.retirePriorTo, f.connectionID)
}

// --- RETIRE_CONNECTION_ID ---

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypeRetireConnectionID
	n := putVarint(b[1:], f.sequenceNumber)
	return 1 + n, nil
}
func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	n := getVarint(b[1:], &f.sequenceNumber)
	if n == 0 {
		return 0, newError(FrameEncodingError, "retire_connection_id")
	}
	return 1 + n, nil
}
func (f *retireConnectionIDFrame) encodedLen() int { return 1 + varintLen(f.sequenceNumber) }
func (f *retireConnectionIDFrame) String() string {
	return fmt.Sprintf("RETIRE_CONNECTION_ID(seq=%d)", f.sequenceNumber)
}

// --- PATH_CHALLENGE / PATH_RESPONSE ---

type pathChallengeFrame struct{ data [8]byte }

func (f *pathChallengeFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypePathChallenge
	copy(b[1:], f.data[:])
	return 9, nil
}
func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	if len(b) < 9 {
		return 0, newError(FrameEncodingError, "path_challenge")
	}
	copy(f.data[:], b[1:9])
	return 9, nil
}
func (f *pathChallengeFrame) encodedLen() int { return 9 }
func (f *pathChallengeFrame) String() string  { return fmt.Sprintf("PATH_CHALLENGE(%x)", f.data) }

type pathResponseFrame struct{ data [8]byte }

func (f *pathResponseFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypePathResponse
	copy(b[1:], f.data[:])
	return 9, nil
}
func (f *pathResponseFrame) decode(b []byte) (int, error) {
	if len(b) < 9 {
		return 0, newError(FrameEncodingError, "path_response")
	}
	copy(f.data[:], b[1:9])
	return 9, nil
}
func (f *pathResponseFrame) encodedLen() int { return 9 }
func (f *pathResponseFrame) String() string  { return fmt.Sprintf("PATH_RESPONSE(%x)", f.data) }

// --- CONNECTION_CLOSE ---

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64 // only meaningful for the transport variant
	reasonPhrase []byte
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	off := 0
	if f.application {
		b[off] = frameTypeApplicationClose
	} else {
		b[off] = frameTypeConnectionClose
	}
	off++
	off += putVarint(b[off:], f.errorCode)
	if !f.application {
		off += putVarint(b[off:], f.frameType)
	}
	off += putVarint(b[off:], uint64(len(f.reasonPhrase)))
	off += copy(b[off:], f.reasonPhrase)
	return off, nil
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	f.application = b[0] == frameTypeApplicationClose
	off := 1
	var n int
	if n = getVarint(b[off:], &f.errorCode); n == 0 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	off += n
	if !f.application {
		if n = getVarint(b[off:], &f.frameType); n == 0 {
			return 0, newError(FrameEncodingError, "connection_close")
		}
		off += n
	}
	var length uint64
	if n = getVarint(b[off:], &length); n == 0 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	off += n
	if len(b) < off+int(length) {
		return 0, newError(FrameEncodingError, "connection_close: truncated reason")
	}
	f.reasonPhrase = b[off : off+int(length)]
	off += int(length)
	return off, nil
}

func (f *connectionCloseFrame) encodedLen() int {
	n := 1 + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) String() string {
	kind := "CONNECTION_CLOSE"
	if f.application {
		kind = "CONNECTION_CLOSE(app)"
	}
	return fmt.Sprintf("%s(code=%s reason=%q)", kind, errorCodeString(f.errorCode), f.reasonPhrase)
}

// --- HANDSHAKE_DONE ---

type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypeHandshakeDone
	return 1, nil
}
func (f *handshakeDoneFrame) decode(b []byte) (int, error) { return 1, nil }
func (f *handshakeDoneFrame) encodedLen() int              { return 1 }
func (f *handshakeDoneFrame) String() string                { return "HANDSHAKE_DONE" }
