package transport

import "sort"

// sendBuffer tracks the bytes an endpoint has queued for one direction of a
// stream (or a crypto stream), in absolute stream-offset space. It supports
// out-of-order re-queueing of lost ranges, which is why it is not a plain
// io.Writer-backed ring buffer.
type sendBuffer struct {
	base    uint64 // absolute offset of buf[0]
	buf     []byte
	sentTo  uint64 // absolute offset up to which bytes have been handed to popSend at least once
	ackedTo uint64 // absolute offset below which every byte is acked and may be discarded

	finalSize    uint64
	finalSizeSet bool

	resend rangeSet // byte ranges (not packet numbers) that must be resent due to loss
}

func (b *sendBuffer) init() {
	b.base, b.sentTo, b.ackedTo = 0, 0, 0
}

// push appends application data at the tail (offset == current end) or, for
// retransmission, re-marks an already-sent range as needing resend.
func (b *sendBuffer) push(data []byte, offset uint64, fin bool) error {
	end := b.base + uint64(len(b.buf))
	switch {
	case offset == end:
		b.buf = append(b.buf, data...)
		if fin {
			b.finalSize = offset + uint64(len(data))
			b.finalSizeSet = true
		}
		return nil
	case offset+uint64(len(data)) <= b.sentTo:
		// Retransmission: re-mark this already-buffered range for resend.
		// Ranges are appended in the order they are reported (newest last);
		// popSend below drains the last-appended range first.
		if len(data) > 0 {
			b.resend.ranges = append(b.resend.ranges, pnRange{low: offset, high: offset + uint64(len(data)) - 1})
		}
		if fin {
			b.finalSize = offset + uint64(len(data))
			b.finalSizeSet = true
		}
		return nil
	default:
		return newError(InternalError, "send buffer: out-of-order write")
	}
}

// popSend returns up to max bytes to send next: first any ranges marked for
// resend, otherwise fresh data from the tail. fin is true only when the
// returned chunk reaches a known final size.
func (b *sendBuffer) popSend(max int) (data []byte, offset uint64, fin bool) {
	if !b.resend.empty() {
		r := b.resend.ranges[len(b.resend.ranges)-1] // last-appended range first
		lo, hi := r.low, r.high
		n := int(hi - lo + 1)
		if n > max {
			n = max
			hi = lo + uint64(n) - 1
		}
		start := int(lo - b.base)
		out := b.buf[start : start+n]
		if hi == r.high {
			b.resend.ranges = b.resend.ranges[:len(b.resend.ranges)-1]
		} else {
			b.resend.ranges[len(b.resend.ranges)-1].low = hi + 1
		}
		fin = b.finalSizeSet && hi+1 == b.finalSize
		return out, lo, fin
	}
	avail := b.base + uint64(len(b.buf)) - b.sentTo
	if avail == 0 {
		return nil, 0, false
	}
	n := int(avail)
	if n > max {
		n = max
	}
	if n <= 0 {
		return nil, 0, false
	}
	start := int(b.sentTo - b.base)
	out := b.buf[start : start+n]
	offset = b.sentTo
	b.sentTo += uint64(n)
	fin = b.finalSizeSet && b.sentTo == b.finalSize
	return out, offset, fin
}

// ack discards bytes in [offset, offset+length) once it is known the peer
// received them, trimming the buffer's head when the acked prefix grows.
func (b *sendBuffer) ack(offset, length uint64) {
	end := offset + length
	if end <= b.ackedTo {
		return
	}
	if offset <= b.ackedTo {
		b.ackedTo = end
	}
	// Trim the contiguous acked prefix from the backing array.
	if b.ackedTo > b.base {
		n := int(b.ackedTo - b.base)
		if n > len(b.buf) {
			n = len(b.buf)
		}
		b.buf = b.buf[n:]
		b.base += uint64(n)
	}
}

func (b *sendBuffer) complete() bool {
	return b.finalSizeSet && b.ackedTo >= b.finalSize
}

// recvBuffer reassembles a byte stream from frames that may arrive out of
// order or duplicated (RFC9000 §2.2), exposing only the contiguous prefix
// that has been delivered so far.
type recvBuffer struct {
	readOffset uint64 // absolute offset of avail[0]; also the next byte application Read returns
	avail      []byte

	pending map[uint64][]byte // offset -> data, for chunks that arrived ahead of readOffset+len(avail)

	finalSize    uint64
	finalSizeSet bool
	resetCode    uint64
	wasReset     bool
}

func (b *recvBuffer) init() {
	b.pending = make(map[uint64][]byte)
}

// write stores data arriving at offset, draining any now-contiguous pending
// chunks into avail. Returns the number of previously-unseen bytes credited
// to flow control.
func (b *recvBuffer) write(data []byte, offset uint64, fin bool) (newBytes int, err error) {
	if b.wasReset {
		return 0, nil
	}
	if fin {
		finalSize := offset + uint64(len(data))
		if b.finalSizeSet && finalSize != b.finalSize {
			return 0, newError(FinalSizeError, "final size mismatch")
		}
		b.finalSize = finalSize
		b.finalSizeSet = true
	}
	if b.finalSizeSet && offset+uint64(len(data)) > b.finalSize {
		return 0, newError(FinalSizeError, "data beyond final size")
	}
	end := b.readOffset + uint64(len(b.avail))
	switch {
	case offset+uint64(len(data)) <= end:
		return 0, nil // fully duplicate
	case offset <= end:
		// overlap or exact contiguous append; keep only the new tail
		skip := end - offset
		tail := data[skip:]
		b.avail = append(b.avail, tail...)
		newBytes = len(tail)
		b.drainPending()
		return newBytes, nil
	default:
		if _, ok := b.pending[offset]; !ok {
			cp := make([]byte, len(data))
			copy(cp, data)
			b.pending[offset] = cp
			newBytes = len(data)
		}
		return newBytes, nil
	}
}

func (b *recvBuffer) drainPending() {
	for {
		end := b.readOffset + uint64(len(b.avail))
		chunk, ok := b.pending[end]
		if !ok {
			return
		}
		b.avail = append(b.avail, chunk...)
		delete(b.pending, end)
	}
}

// read copies reassembled bytes into p in strict offset order.
func (b *recvBuffer) read(p []byte) (int, error) {
	if len(b.avail) == 0 {
		if b.wasReset {
			return 0, &ApplicationError{Code: b.resetCode, Reason: "stream reset by peer"}
		}
		if b.finalSizeSet && b.readOffset == b.finalSize {
			return 0, errStreamEOF
		}
		return 0, nil
	}
	n := copy(p, b.avail)
	b.avail = b.avail[n:]
	b.readOffset += uint64(n)
	return n, nil
}

// reset discards all buffered/pending data and returns the number of bytes
// of flow-control credit to release for data that will now never arrive.
func (b *recvBuffer) reset(finalSize uint64) (int, error) {
	if b.finalSizeSet && finalSize != b.finalSize {
		return 0, newError(FinalSizeError, "reset final size mismatch")
	}
	prevKnown := b.readOffset + uint64(len(b.avail))
	for off := range b.pending {
		if off+uint64(len(b.pending[off])) > prevKnown {
			prevKnown = off + uint64(len(b.pending[off]))
		}
	}
	if finalSize < prevKnown {
		return 0, newError(FinalSizeError, "reset final size too small")
	}
	mayRecv := int(finalSize - prevKnown)
	b.finalSize = finalSize
	b.finalSizeSet = true
	b.wasReset = true
	b.avail = nil
	b.pending = make(map[uint64][]byte)
	return mayRecv, nil
}

func (b *recvBuffer) pendingOffsets() []uint64 {
	out := make([]uint64, 0, len(b.pending))
	for k := range b.pending {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
