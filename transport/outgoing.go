package transport

import (
	"fmt"
	"time"
)

// frameIsAckEliciting mirrors isFrameAckEliciting but works from the
// decoded frame value already in hand while a packet is being built,
// rather than its wire type code.
func frameIsAckEliciting(f frame) bool {
	switch f.(type) {
	case *ackFrame, *paddingFrame, *connectionCloseFrame:
		return false
	default:
		return true
	}
}

// outgoingPacket accumulates the frames chosen for one packet as it is
// being built, before encoding and sealing (spec.md §3 "Sent Packet
// Record", pre-transmit half).
type outgoingPacket struct {
	pn           uint64
	timeSent     time.Time
	frames       []frame
	size         uint64
	ackEliciting bool
}

func newOutgoingPacket(pn uint64, now time.Time) *outgoingPacket {
	return &outgoingPacket{pn: pn, timeSent: now}
}

func (op *outgoingPacket) addFrame(f frame) {
	op.frames = append(op.frames, f)
	if frameIsAckEliciting(f) {
		op.ackEliciting = true
	}
}

func (op *outgoingPacket) String() string {
	return fmt.Sprintf("pn=%d frames=%d size=%d", op.pn, len(op.frames), op.size)
}
