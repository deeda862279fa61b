package transport

import "time"

// Constants from RFC9002 §6.2, §7.2 and Appendix A.
const (
	kPacketThreshold  = 3
	kTimeThresholdNum = 9
	kTimeThresholdDen = 8
	kGranularity      = time.Millisecond
	kInitialRTT       = 333 * time.Millisecond
)

// Congestion control constants, RFC9002 §7 (NewReno).
const (
	kInitialWindowPackets = 10
	kMinimumWindowPackets = 2
	kLossReductionFactor  = 0.5
)

// sentPacket is the per-space sent-packet record of spec.md §3 "Sent
// Packet Record", tracked from the moment a packet is sent until it is
// acked, declared lost, or its space is dropped.
type sentPacket struct {
	pn           uint64
	timeSent     time.Time
	size         int
	ackEliciting bool
	inFlight     bool
	frames       []frame
}

// lossRecovery implements the loss detection and congestion control of
// spec.md §4.6 (RFC9002), shared by a Conn across its three
// packet-number spaces.
type lossRecovery struct {
	maxAckDelay time.Duration
	maxDatagramSize uint64

	firstRTTSample bool
	latestRTT      time.Duration
	minRTT         time.Duration
	smoothedRTT    time.Duration
	rttVar         time.Duration

	probes int // consecutive PTOs fired without an intervening ack, for backoff

	sent                         [packetSpaceCount][]sentPacket
	lost                         [packetSpaceCount][]frame
	acked                        [packetSpaceCount][]frame
	lossTime                     [packetSpaceCount]time.Time
	timeOfLastAckElicitingPacket [packetSpaceCount]time.Time
	largestAckedPacket          [packetSpaceCount]uint64

	lossDetectionTimer time.Time

	congestionWindow  uint64
	bytesInFlight     uint64
	ssthresh          uint64
	recoveryStartTime time.Time
}

func (l *lossRecovery) init(now time.Time) {
	l.maxAckDelay = DefaultMaxAckDelay
	l.maxDatagramSize = MinInitialPacketSize
	l.smoothedRTT = kInitialRTT
	l.rttVar = kInitialRTT / 2
	l.ssthresh = ^uint64(0)
	l.congestionWindow = kInitialWindowPackets * l.maxDatagramSize
	_ = now
}

func (l *lossRecovery) congestionWindowAvailable() uint64 {
	if l.bytesInFlight >= l.congestionWindow {
		return 0
	}
	return l.congestionWindow - l.bytesInFlight
}

func (l *lossRecovery) onPacketSent(op *outgoingPacket, space packetSpace) {
	sp := sentPacket{
		pn:           op.pn,
		timeSent:     op.timeSent,
		size:         int(op.size),
		ackEliciting: op.ackEliciting,
		inFlight:     op.ackEliciting,
		frames:       op.frames,
	}
	l.sent[space] = append(l.sent[space], sp)
	if sp.ackEliciting {
		l.timeOfLastAckElicitingPacket[space] = sp.timeSent
	}
	if sp.inFlight {
		l.bytesInFlight += uint64(sp.size)
	}
	l.updateLossDetectionTimer()
}

// updateRTT folds a fresh sample into the smoothed/variance RTT estimate,
// RFC9002 §5.3.
func (l *lossRecovery) updateRTT(latest, ackDelay time.Duration) {
	l.latestRTT = latest
	if !l.firstRTTSample {
		l.firstRTTSample = true
		l.minRTT = latest
		l.smoothedRTT = latest
		l.rttVar = latest / 2
		return
	}
	if l.minRTT == 0 || latest < l.minRTT {
		l.minRTT = latest
	}
	adjusted := latest
	if adjusted-l.minRTT >= ackDelay {
		adjusted -= ackDelay
	}
	if adjusted < l.minRTT {
		adjusted = l.minRTT
	}
	diff := l.smoothedRTT - adjusted
	if diff < 0 {
		diff = -diff
	}
	l.rttVar = (3*l.rttVar + diff) / 4
	l.smoothedRTT = (7*l.smoothedRTT + adjusted) / 8
}

// onAckReceived folds a peer ACK frame's range set into one space's
// sent-packet history: it updates the RTT sample from the largest newly
// acked ack-eliciting packet, retires acked packets (staging their
// frames for drainAcked), runs the congestion-control ack reaction, and
// finally a loss detection pass (RFC9002 §5, §6.1, §7.3.1).
func (l *lossRecovery) onAckReceived(ranges *rangeSet, ackDelay time.Duration, space packetSpace, now time.Time) {
	largest := ranges.largest()
	if largest != invalidPacketNumber && largest > l.largestAckedPacket[space] {
		l.largestAckedPacket[space] = largest
	}

	var newlyAcked []sentPacket
	remaining := l.sent[space][:0]
	for _, pkt := range l.sent[space] {
		if ranges.contains(pkt.pn) {
			newlyAcked = append(newlyAcked, pkt)
			continue
		}
		remaining = append(remaining, pkt)
	}
	l.sent[space] = remaining

	var largestNewlyAcked *sentPacket
	for i := range newlyAcked {
		pkt := &newlyAcked[i]
		if isFrameRetransmittableList(pkt.frames) {
			l.acked[space] = append(l.acked[space], pkt.frames...)
		}
		if largestNewlyAcked == nil || pkt.pn > largestNewlyAcked.pn {
			largestNewlyAcked = pkt
		}
		l.onPacketAcked(*pkt)
	}
	if largestNewlyAcked != nil && largestNewlyAcked.pn == largest && largestNewlyAcked.ackEliciting {
		l.updateRTT(now.Sub(largestNewlyAcked.timeSent), ackDelay)
	}

	l.probes = 0
	l.detectAndRemoveLostPackets(space, now)
	l.updateLossDetectionTimer()
}

func isFrameRetransmittableList(frames []frame) bool {
	for _, f := range frames {
		if isFrameRetransmittable(f) {
			return true
		}
	}
	return false
}

func (l *lossRecovery) onPacketAcked(pkt sentPacket) {
	if !pkt.inFlight {
		return
	}
	if l.bytesInFlight >= uint64(pkt.size) {
		l.bytesInFlight -= uint64(pkt.size)
	} else {
		l.bytesInFlight = 0
	}
	if l.inRecovery(pkt.timeSent) {
		return
	}
	if l.congestionWindow < l.ssthresh {
		l.congestionWindow += uint64(pkt.size) // slow start
	} else {
		l.congestionWindow += uint64(pkt.size) * l.maxDatagramSize / l.congestionWindow // congestion avoidance
	}
}

func (l *lossRecovery) inRecovery(sentTime time.Time) bool {
	return !l.recoveryStartTime.IsZero() && !sentTime.After(l.recoveryStartTime)
}

// detectAndRemoveLostPackets implements RFC9002 §6.1: a packet sent
// kPacketThreshold packet numbers before the largest acked, or more than
// the dynamic time threshold ago, is declared lost; its frames are
// staged for drainLost and its bytes leave the congestion window.
func (l *lossRecovery) detectAndRemoveLostPackets(space packetSpace, now time.Time) {
	largest := l.largestAckedPacket[space]
	lossDelay := time.Duration(float64(maxDuration(l.latestRTT, l.smoothedRTT)) * kTimeThresholdNum / kTimeThresholdDen)
	if lossDelay < kGranularity {
		lossDelay = kGranularity
	}
	var lossTime time.Time
	var lost []sentPacket
	remaining := l.sent[space][:0]
	congestionLoss := false
	for _, pkt := range l.sent[space] {
		if pkt.pn > largest {
			remaining = append(remaining, pkt)
			continue
		}
		lostByCount := largest >= kPacketThreshold && pkt.pn <= largest-kPacketThreshold
		lostByTime := !now.Before(pkt.timeSent.Add(lossDelay))
		if lostByCount || lostByTime {
			lost = append(lost, pkt)
			continue
		}
		remaining = append(remaining, pkt)
		candidate := pkt.timeSent.Add(lossDelay)
		if lossTime.IsZero() || candidate.Before(lossTime) {
			lossTime = candidate
		}
	}
	l.sent[space] = remaining
	l.lossTime[space] = lossTime

	var lostSentTime time.Time
	for _, pkt := range lost {
		if pkt.inFlight {
			if l.bytesInFlight >= uint64(pkt.size) {
				l.bytesInFlight -= uint64(pkt.size)
			} else {
				l.bytesInFlight = 0
			}
			congestionLoss = true
			if pkt.timeSent.After(lostSentTime) {
				lostSentTime = pkt.timeSent
			}
		}
		for _, f := range pkt.frames {
			if isFrameRetransmittable(f) {
				l.lost[space] = append(l.lost[space], f)
			}
		}
	}

	if congestionLoss {
		l.onCongestionEvent(lostSentTime, now)
	}
}

// onCongestionEvent applies the NewReno multiplicative-decrease response,
// RFC9002 §7.3.2, at most once per round trip.
func (l *lossRecovery) onCongestionEvent(sentTime, now time.Time) {
	if l.inRecovery(sentTime) {
		return
	}
	l.recoveryStartTime = now
	l.congestionWindow = uint64(float64(l.congestionWindow) * kLossReductionFactor)
	min := kMinimumWindowPackets * l.maxDatagramSize
	if l.congestionWindow < min {
		l.congestionWindow = min
	}
	l.ssthresh = l.congestionWindow
}

// drainAcked and drainLost hand newly-settled frames to the caller so it
// can react to stream/crypto acks or requeue lost data without this file
// needing to know stream semantics.
func (l *lossRecovery) drainAcked(space packetSpace, fn func(frame)) {
	for _, f := range l.acked[space] {
		fn(f)
	}
	l.acked[space] = nil
}

func (l *lossRecovery) drainLost(space packetSpace, fn func(frame)) {
	for _, f := range l.lost[space] {
		fn(f)
	}
	l.lost[space] = nil
}

func (l *lossRecovery) dropUnackedData(space packetSpace) {
	for _, pkt := range l.sent[space] {
		if pkt.inFlight && l.bytesInFlight >= uint64(pkt.size) {
			l.bytesInFlight -= uint64(pkt.size)
		}
	}
	l.sent[space] = nil
	l.lost[space] = nil
	l.acked[space] = nil
	l.lossTime[space] = time.Time{}
	l.timeOfLastAckElicitingPacket[space] = time.Time{}
	l.updateLossDetectionTimer()
}

// probeTimeout computes the PTO duration, RFC9002 §6.2.1, doubled once
// per consecutive expiry for exponential backoff.
func (l *lossRecovery) probeTimeout() time.Duration {
	pto := l.smoothedRTT + maxDuration(4*l.rttVar, kGranularity) + l.maxAckDelay
	return pto * time.Duration(uint64(1)<<uint(l.probes))
}

// updateLossDetectionTimer recomputes lossDetectionTimer: the earliest
// per-space loss time if one is outstanding, else a PTO measured from the
// last ack-eliciting packet sent, else disarmed.
func (l *lossRecovery) updateLossDetectionTimer() {
	var earliestLoss time.Time
	for space := packetSpace(0); space < packetSpaceCount; space++ {
		t := l.lossTime[space]
		if t.IsZero() {
			continue
		}
		if earliestLoss.IsZero() || t.Before(earliestLoss) {
			earliestLoss = t
		}
	}
	if !earliestLoss.IsZero() {
		l.lossDetectionTimer = earliestLoss
		return
	}

	if l.bytesInFlight == 0 {
		l.lossDetectionTimer = time.Time{}
		return
	}
	var last time.Time
	for space := packetSpace(0); space < packetSpaceCount; space++ {
		t := l.timeOfLastAckElicitingPacket[space]
		if t.IsZero() {
			continue
		}
		if last.IsZero() || t.Before(last) {
			last = t
		}
	}
	if last.IsZero() {
		l.lossDetectionTimer = time.Time{}
		return
	}
	l.lossDetectionTimer = last.Add(l.probeTimeout())
}

// onLossDetectionTimeout fires either a time-threshold loss pass, if one
// space's loss time has arrived, or bumps the PTO backoff counter so the
// caller's next Read sends a probe (RFC9002 §6.2.1, §6.2.4).
func (l *lossRecovery) onLossDetectionTimeout(now time.Time) {
	for space := packetSpace(0); space < packetSpaceCount; space++ {
		if !l.lossTime[space].IsZero() && !now.Before(l.lossTime[space]) {
			l.detectAndRemoveLostPackets(space, now)
			l.updateLossDetectionTimer()
			return
		}
	}
	l.probes++
	l.updateLossDetectionTimer()
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
