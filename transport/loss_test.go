package transport

import (
	"testing"
	"time"
)

func TestUpdateRTTFirstSampleSeedsEstimates(t *testing.T) {
	var l lossRecovery
	l.init(time.Now())
	l.updateRTT(100*time.Millisecond, 0)
	if l.smoothedRTT != 100*time.Millisecond {
		t.Fatalf("smoothedRTT = %v, want 100ms", l.smoothedRTT)
	}
	if l.minRTT != 100*time.Millisecond {
		t.Fatalf("minRTT = %v, want 100ms", l.minRTT)
	}
}

func TestUpdateRTTSubsequentSamplesSmooth(t *testing.T) {
	var l lossRecovery
	l.init(time.Now())
	l.updateRTT(100*time.Millisecond, 0)
	l.updateRTT(200*time.Millisecond, 0)
	if l.smoothedRTT <= 100*time.Millisecond || l.smoothedRTT >= 200*time.Millisecond {
		t.Fatalf("smoothedRTT = %v, want strictly between 100ms and 200ms", l.smoothedRTT)
	}
	if l.minRTT != 100*time.Millisecond {
		t.Fatalf("minRTT should stay at the smallest sample: got %v", l.minRTT)
	}
}

func TestOnPacketSentTracksBytesInFlight(t *testing.T) {
	var l lossRecovery
	l.init(time.Now())
	now := time.Now()
	op := &outgoingPacket{pn: 1, timeSent: now, size: 100, ackEliciting: true}
	l.onPacketSent(op, packetSpaceApplication)
	if l.bytesInFlight != 100 {
		t.Fatalf("bytesInFlight = %d, want 100", l.bytesInFlight)
	}
	if len(l.sent[packetSpaceApplication]) != 1 {
		t.Fatalf("expected one sent-packet record, got %d", len(l.sent[packetSpaceApplication]))
	}
}

func TestOnAckReceivedRetiresAckedPackets(t *testing.T) {
	var l lossRecovery
	l.init(time.Now())
	now := time.Now()
	l.onPacketSent(&outgoingPacket{pn: 1, timeSent: now, size: 100, ackEliciting: true}, packetSpaceApplication)
	l.onPacketSent(&outgoingPacket{pn: 2, timeSent: now.Add(time.Millisecond), size: 100, ackEliciting: true}, packetSpaceApplication)

	var acked rangeSet
	acked.add(1)
	l.onAckReceived(&acked, 0, packetSpaceApplication, now.Add(10*time.Millisecond))

	if l.bytesInFlight != 100 {
		t.Fatalf("bytesInFlight after acking one of two packets = %d, want 100", l.bytesInFlight)
	}
	if len(l.sent[packetSpaceApplication]) != 1 {
		t.Fatalf("expected one remaining sent packet, got %d", len(l.sent[packetSpaceApplication]))
	}
	if l.sent[packetSpaceApplication][0].pn != 2 {
		t.Fatalf("remaining packet should be pn=2, got pn=%d", l.sent[packetSpaceApplication][0].pn)
	}
}

func TestDetectAndRemoveLostPacketsByPacketThreshold(t *testing.T) {
	var l lossRecovery
	l.init(time.Now())
	now := time.Now()
	for pn := uint64(1); pn <= 5; pn++ {
		l.onPacketSent(&outgoingPacket{pn: pn, timeSent: now, size: 100, ackEliciting: true}, packetSpaceApplication)
	}
	var acked rangeSet
	acked.add(4) // pn=1 is kPacketThreshold (3) behind the largest acked, so it's lost
	l.onAckReceived(&acked, 0, packetSpaceApplication, now)

	var lost []frame
	l.drainLost(packetSpaceApplication, func(f frame) { lost = append(lost, f) })
	if len(l.lost[packetSpaceApplication]) != 0 {
		t.Fatalf("drainLost should have emptied the lost queue, got %d left", len(l.lost[packetSpaceApplication]))
	}
	for _, pn := range []uint64{2, 3, 5} {
		found := false
		for _, pkt := range l.sent[packetSpaceApplication] {
			if pkt.pn == pn {
				found = true
			}
		}
		if !found {
			t.Errorf("pn=%d should still be outstanding (not lost, not acked)", pn)
		}
	}
}

func TestProbeTimeoutGrowsWithBackoff(t *testing.T) {
	var l lossRecovery
	l.init(time.Now())
	l.updateRTT(50*time.Millisecond, 0)
	base := l.probeTimeout()
	l.probes = 1
	backedOff := l.probeTimeout()
	if backedOff <= base {
		t.Fatalf("probeTimeout after a PTO should back off: base=%v, after=%v", base, backedOff)
	}
}
