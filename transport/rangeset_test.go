package transport

import "testing"

func TestRangeSetAddMergesAdjacent(t *testing.T) {
	var s rangeSet
	s.add(5)
	s.add(6)
	s.add(4)
	if len(s.ranges) != 1 {
		t.Fatalf("expected adjacent inserts to merge into one range, got %v", s.ranges)
	}
	if s.ranges[0] != (pnRange{low: 4, high: 6}) {
		t.Fatalf("got range %v, want [4,6]", s.ranges[0])
	}
}

func TestRangeSetAddKeepsDisjointRangesSeparate(t *testing.T) {
	var s rangeSet
	s.add(10)
	s.add(1)
	if len(s.ranges) != 2 {
		t.Fatalf("expected two disjoint ranges, got %v", s.ranges)
	}
	// descending order: largest range first
	if s.ranges[0].low != 10 || s.ranges[1].low != 1 {
		t.Fatalf("expected descending order, got %v", s.ranges)
	}
}

func TestRangeSetAddDuplicateIsNoop(t *testing.T) {
	var s rangeSet
	s.add(3)
	s.add(3)
	if len(s.ranges) != 1 || s.ranges[0] != (pnRange{low: 3, high: 3}) {
		t.Fatalf("duplicate add changed the range set: %v", s.ranges)
	}
}

func TestRangeSetMergesAcrossGapClosure(t *testing.T) {
	var s rangeSet
	s.add(1)
	s.add(3)
	s.add(2) // should merge both neighbours into a single [1,3] range
	if len(s.ranges) != 1 || s.ranges[0] != (pnRange{low: 1, high: 3}) {
		t.Fatalf("expected [1,3] after closing the gap, got %v", s.ranges)
	}
}

func TestRangeSetContains(t *testing.T) {
	var s rangeSet
	for _, pn := range []uint64{1, 2, 3, 10, 11} {
		s.add(pn)
	}
	for _, pn := range []uint64{1, 2, 3, 10, 11} {
		if !s.contains(pn) {
			t.Errorf("contains(%d) = false, want true", pn)
		}
	}
	for _, pn := range []uint64{0, 4, 9, 12} {
		if s.contains(pn) {
			t.Errorf("contains(%d) = true, want false", pn)
		}
	}
}

func TestRangeSetRemoveUntil(t *testing.T) {
	var s rangeSet
	for _, pn := range []uint64{1, 2, 3, 7, 8} {
		s.add(pn)
	}
	s.removeUntil(2)
	if s.contains(1) || s.contains(2) {
		t.Fatalf("removeUntil(2) should drop packet numbers <= 2: %v", s.ranges)
	}
	if !s.contains(3) || !s.contains(7) || !s.contains(8) {
		t.Fatalf("removeUntil(2) dropped packet numbers it shouldn't have: %v", s.ranges)
	}
}

func TestRangeSetEmptyAndLargest(t *testing.T) {
	var s rangeSet
	if !s.empty() {
		t.Fatal("fresh rangeSet should be empty")
	}
	if s.largest() != invalidPacketNumber {
		t.Fatalf("largest() on empty set = %d, want invalidPacketNumber", s.largest())
	}
	s.add(42)
	if s.empty() {
		t.Fatal("rangeSet with one element should not be empty")
	}
	if s.largest() != 42 {
		t.Fatalf("largest() = %d, want 42", s.largest())
	}
}
