package transport

import "bytes"

// cidEntry is one entry in a connection-ID table: either a CID we issued to
// the peer (MyCIDs) or one the peer issued to us (PeerCIDs), spec.md §3.
type cidEntry struct {
	seq        uint64
	id         []byte
	resetToken [16]byte
}

// cidSet is an endpoint's view of one direction of CID issuance. Exactly
// one entry is "active" at a time (the one currently in use on the wire).
type cidSet struct {
	entries   []cidEntry
	activeSeq uint64
}

func (s *cidSet) seed(id []byte, token [16]byte) {
	s.entries = append(s.entries[:0], cidEntry{seq: 0, id: append([]byte(nil), id...), resetToken: token})
	s.activeSeq = 0
}

func (s *cidSet) add(seq uint64, id []byte, token [16]byte) {
	for _, e := range s.entries {
		if e.seq == seq {
			return
		}
	}
	s.entries = append(s.entries, cidEntry{seq: seq, id: append([]byte(nil), id...), resetToken: token})
}

func (s *cidSet) retire(seq uint64) {
	for i, e := range s.entries {
		if e.seq == seq {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *cidSet) active() *cidEntry {
	for i, e := range s.entries {
		if e.seq == s.activeSeq {
			return &s.entries[i]
		}
	}
	if len(s.entries) > 0 {
		return &s.entries[0]
	}
	return nil
}

func (s *cidSet) replaceActive(dcid []byte) {
	for i, e := range s.entries {
		if bytes.Equal(e.id, dcid) {
			s.activeSeq = e.seq
			return
		}
	}
}

func (s *cidSet) contains(id []byte) bool {
	for _, e := range s.entries {
		if bytes.Equal(e.id, id) {
			return true
		}
	}
	return false
}

// retireBelow drops every entry with seq < upTo, invoking onRetire for
// each one (RFC9000 §5.1.2's retire_prior_to handling). Conn uses it on
// the peer's CIDs when a NEW_CONNECTION_ID carries retire_prior_to; a
// peer's RETIRE_CONNECTION_ID for one of our CIDs goes through retire.
func (s *cidSet) retireBelow(upTo uint64, onRetire func(seq uint64)) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.seq < upTo {
			onRetire(e.seq)
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
}

// resetTokenArray copies a variable-length stateless-reset token (absent
// for a client, which never sends one) into the fixed-size form cidEntry
// stores it in.
func resetTokenArray(token []byte) [16]byte {
	var out [16]byte
	copy(out[:], token)
	return out
}
