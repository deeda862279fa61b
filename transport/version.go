package transport

// Pinned QUIC versions (IETF draft family) and version negotiation.
//
// Per the Open Questions resolution (see SPEC_FULL.md §9), this
// implementation pins to a single negotiated draft version for Retry
// integrity-tag purposes, but accepts the small range of drafts below during
// version negotiation so a peer advertising an older draft can still be
// told what we support.
const (
	VersionNegotiation uint32 = 0x00000000
	DraftVersion1      uint32 = 0xff00001d // the version this endpoint prefers and pins Retry to
)

// supportedVersions lists every draft version this endpoint will agree to
// speak, most preferred first.
var supportedVersions = []uint32{
	DraftVersion1,
	0xff00001c,
	0xff00001b,
	0xff000017,
}

func versionSupported(v uint32) bool {
	for _, sv := range supportedVersions {
		if sv == v {
			return true
		}
	}
	return false
}

func preferredVersion() uint32 {
	return supportedVersions[0]
}
