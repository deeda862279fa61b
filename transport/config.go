package transport

import "crypto/tls"

// Config carries everything a Conn needs at construction time: the QUIC
// version to speak, the local transport parameters to advertise, and the
// TLS configuration driving the handshake (spec.md §6 "External
// Interfaces").
type Config struct {
	Version uint32
	Params  Parameters
	TLS     *tls.Config

	// MaxUDPPayloadSize is set by NewConfig but is not read by Conn:
	// outgoing datagram size follows the peer's max_udp_payload_size
	// transport parameter (see Conn.maxPacketSize), and the initial
	// congestion window is sized from MinInitialPacketSize.
	MaxUDPPayloadSize uint64
}

// NewConfig returns a Config with spec-default transport parameters and
// the endpoint's preferred QUIC version.
func NewConfig(tlsConfig *tls.Config) *Config {
	return &Config{
		Version:           preferredVersion(),
		Params:            NewDefaultParameters(),
		TLS:               tlsConfig,
		MaxUDPPayloadSize: DefaultMaxUDPPayloadSize,
	}
}
