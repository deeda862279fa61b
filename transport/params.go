package transport

import "time"

// Transport parameter IDs, RFC9000 §18.2.
const (
	paramOriginalDestinationCID     = 0x00
	paramMaxIdleTimeout             = 0x01
	paramStatelessResetToken        = 0x02
	paramMaxUDPPayloadSize          = 0x03
	paramInitialMaxData             = 0x04
	paramInitialMaxStreamDataBidiLocal  = 0x05
	paramInitialMaxStreamDataBidiRemote = 0x06
	paramInitialMaxStreamDataUni    = 0x07
	paramInitialMaxStreamsBidi      = 0x08
	paramInitialMaxStreamsUni       = 0x09
	paramAckDelayExponent           = 0x0a
	paramMaxAckDelay                = 0x0b
	paramDisableActiveMigration     = 0x0c
	paramActiveConnectionIDLimit    = 0x0e
	paramInitialSourceCID           = 0x0f
	paramRetrySourceCID             = 0x10
)

// Default values, RFC9000 §18.2.
const (
	DefaultAckDelayExponent        = 3
	DefaultMaxUDPPayloadSize       = 65527
	DefaultActiveConnectionIDLimit = 2
)

// DefaultMaxAckDelay is the default peer-assumed ACK delay, RFC9000 §18.2.
const DefaultMaxAckDelay = 25 * time.Millisecond

// Parameters holds the QUIC transport parameters exchanged during the
// handshake, spec.md §6.
type Parameters struct {
	OriginalDestinationCID []byte
	MaxIdleTimeout         time.Duration
	StatelessResetToken    []byte
	MaxUDPPayloadSize      uint64
	InitialMaxData         uint64

	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64

	InitialMaxStreamsBidi uint64
	InitialMaxStreamsUni  uint64

	AckDelayExponent uint64
	MaxAckDelay      time.Duration

	DisableActiveMigration bool
	ActiveConnectionIDLimit uint64

	InitialSourceCID []byte
	RetrySourceCID   []byte
}

// NewDefaultParameters returns the parameters this endpoint advertises
// absent explicit configuration.
func NewDefaultParameters() Parameters {
	return Parameters{
		MaxIdleTimeout:          30 * time.Second,
		MaxUDPPayloadSize:       DefaultMaxUDPPayloadSize,
		InitialMaxData:          1 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 18,
		InitialMaxStreamDataBidiRemote: 1 << 18,
		InitialMaxStreamDataUni:        1 << 18,
		InitialMaxStreamsBidi:   100,
		InitialMaxStreamsUni:    100,
		AckDelayExponent:        DefaultAckDelayExponent,
		MaxAckDelay:             DefaultMaxAckDelay,
		ActiveConnectionIDLimit: DefaultActiveConnectionIDLimit,
	}
}

func putParamBytes(b []byte, id uint64, v []byte) int {
	off := putVarint(b, id)
	off += putVarint(b[off:], uint64(len(v)))
	off += copy(b[off:], v)
	return off
}

func putParamVarint(b []byte, id, v uint64) int {
	off := putVarint(b, id)
	off += putVarint(b[off:], uint64(varintLen(v)))
	off += putVarint(b[off:], v)
	return off
}

func paramVarintLen(id, v uint64) int {
	return varintLen(id) + varintLen(uint64(varintLen(v))) + varintLen(v)
}

func paramBytesLen(id uint64, v []byte) int {
	return varintLen(id) + varintLen(uint64(len(v))) + len(v)
}

// Marshal encodes the parameters as the TLS extension body, RFC9000 §18.
// Parameters that must not be sent by a client (OriginalDestinationCID,
// StatelessResetToken, RetrySourceCID) are only emitted
// when isClient is false.
func (p *Parameters) Marshal(isClient bool) []byte {
	size := 0
	size += paramVarintLen(paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	size += paramVarintLen(paramMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	size += paramVarintLen(paramInitialMaxData, p.InitialMaxData)
	size += paramVarintLen(paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	size += paramVarintLen(paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	size += paramVarintLen(paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	size += paramVarintLen(paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	size += paramVarintLen(paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	size += paramVarintLen(paramAckDelayExponent, p.AckDelayExponent)
	size += paramVarintLen(paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	size += paramVarintLen(paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	if p.DisableActiveMigration {
		size += paramBytesLen(paramDisableActiveMigration, nil)
	}
	if len(p.InitialSourceCID) > 0 {
		size += paramBytesLen(paramInitialSourceCID, p.InitialSourceCID)
	}
	if !isClient {
		if len(p.OriginalDestinationCID) > 0 {
			size += paramBytesLen(paramOriginalDestinationCID, p.OriginalDestinationCID)
		}
		if len(p.StatelessResetToken) > 0 {
			size += paramBytesLen(paramStatelessResetToken, p.StatelessResetToken)
		}
		if len(p.RetrySourceCID) > 0 {
			size += paramBytesLen(paramRetrySourceCID, p.RetrySourceCID)
		}
	}

	b := make([]byte, size)
	off := 0
	off += putParamVarint(b[off:], paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	off += putParamVarint(b[off:], paramMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	off += putParamVarint(b[off:], paramInitialMaxData, p.InitialMaxData)
	off += putParamVarint(b[off:], paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	off += putParamVarint(b[off:], paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	off += putParamVarint(b[off:], paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	off += putParamVarint(b[off:], paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	off += putParamVarint(b[off:], paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	off += putParamVarint(b[off:], paramAckDelayExponent, p.AckDelayExponent)
	off += putParamVarint(b[off:], paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	off += putParamVarint(b[off:], paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	if p.DisableActiveMigration {
		off += putParamBytes(b[off:], paramDisableActiveMigration, nil)
	}
	if len(p.InitialSourceCID) > 0 {
		off += putParamBytes(b[off:], paramInitialSourceCID, p.InitialSourceCID)
	}
	if !isClient {
		if len(p.OriginalDestinationCID) > 0 {
			off += putParamBytes(b[off:], paramOriginalDestinationCID, p.OriginalDestinationCID)
		}
		if len(p.StatelessResetToken) > 0 {
			off += putParamBytes(b[off:], paramStatelessResetToken, p.StatelessResetToken)
		}
		if len(p.RetrySourceCID) > 0 {
			off += putParamBytes(b[off:], paramRetrySourceCID, p.RetrySourceCID)
		}
	}
	return b[:off]
}

// Unmarshal decodes the TLS extension body sent by the peer.
func (p *Parameters) Unmarshal(b []byte) error {
	*p = Parameters{
		AckDelayExponent: DefaultAckDelayExponent,
		MaxAckDelay:      DefaultMaxAckDelay,
		MaxUDPPayloadSize: DefaultMaxUDPPayloadSize,
		ActiveConnectionIDLimit: DefaultActiveConnectionIDLimit,
	}
	for len(b) > 0 {
		var id, length uint64
		n := getVarint(b, &id)
		if n == 0 {
			return newError(TransportParameterError, "malformed id")
		}
		b = b[n:]
		n = getVarint(b, &length)
		if n == 0 {
			return newError(TransportParameterError, "malformed length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return newError(TransportParameterError, "truncated value")
		}
		val := b[:length]
		b = b[length:]
		if err := p.setParam(id, val); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parameters) setParam(id uint64, val []byte) error {
	asVarint := func() (uint64, error) {
		var v uint64
		n := getVarint(val, &v)
		if n == 0 || n != len(val) {
			return 0, newError(TransportParameterError, "malformed varint parameter")
		}
		return v, nil
	}
	switch id {
	case paramOriginalDestinationCID:
		p.OriginalDestinationCID = append([]byte(nil), val...)
	case paramMaxIdleTimeout:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxIdleTimeout = time.Duration(v) * time.Millisecond
	case paramStatelessResetToken:
		if len(val) != 16 {
			return newError(TransportParameterError, "bad reset token length")
		}
		p.StatelessResetToken = append([]byte(nil), val...)
	case paramMaxUDPPayloadSize:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxUDPPayloadSize = v
	case paramInitialMaxData:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxData = v
	case paramInitialMaxStreamDataBidiLocal:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiLocal = v
	case paramInitialMaxStreamDataBidiRemote:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiRemote = v
	case paramInitialMaxStreamDataUni:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataUni = v
	case paramInitialMaxStreamsBidi:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamsBidi = v
	case paramInitialMaxStreamsUni:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.InitialMaxStreamsUni = v
	case paramAckDelayExponent:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.AckDelayExponent = v
	case paramMaxAckDelay:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.MaxAckDelay = time.Duration(v) * time.Millisecond
	case paramDisableActiveMigration:
		p.DisableActiveMigration = true
	case paramActiveConnectionIDLimit:
		v, err := asVarint()
		if err != nil {
			return err
		}
		p.ActiveConnectionIDLimit = v
	case paramInitialSourceCID:
		p.InitialSourceCID = append([]byte(nil), val...)
	case paramRetrySourceCID:
		p.RetrySourceCID = append([]byte(nil), val...)
	default:
		// Unknown parameters are ignored per RFC9000 §7.4.
	}
	return nil
}
