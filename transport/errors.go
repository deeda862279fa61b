package transport

import "fmt"

// TransportError is a QUIC transport error code as defined by RFC9000 §20.1.
type TransportError uint64

// Transport error codes.
const (
	NoError                  TransportError = 0x0
	InternalError            TransportError = 0x1
	ConnectionRefused        TransportError = 0x2
	FlowControlError         TransportError = 0x3
	StreamLimitError         TransportError = 0x4
	StreamStateError         TransportError = 0x5
	FinalSizeError           TransportError = 0x6
	FrameEncodingError       TransportError = 0x7
	TransportParameterError  TransportError = 0x8
	ConnectionIDLimitError   TransportError = 0x9
	ProtocolViolation        TransportError = 0xa
	InvalidToken             TransportError = 0xb
	ApplicationErrorCode     TransportError = 0xc
	CryptoBufferExceeded     TransportError = 0xd
	KeyUpdateError           TransportError = 0xe
	AEADLimitReached         TransportError = 0xf
	NoViablePath             TransportError = 0x10
	cryptoErrorStart         TransportError = 0x100 // 0x100-0x1ff: TLS alert offset
)

func (e TransportError) String() string {
	switch e {
	case NoError:
		return "NO_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case ConnectionRefused:
		return "CONNECTION_REFUSED"
	case FlowControlError:
		return "FLOW_CONTROL_ERROR"
	case StreamLimitError:
		return "STREAM_LIMIT_ERROR"
	case StreamStateError:
		return "STREAM_STATE_ERROR"
	case FinalSizeError:
		return "FINAL_SIZE_ERROR"
	case FrameEncodingError:
		return "FRAME_ENCODING_ERROR"
	case TransportParameterError:
		return "TRANSPORT_PARAMETER_ERROR"
	case ConnectionIDLimitError:
		return "CONNECTION_ID_LIMIT_ERROR"
	case ProtocolViolation:
		return "PROTOCOL_VIOLATION"
	case InvalidToken:
		return "INVALID_TOKEN"
	case ApplicationErrorCode:
		return "APPLICATION_ERROR"
	case CryptoBufferExceeded:
		return "CRYPTO_BUFFER_EXCEEDED"
	case KeyUpdateError:
		return "KEY_UPDATE_ERROR"
	case AEADLimitReached:
		return "AEAD_LIMIT_REACHED"
	case NoViablePath:
		return "NO_VIABLE_PATH"
	default:
		if e >= cryptoErrorStart && e < cryptoErrorStart+0x100 {
			return fmt.Sprintf("CRYPTO_ERROR(0x%x)", uint64(e-cryptoErrorStart))
		}
		return fmt.Sprintf("UNKNOWN_ERROR(0x%x)", uint64(e))
	}
}

func errorCodeString(code uint64) string {
	return TransportError(code).String()
}

// cryptoError wraps a TLS alert as a transport error per RFC9001 §4.8.
func cryptoError(alert uint8) TransportError {
	return cryptoErrorStart + TransportError(alert)
}

// Error is the error type returned by connection and codec operations.
//
// It wraps a transport error code so callers can recover the wire code with
// errors.As, mirroring how the rest of the standard library structures
// sentinel-ish errors.
type Error struct {
	Code   TransportError
	Frame  uint64 // offending frame type, if any
	Reason string
}

func newError(code TransportError, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Reason)
}

// ApplicationError is a close error raised by the application rather than
// the transport itself (RFC9000 §10.2 application CONNECTION_CLOSE).
type ApplicationError struct {
	Code   uint64
	Reason string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("application error 0x%x: %s", e.Code, e.Reason)
}

// HandshakeError wraps a TLS alert surfaced by the crypto/tls QUIC driver.
type HandshakeError struct {
	Alert uint8
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("tls handshake failed: alert %d", e.Alert)
}

// Sentinel errors for control-flow conditions that are not wire errors.
var (
	errInvalidToken        = newError(InvalidToken, "invalid retry/new token")
	errShortBuffer         = newError(InternalError, "short buffer")
	errFlowControl         = newError(FlowControlError, "flow control limit exceeded")
	errStreamEOF           = fmt.Errorf("quic: stream closed")
	errConnectionIsClosed  = fmt.Errorf("quic: connection is closed")
	errNoVersionSpecified  = fmt.Errorf("quic: no version is specified")
	errVersionNegotiation  = fmt.Errorf("quic: version negotiation failed")
)

// NextVersion signals the caller (client-side only) that it must retry the
// handshake at a different version after receiving a VERSION_NEGOTIATION
// packet. It is control flow, not a protocol error.
type NextVersion struct {
	Version uint32
}

func (e *NextVersion) Error() string {
	return fmt.Sprintf("quic: retry at version 0x%x", e.Version)
}
