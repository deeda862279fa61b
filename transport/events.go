package transport

// EventType identifies the kind of Event a Conn reports through Events.
type EventType int

const (
	// EventStream indicates a stream has data available to read.
	EventStream EventType = iota + 1
	// EventStreamReset indicates the peer reset a stream (RESET_STREAM).
	EventStreamReset
	// EventStreamStop indicates the peer asked to stop receiving on a
	// stream (STOP_SENDING).
	EventStreamStop
	// EventStreamComplete indicates all data sent on a stream has been
	// acknowledged by the peer.
	EventStreamComplete
	// EventNewToken indicates the peer sent a NEW_TOKEN frame; retrieve it
	// with Conn.ReceivedToken.
	EventNewToken
)

func (t EventType) String() string {
	switch t {
	case EventStream:
		return "stream"
	case EventStreamReset:
		return "stream_reset"
	case EventStreamStop:
		return "stream_stop"
	case EventStreamComplete:
		return "stream_complete"
	case EventNewToken:
		return "new_token"
	default:
		return "unknown"
	}
}

// Event is a notification surfaced from a Conn to its application, queued
// during packet processing and drained via Conn.Events (spec.md §4.5 App
// Event Queue).
type Event struct {
	Type      EventType
	StreamID  uint64
	ErrorCode uint64
}

func newStreamRecvEvent(streamID uint64) Event {
	return Event{Type: EventStream, StreamID: streamID}
}

func newStreamResetEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamReset, StreamID: streamID, ErrorCode: errorCode}
}

func newStreamStopEvent(streamID, errorCode uint64) Event {
	return Event{Type: EventStreamStop, StreamID: streamID, ErrorCode: errorCode}
}

func newStreamCompleteEvent(streamID uint64) Event {
	return Event{Type: EventStreamComplete, StreamID: streamID}
}
