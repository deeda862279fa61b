package quic

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/xid"
	"github.com/sirupsen/logrus"

	"github.com/jvanbruegge/quic/transport"
)

type logLevel int

// Log levels
const (
	levelOff logLevel = iota
	levelError
	levelInfo
	levelDebug
	levelTrace
)

func (l logLevel) toLogrus() logrus.Level {
	switch l {
	case levelError:
		return logrus.ErrorLevel
	case levelInfo:
		return logrus.InfoLevel
	case levelDebug:
		return logrus.DebugLevel
	case levelTrace:
		return logrus.TraceLevel
	default:
		return logrus.PanicLevel // above any level logrus will ever emit
	}
}

// logger turns on qlog-style wire tracing for connections at or above
// levelDebug, writing one JSON object per trace event (qlog's actual
// wire format, see transport/log.go) rather than the ad hoc text line
// the events happened to be formatted as before. Operational messages
// (endpoint.go, conn.go) go through the package-level logrus logger
// unconditionally; SetLogger's level only gates the much chattier
// per-packet/per-frame trace stream.
type logger struct {
	mu   sync.Mutex
	qlog *logrus.Logger
}

func newLogger() *logger {
	qlog := logrus.New()
	qlog.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	qlog.SetLevel(logrus.PanicLevel)
	qlog.Out = io.Discard
	return &logger{qlog: qlog}
}

func (s *logger) setOutput(level logLevel, w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.qlog.SetLevel(level.toLogrus())
	s.qlog.SetOutput(w)
}

// attachLogger wires a connection's qlog event stream into the shared
// qlog logger, tagged with a per-connection trace ID so concurrent
// connections' interleaved JSON lines can be split back apart by tools
// like `jq 'select(.trace=="...")'`.
func (s *logger) attachLogger(c *remoteConn) {
	if s.qlog.GetLevel() < logrus.DebugLevel {
		return
	}
	entry := s.qlog.WithFields(logrus.Fields{
		"trace": xid.New().String(),
		"addr":  fmt.Sprint(c.addr),
		"cid":   fmt.Sprintf("%x", c.scid),
	})
	c.conn.OnLogEvent(func(e transport.LogEvent) {
		logQlogEvent(entry, e)
	})
}

func (s *logger) detachLogger(c *remoteConn) {
	c.conn.OnLogEvent(nil)
}

func logQlogEvent(entry *logrus.Entry, e transport.LogEvent) {
	fields := make(logrus.Fields, len(e.Fields)+1)
	fields["qlog_time"] = e.Time.Format(time.RFC3339)
	for _, f := range e.Fields {
		if f.Str != "" {
			fields[f.Key] = f.Str
		} else {
			fields[f.Key] = f.Num
		}
	}
	entry.WithFields(fields).Debug(e.Type)
}
