// Package dictlog provides the loader's structured logging sink, scaled
// down from the teacher's ingest/log package: an RFC5424-framed writer with
// leveled Debug/Info/Warn/Error calls carrying structured-data parameters.
package dictlog

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	OFF Level = iota
	DEBUG
	INFO
	WARN
	ERROR
)

func (l Level) String() string {
	switch l {
	case OFF:
		return "OFF"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	}
	return "UNKNOWN"
}

func (l Level) priority() rfc5424.Priority {
	switch l {
	case DEBUG:
		return rfc5424.User | rfc5424.Debug
	case INFO:
		return rfc5424.User | rfc5424.Info
	case WARN:
		return rfc5424.User | rfc5424.Warning
	case ERROR:
		return rfc5424.User | rfc5424.Error
	}
	return rfc5424.User | rfc5424.Debug
}

// LevelFromString parses a config-file level string (dictcfg).
func LevelFromString(s string) (Level, error) {
	switch strings.ToUpper(s) {
	case "OFF":
		return OFF, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	}
	return OFF, errors.New("invalid log level: " + s)
}

const appName = "raddict"

var ErrNotOpen = errors.New("logger is not open")

// Logger is a minimal RFC5424 sink: one writer, one level, safe for
// concurrent use. Unlike the teacher's Logger it carries no relays and no
// raw-mode fallback — the loader only ever needs one destination.
type Logger struct {
	mtx  sync.Mutex
	wtr  io.Writer
	lvl  Level
	host string
}

// New wraps wtr at level lvl. A nil Logger is valid and every method on it
// is a silent no-op, so components may hold a *Logger field and log
// unconditionally without a nil check.
func New(wtr io.Writer, lvl Level) *Logger {
	host, _ := os.Hostname()
	return &Logger{wtr: wtr, lvl: lvl, host: host}
}

// NewDiscard returns a Logger that drops everything, for tests and
// library callers who don't want loader diagnostics.
func NewDiscard() *Logger {
	return New(io.Discard, OFF)
}

// SD builds a structured-data parameter, the dictlog equivalent of the
// teacher's log.KV.
func SD(name string, value string) rfc5424.SDParam {
	return rfc5424.SDParam{Name: name, Value: value}
}

func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam) { l.output(DEBUG, msg, sds...) }
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam)  { l.output(INFO, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam)  { l.output(WARN, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam) { l.output(ERROR, msg, sds...) }

func (l *Logger) output(lvl Level, msg string, sds ...rfc5424.SDParam) {
	if l == nil || l.lvl == OFF || lvl < l.lvl {
		return
	}
	m := rfc5424.Message{
		Priority:  lvl.priority(),
		Timestamp: time.Now(),
		Hostname:  l.host,
		AppName:   appName,
		Message:   []byte(msg),
	}
	if len(sds) > 0 {
		m.StructuredData = []rfc5424.StructuredData{{ID: "dictload@1", Parameters: sds}}
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return
	}
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.wtr.Write(append(b, '\n'))
}
