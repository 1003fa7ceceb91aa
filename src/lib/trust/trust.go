package trust

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

type MaskLevel int

const (
	Nothing   MaskLevel = 0x0
	ErrorMask MaskLevel = 0x1
	WarnMask  MaskLevel = 0x2
	InfoMask  MaskLevel = 0x4
	DebugMask MaskLevel = 0x8
	StatsMask MaskLevel = 0x10
	fatalMask MaskLevel = 0x80
)

var level = fatalMask | ErrorMask | WarnMask | InfoMask

var backend = newBackend(os.Stderr)

var halt = func(code int) { os.Exit(code) }

func newBackend(w io.Writer) *log.Logger {
	l := log.New()
	l.SetOutput(w)
	l.SetLevel(log.TraceLevel) // masks do the filtering
	l.SetFormatter(&log.TextFormatter{DisableTimestamp: true})
	return l
}

// SetLevel lets you set an error mask directly. You can pass in something like
// ErrorMask | DebugMask to control exactly what gets printed.  It returns the
// previous mask.
func SetLevel(mask MaskLevel) MaskLevel {
	if mask&0x1f == 0 {
		backend.Warn("trust.SetLevel is turning off log messages")
	}
	r := level & 0x1f
	level = (mask & 0x1f) | fatalMask
	return r
}

func Level() MaskLevel {
	return level
}

func LevelToString() string {
	var parts []string
	if level&ErrorMask > 0 {
		parts = append(parts, "error")
	}
	if level&WarnMask > 0 {
		parts = append(parts, "warn")
	}
	if level&InfoMask > 0 {
		parts = append(parts, "info")
	}
	if level&DebugMask > 0 {
		parts = append(parts, "debug")
	}
	if level&StatsMask > 0 {
		parts = append(parts, "stats")
	}
	return strings.Join(parts, " ")
}

// InitFromEnv reads the LOG environment variable. Each named level turns
// on itself and everything more severe; "trace" also turns on stats.
func InitFromEnv() {
	switch strings.ToLower(os.Getenv("LOG")) {
	case "error":
		SetLevel(ErrorMask)
	case "warn":
		SetLevel(ErrorMask | WarnMask)
	case "info":
		SetLevel(ErrorMask | WarnMask | InfoMask)
	case "debug":
		SetLevel(ErrorMask | WarnMask | InfoMask | DebugMask)
	case "trace":
		SetLevel(ErrorMask | WarnMask | InfoMask | DebugMask | StatsMask)
	default:
		level = fatalMask
	}
}

// SetOutput redirects all log output.
func SetOutput(w io.Writer) {
	backend.SetOutput(w)
}

// SetHaltHandler replaces what Fatalf does after logging. The previous handler
// is returned.
func SetHaltHandler(fn func(code int)) func(code int) {
	prev := halt
	halt = fn
	return prev
}

func logf(entry *log.Entry, l MaskLevel, format string, params ...interface{}) {
	if level&l == 0 {
		return
	}
	start := 0
	if l&StatsMask > 0 {
		s, ok := params[0].(string)
		if !ok {
			s = "unknown"
		}
		entry = entry.WithField("stats", s)
		start = 1
	}
	msg := strings.TrimSuffix(fmt.Sprintf(format, params[start:]...), "\n")
	switch {
	case l&fatalMask > 0, l&ErrorMask > 0:
		entry.Error(msg)
	case l&WarnMask > 0:
		entry.Warn(msg)
	case l&InfoMask > 0:
		entry.Info(msg)
	case l&DebugMask > 0:
		entry.Debug(msg)
	case l&StatsMask > 0:
		entry.Trace(msg)
	}
}

func root() *log.Entry {
	return log.NewEntry(backend)
}

//Fatalf prints the given log message (format + params) and then
//exits with the exitCode provided.  Fatalf is not maskable.
func Fatalf(exitCode int, format string, params ...interface{}) {
	logf(root().WithField("exit", exitCode), fatalMask, format, params...)
	halt(exitCode)
}

//Errorf prints the given log message (format + params) using the ErrorMask level.
func Errorf(format string, params ...interface{}) {
	logf(root(), ErrorMask, format, params...)
}

//Warnf prints the given log message (format + params) using the WarnMask level.
func Warnf(format string, params ...interface{}) {
	logf(root(), WarnMask, format, params...)
}

//Infof prints the given log message (format + params) using the InfoMask level.
func Infof(format string, params ...interface{}) {
	logf(root(), InfoMask, format, params...)
}

//Debugf prints the given log message (format + params) using the DebugMask level.
func Debugf(format string, params ...interface{}) {
	logf(root(), DebugMask, format, params...)
}

//Statsf prints the given log message (format + params) using the StatsMask level and
//takes an extra parameter that will be visible in the log message as the category
//of stats that is reported.
func Statsf(category string, format string, params ...interface{}) {
	logf(root(), StatsMask, format, append([]interface{}{category}, params...)...)
}

// Logger is the same set of leveled calls, tagged with the subsystem that
// produced them.
type Logger struct {
	subsystem string
}

func NewLogger(subsystem string) *Logger {
	return &Logger{subsystem: subsystem}
}

func (l *Logger) entry() *log.Entry {
	return root().WithField("subsystem", l.subsystem)
}

func (l *Logger) Errorf(format string, params ...interface{}) {
	logf(l.entry(), ErrorMask, format, params...)
}

func (l *Logger) Warnf(format string, params ...interface{}) {
	logf(l.entry(), WarnMask, format, params...)
}

func (l *Logger) Infof(format string, params ...interface{}) {
	logf(l.entry(), InfoMask, format, params...)
}

func (l *Logger) Debugf(format string, params ...interface{}) {
	logf(l.entry(), DebugMask, format, params...)
}

func (l *Logger) Statsf(category string, format string, params ...interface{}) {
	logf(l.entry(), StatsMask, format, append([]interface{}{category}, params...)...)
}
