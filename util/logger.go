// Package util provides low-level helpers shared by all other packages.
package util

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// LogLevel controls output verbosity.
type LogLevel int

const (
	LogQuiet   LogLevel = 0
	LogNormal  LogLevel = 1
	LogVerbose LogLevel = 2
	LogDebug   LogLevel = 3
)

// Logger writes levelled messages to stderr through a zerolog console
// writer.  The verbosity gate is ours; zerolog only formats and writes.
//
// SetOutput and SetTimestamps must be called before the logger is
// shared between goroutines.
type Logger struct {
	level      LogLevel
	output     io.Writer
	timestamps bool
	fields     []logField
	zl         zerolog.Logger
}

type logField struct {
	key   string
	value interface{}
}

// NewLogger returns a Logger that prints messages at or below the given
// verbosity (0 = quiet, 1 = normal, 2 = verbose, 3 = debug).
func NewLogger(verbosity int) *Logger {
	l := &Logger{
		level:      LogLevel(verbosity),
		output:     os.Stderr,
		timestamps: verbosity >= 3, // auto-enable timestamps in debug mode
	}
	l.build()
	return l
}

// SetTimestamps enables or disables timestamp prefixes.
func (l *Logger) SetTimestamps(on bool) {
	l.timestamps = on
	l.build()
}

// SetOutput overrides the output writer (default: os.Stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	l.build()
}

// With returns a child logger that attaches key=value to every line.
func (l *Logger) With(key string, value interface{}) *Logger {
	child := &Logger{
		level:      l.level,
		output:     l.output,
		timestamps: l.timestamps,
		fields:     append(append([]logField(nil), l.fields...), logField{key, value}),
	}
	child.build()
	return child
}

// Info prints when verbosity ≥ 1.  Prefixed with [INF].
func (l *Logger) Info(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.zl.Info().Msg(fmt.Sprintf(format, args...))
	}
}

// Warn prints when verbosity ≥ 1.  Prefixed with [WRN].
func (l *Logger) Warn(format string, args ...interface{}) {
	if l.level >= LogNormal {
		l.zl.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

// Verbose prints when verbosity ≥ 2.  Prefixed with [VRB].
func (l *Logger) Verbose(format string, args ...interface{}) {
	if l.level >= LogVerbose {
		l.zl.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

// Debug prints when verbosity ≥ 3.  Prefixed with [DBG].
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.level >= LogDebug {
		l.zl.Trace().Msg(fmt.Sprintf(format, args...))
	}
}

// Error always prints regardless of verbosity.  Prefixed with [ERR].
func (l *Logger) Error(format string, args ...interface{}) {
	l.zl.Error().Msg(fmt.Sprintf(format, args...))
}

func (l *Logger) build() {
	cw := zerolog.ConsoleWriter{
		Out:         zerolog.SyncWriter(l.output),
		NoColor:     true,
		TimeFormat:  "15:04:05.000",
		FormatLevel: formatLevel,
	}
	if !l.timestamps {
		cw.PartsExclude = []string{zerolog.TimestampFieldName}
	}

	ctx := zerolog.New(cw).Level(zerolog.TraceLevel).With()
	if l.timestamps {
		ctx = ctx.Timestamp()
	}
	for _, f := range l.fields {
		ctx = ctx.Interface(f.key, f.value)
	}
	l.zl = ctx.Logger()
}

func formatLevel(i interface{}) string {
	switch i {
	case zerolog.LevelErrorValue:
		return "[ERR]"
	case zerolog.LevelWarnValue:
		return "[WRN]"
	case zerolog.LevelInfoValue:
		return "[INF]"
	case zerolog.LevelDebugValue:
		return "[VRB]"
	case zerolog.LevelTraceValue:
		return "[DBG]"
	default:
		return fmt.Sprintf("[%v]", i)
	}
}
