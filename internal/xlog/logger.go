// Package xlog provides the zerolog-backed Logger implementation shared by
// the hevc and mov packages, so both can accept an ambient logger through
// a functional option without depending on zerolog directly.
package xlog

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger behind the Debugf/Warnf/Errorf surface the
// hevc and mov packages' ReaderOption/DemuxerOption expect.
type Logger struct {
	zl zerolog.Logger
}

// New builds a console-formatted Logger writing to w, defaulting to stderr.
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}
	return &Logger{zl: zerolog.New(console).With().Timestamp().Logger()}
}

// NewJSON builds a Logger emitting structured JSON lines, suitable for
// production log aggregation.
func NewJSON(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return &Logger{zl: zerolog.New(w).With().Timestamp().Logger()}
}

func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}
