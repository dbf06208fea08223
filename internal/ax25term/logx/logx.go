// Package logx wraps charmbracelet/log for the engine's ambient logging,
// replacing the teacher's hand-rolled dw_printf/text_color_set pair with
// the structured-logging library the teacher's own go.mod designates.
package logx

import (
	"encoding/hex"
	"os"

	"github.com/charmbracelet/log"
)

// Logger is the engine-wide logging handle. Debug mode (spec §6 "/debug")
// toggles its level between Info and Debug.
type Logger struct {
	*log.Logger
	debug bool
}

// New builds a Logger writing to stderr with the given callsign as a
// prefix, so multi-instance test runs can tell sessions apart in logs.
func New(prefix string) *Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		Prefix:          prefix,
		ReportTimestamp: true,
	})
	return &Logger{Logger: l}
}

// SetDebug toggles frame-tracing verbosity, per spec §6 "/debug".
func (l *Logger) SetDebug(on bool) {
	l.debug = on
	if on {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
}

// Debugging reports whether frame-trace dumping is currently enabled.
func (l *Logger) Debugging() bool { return l.debug }

// TraceFrame hex-dumps a transmitted or received raw AX.25 frame, per
// spec §7: "Debug mode also dumps the hex representation of each
// transmitted and received frame."
func (l *Logger) TraceFrame(direction string, raw []byte) {
	if !l.debug {
		return
	}
	l.Debug("frame", "dir", direction, "hex", hex.EncodeToString(raw), "len", len(raw))
}
