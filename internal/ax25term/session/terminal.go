// Package session implements the session dispatcher (L4): it couples
// user input and inbound decoded frames, exposes connect/disconnect/
// send-line/send-unproto operations to the terminal layer, pauses
// keepalives while a pager is pending, and buffers user input during
// handshake (spec §4.4).
package session

import (
	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
	"github.com/kc3smw/ax25term/internal/ax25term/link"
)

// Terminal is the narrow upstream interface of spec §6: the TTY front
// end, history, ANSI coloring, pager-prompt detection and session
// logging all live on the other side of this interface and are outside
// THE CORE.
type Terminal interface {
	// OnRx delivers one I-frame info field or UI frame to the terminal.
	OnRx(text []byte, source ax25.Callsign, pid byte)

	// OnStatus reports a link-level event.
	OnStatus(kind link.StatusKind, detail string)

	// NextInput blocks for the next line of user input. ok is false once
	// the terminal has no more input to offer (EOF / quit).
	NextInput() (line string, ok bool)

	// PagerPending is polled before each T3 keepalive fire.
	PagerPending() bool
}
