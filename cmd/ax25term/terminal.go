package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
	"github.com/kc3smw/ax25term/internal/ax25term/link"
	"github.com/kc3smw/ax25term/internal/ax25term/sessionlog"
)

// stdioTerminal is the thin front end of spec §6/§1: it owns the TTY,
// echoes received text, prints status lines, and answers the one bit of
// terminal state the core asks about (a pager prompt pending), which is
// always false here since this front end never pages. It also
// mirrors everything it prints to a session-log file, per §6
// "Persistent state".
type stdioTerminal struct {
	out *bufio.Writer
	in  *bufio.Reader
	log *os.File

	mu sync.Mutex
}

func newStdioTerminal() *stdioTerminal {
	t := &stdioTerminal{
		out: bufio.NewWriter(os.Stdout),
		in:  bufio.NewReader(os.Stdin),
	}
	name := sessionlog.Name(time.Now())
	if f, err := os.Create(name); err == nil {
		t.log = f
	} else {
		fmt.Fprintln(os.Stderr, "ax25term: could not open session log:", err)
	}
	return t
}

func (t *stdioTerminal) tee(s string) {
	t.out.WriteString(s)
	t.out.Flush()
	if t.log != nil {
		t.log.WriteString(s)
	}
}

func (t *stdioTerminal) OnRx(text []byte, source ax25.Callsign, pid byte) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if source.Base != "" {
		t.tee(fmt.Sprintf("%s> ", source))
	}
	t.tee(string(text))
}

func (t *stdioTerminal) OnStatus(kind link.StatusKind, detail string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tee(fmt.Sprintf("*** %s: %s\n", kind, detail))
}

func (t *stdioTerminal) NextInput() (string, bool) {
	line, err := t.in.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return trimEOL(line), true
		}
		return "", false
	}
	return trimEOL(line), true
}

// PagerPending always reports false: this front end writes straight
// through to the TTY and never holds a page waiting on a keypress.
func (t *stdioTerminal) PagerPending() bool { return false }

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
