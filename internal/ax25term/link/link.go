package link

import (
	"fmt"
	"time"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
	"github.com/kc3smw/ax25term/internal/ax25term/config"
)

// Delivery is one payload handed up to the terminal's on_rx, per spec §6:
// "on_rx(text_bytes, source_callsign, pid)".
type Delivery struct {
	Info   []byte
	Source ax25.Callsign
	PID    byte
}

// Outcome is everything a single Link method call produces: frames to
// transmit (in order), payloads delivered to the terminal, and
// on_status events to surface.
type Outcome struct {
	Frames    []ax25.Frame
	Delivered []Delivery
	Status    []StatusEvent
}

func (o *Outcome) emit(f ax25.Frame) { o.Frames = append(o.Frames, f) }

func (o *Outcome) deliver(info []byte, source ax25.Callsign, pid byte) {
	o.Delivered = append(o.Delivered, Delivery{Info: info, Source: source, PID: pid})
}

func (o *Outcome) status(k StatusKind, d string) {
	o.Status = append(o.Status, StatusEvent{Kind: k, Detail: d})
}

type timer struct {
	running  bool
	deadline time.Time
}

type pending struct {
	ns   byte
	info []byte
}

// Link owns the LAPB state for one peer (spec §3/§4.3). It holds no
// goroutines and does no I/O: the session dispatcher (L4) calls its
// methods from a single cooperative loop and is responsible for actually
// transmitting the ax25.Frame values an Outcome returns.
type Link struct {
	cfg    config.Config
	myCall ax25.Callsign

	peer  ax25.Callsign
	digis []ax25.Digipeater

	state State

	vs, vr, va byte
	peerBusy   bool

	retryCount  int
	firstIsSABME bool // true until the first SABME is answered or timed out; an FRMR or DM while set falls back to SABM without consuming n2

	unacked     []pending
	queuedLines [][]byte

	t1, t3        timer
	t3PausedFor   time.Duration // remaining T3 time while paused; 0 when not paused
	pagerPending  bool
	ackCoalesce   timer
	coalesceNR    byte
}

// New constructs a Link in Disconnected, per spec §3 Lifecycle.
func New(cfg config.Config, myCall ax25.Callsign) *Link {
	return &Link{cfg: cfg, myCall: myCall, state: Disconnected}
}

func (l *Link) State() State        { return l.state }
func (l *Link) Peer() ax25.Callsign { return l.peer }
func (l *Link) VS() byte            { return l.vs }
func (l *Link) VR() byte            { return l.vr }
func (l *Link) VA() byte            { return l.va }
func (l *Link) UnackedCount() int   { return len(l.unacked) }
func (l *Link) QueuedCount() int    { return len(l.queuedLines) }

// SetConfig swaps the tunables (e.g. after /retries N); only takes
// effect for decisions made after the call.
func (l *Link) SetConfig(cfg config.Config) { l.cfg = cfg }

const mod = 8

func seqDelta(a, b byte) byte { return (b - a + mod) % mod }

// precedes implements spec §4.3's "modulo-8 within window <= k" convention.
func precedes(a, b byte, window int) bool {
	return int(seqDelta(a, b)) <= window
}

func (l *Link) window() int {
	if l.cfg.WindowK <= 0 || l.cfg.WindowK > 7 {
		return 4
	}
	return l.cfg.WindowK
}

func (l *Link) n2() int {
	if l.cfg.N2 <= 0 {
		return 3
	}
	return l.cfg.N2
}

func (l *Link) startT1(now time.Time) { l.t1 = timer{running: true, deadline: now.Add(l.cfg.T1())} }
func (l *Link) stopT1()               { l.t1.running = false }
func (l *Link) startT3(now time.Time) {
	if l.pagerPending {
		// Record as paused instead of running; SetPagerPending(false) will
		// arm it once the pager condition clears.
		l.t3PausedFor = l.cfg.T3()
		l.t3.running = false
		return
	}
	l.t3 = timer{running: true, deadline: now.Add(l.cfg.T3())}
}
func (l *Link) stopT3() {
	l.t3.running = false
	l.t3PausedFor = 0
}

// NextDeadline returns the earliest pending T1/T3/ack-coalesce deadline,
// for the dispatcher to compute how long to block on select.
func (l *Link) NextDeadline() (time.Time, bool) {
	var best time.Time
	found := false
	consider := func(t timer) {
		if !t.running {
			return
		}
		if !found || t.deadline.Before(best) {
			best = t.deadline
			found = true
		}
	}
	consider(l.t1)
	consider(l.t3)
	consider(l.ackCoalesce)
	return best, found
}

// addrChain builds the Dest/Src/Via fields shared by every frame this
// link transmits to its peer.
func (l *Link) addrChain() (dst, src ax25.Callsign, via []ax25.Digipeater) {
	return l.peer, l.myCall, l.digis
}

func (l *Link) uFrame(t ax25.UFrameType, pf bool) ax25.Frame {
	dst, src, via := l.addrChain()
	return ax25.Frame{
		Dest:    dst,
		Src:     src,
		Via:     via,
		Control: ax25.Control{Kind: ax25.KindU, UType: t, PF: pf},
	}
}

func (l *Link) sFrame(t ax25.SFrameType, nr byte, pf bool) ax25.Frame {
	dst, src, via := l.addrChain()
	return ax25.Frame{
		Dest:    dst,
		Src:     src,
		Via:     via,
		Control: ax25.Control{Kind: ax25.KindS, SType: t, NR: nr, PF: pf},
	}
}

func (l *Link) iFrame(ns, nr byte, info []byte, pf bool) ax25.Frame {
	dst, src, via := l.addrChain()
	return ax25.Frame{
		Dest:    dst,
		Src:     src,
		Via:     via,
		Control: ax25.Control{Kind: ax25.KindI, NS: ns, NR: nr, PF: pf},
		HasPID:  true,
		PID:     ax25.PID_NoLayer3,
		Info:    info,
	}
}

// Connect starts the connection handshake: SABME first, falling through
// to SABM without consuming a retry if the peer answers that first SABME
// with FRMR or DM. A T1 timeout on the SABME counts as one of the n2
// attempts and is retried as SABM, per spec §4.3/§9.
func (l *Link) Connect(peer ax25.Callsign, digis []ax25.Digipeater, now time.Time) Outcome {
	var o Outcome
	if l.state != Disconnected {
		return o
	}
	l.peer = peer
	l.digis = digis
	l.retryCount = 1 // the SABME just sent below counts as attempt 1 of n2
	l.firstIsSABME = true
	l.state = AwaitingConnect
	o.emit(l.uFrame(ax25.USABME, true))
	l.startT1(now)
	o.status(StatusConnecting, fmt.Sprintf("Connecting to %s", peer))
	return o
}

// Disconnect requests release of a connected or awaiting-connect link.
// Idempotent: calling it again while already Disconnected or
// AwaitingRelease is a no-op producing at most one DISC on the wire
// overall (spec §8 "Idempotent disconnect").
func (l *Link) Disconnect(now time.Time) Outcome {
	var o Outcome
	switch l.state {
	case Connected, AwaitingConnect:
		l.state = AwaitingRelease
		l.retryCount = 1 // the DISC just sent below counts as attempt 1 of n2
		o.emit(l.uFrame(ax25.UDISC, true))
		l.stopT3()
		l.startT1(now)
	default:
		// Disconnected or already AwaitingRelease: nothing to do.
	}
	return o
}

// SendLine enqueues a line of user text as an I-frame (when Connected)
// or defers it until the handshake completes (when AwaitingConnect),
// per spec §4.4.
func (l *Link) SendLine(payload []byte, now time.Time) Outcome {
	var o Outcome
	switch l.state {
	case Connected:
		if !l.windowOpen() || l.peerBusy {
			l.queuedLines = append(l.queuedLines, payload)
			return o
		}
		l.emitIFrame(payload, now, &o)
	case AwaitingConnect:
		l.queuedLines = append(l.queuedLines, payload)
	default:
		// Dropped: caller is responsible for routing per current state
		// (spec §4.4 input-routing rules operate above this layer).
	}
	return o
}

func (l *Link) windowOpen() bool {
	return int(seqDelta(l.va, l.vs)) < l.window()
}

func (l *Link) emitIFrame(payload []byte, now time.Time, o *Outcome) {
	ns := l.vs
	f := l.iFrame(ns, l.vr, payload, false)
	o.emit(f)
	l.unacked = append(l.unacked, pending{ns: ns, info: payload})
	l.vs = (l.vs + 1) % mod
	if !l.t1.running {
		l.startT1(now)
	}
	l.stopT3()
}
