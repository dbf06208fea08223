package link

import (
	"fmt"
	"time"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
)

const ackCoalesceWindow = 100 * time.Millisecond

// HandleFrame processes one inbound connected-mode frame addressed to
// this station (Dest == MyCall). UI (UNPROTO) frames are spec'd to be
// surfaced regardless of link state and are handled by the session
// dispatcher directly; callers should not route them here.
func (l *Link) HandleFrame(f ax25.Frame, now time.Time) Outcome {
	var o Outcome
	switch l.state {
	case Disconnected:
		l.handleDisconnected(f, now, &o)
	case AwaitingConnect:
		l.handleAwaitingConnect(f, now, &o)
	case Connected:
		l.handleConnected(f, now, &o)
	case AwaitingRelease:
		l.handleAwaitingRelease(f, now, &o)
	}
	return o
}

func (l *Link) handleDisconnected(f ax25.Frame, now time.Time, o *Outcome) {
	switch f.Control.Kind {
	case ax25.KindU:
		switch f.Control.UType {
		case ax25.USABM, ax25.USABME:
			if !f.Control.PF {
				o.emit(l.dmTo(f, false))
				return
			}
			l.peer = f.Src
			l.digis = reverseDigis(f.Via)
			l.vs, l.vr, l.va = 0, 0, 0
			l.retryCount = 0
			l.state = Connected
			o.emit(l.uFrame(ax25.UUA, true))
			l.startT3(now)
			o.status(StatusConnected, fmt.Sprintf("CONNECTED to %s", f.Src))
		case ax25.UDISC:
			o.emit(l.dmTo(f, f.Control.PF))
		default:
			o.emit(l.dmTo(f, f.Control.PF))
		}
	default:
		o.emit(l.dmTo(f, f.Control.PF))
	}
}

func (l *Link) dmTo(f ax25.Frame, pf bool) ax25.Frame {
	return ax25.Frame{
		Dest:    f.Src,
		Src:     f.Dest,
		Via:     reverseDigis(f.Via),
		Control: ax25.Control{Kind: ax25.KindU, UType: ax25.UDM, PF: pf},
	}
}

func reverseDigis(via []ax25.Digipeater) []ax25.Digipeater {
	if len(via) == 0 {
		return nil
	}
	out := make([]ax25.Digipeater, len(via))
	for i, d := range via {
		out[i] = ax25.Digipeater{Call: d.Call, Repeated: false}
	}
	return out
}

func (l *Link) handleAwaitingConnect(f ax25.Frame, now time.Time, o *Outcome) {
	if f.Control.Kind != ax25.KindU {
		return
	}
	switch f.Control.UType {
	case ax25.UUA:
		if !f.Control.PF {
			return
		}
		l.state = Connected
		l.stopT1()
		l.unacked = nil
		l.vs, l.vr, l.va = 0, 0, 0
		l.retryCount = 0
		l.flushQueuedLines(now, o)
		l.startT3(now)
		o.status(StatusConnected, fmt.Sprintf("CONNECTED to %s", l.peer))
	case ax25.UDM:
		if l.firstIsSABME {
			// A DM answering our first SABME is a mod-8 peer's NAK: fall
			// through to SABM without consuming an n2 retry, as for FRMR.
			l.firstIsSABME = false
			o.emit(l.uFrame(ax25.USABM, true))
			l.startT1(now)
			return
		}
		l.state = Disconnected
		l.stopT1()
		o.status(StatusPeerRefused, fmt.Sprintf("%s refused connection.", l.peer))
	case ax25.UFRMR:
		// A mod-8 peer NAK'ing our first SABME attempt: fall through to
		// SABM without consuming an n2 retry, per spec §9.
		if l.firstIsSABME {
			l.firstIsSABME = false
			o.emit(l.uFrame(ax25.USABM, true))
			l.startT1(now)
		}
	}
}

func (l *Link) flushQueuedLines(now time.Time, o *Outcome) {
	lines := l.queuedLines
	l.queuedLines = nil
	for _, payload := range lines {
		if !l.windowOpen() {
			l.queuedLines = append(l.queuedLines, payload)
			continue
		}
		l.emitIFrame(payload, now, o)
	}
}

func (l *Link) handleConnected(f ax25.Frame, now time.Time, o *Outcome) {
	switch f.Control.Kind {
	case ax25.KindI:
		l.handleI(f, now, o)
	case ax25.KindS:
		l.handleS(f, now, o)
	case ax25.KindU:
		l.handleUConnected(f, now, o)
	}
}

func (l *Link) handleI(f ax25.Frame, now time.Time, o *Outcome) {
	ns, nr, poll := f.Control.NS, f.Control.NR, f.Control.PF
	if ns == l.vr {
		o.deliver(f.Info, f.Src, f.PID)
		l.vr = (l.vr + 1) % mod
		if poll {
			o.emit(l.sFrame(ax25.SRR, l.vr, true))
			l.ackCoalesce.running = false
		} else {
			l.ackCoalesce = timer{running: true, deadline: now.Add(ackCoalesceWindow)}
			l.coalesceNR = l.vr
		}
	} else {
		o.emit(l.sFrame(ax25.SREJ, l.vr, poll))
	}
	l.applyAck(nr, now, o)
}

func (l *Link) handleS(f ax25.Frame, now time.Time, o *Outcome) {
	switch f.Control.SType {
	case ax25.SRR:
		l.peerBusy = false
		l.applyAck(f.Control.NR, now, o)
		if f.Control.PF {
			o.emit(l.sFrame(ax25.SRR, l.vr, true))
		}
	case ax25.SRNR:
		l.peerBusy = true
		l.applyAck(f.Control.NR, now, o)
		if f.Control.PF {
			o.emit(l.sFrame(ax25.SRR, l.vr, true))
		}
	case ax25.SREJ:
		l.applyAck(f.Control.NR, now, o)
		l.retransmitFrom(f.Control.NR, now, o)
	}
}

func (l *Link) handleUConnected(f ax25.Frame, now time.Time, o *Outcome) {
	switch f.Control.UType {
	case ax25.UDISC:
		o.emit(l.uFrame(ax25.UUA, f.Control.PF))
		l.enterDisconnected(StatusPeerDisconnected, "Peer requested DISC.", o)
	case ax25.UDM:
		l.enterDisconnected(StatusPeerDisconnected, "Peer sent DM.", o)
	case ax25.UFRMR:
		if l.cfg.FRMRFatal {
			l.enterDisconnected(StatusProtocolError, "FRMR received; link dropped.", o)
		} else {
			l.vs, l.vr, l.va = 0, 0, 0
			l.unacked = nil
		}
	}
}

func (l *Link) enterDisconnected(k StatusKind, detail string, o *Outcome) {
	l.state = Disconnected
	l.stopT1()
	l.stopT3()
	l.peer = ax25.Callsign{}
	l.digis = nil
	l.unacked = nil
	l.queuedLines = nil
	o.status(k, detail)
}

// applyAck releases unacked I-frames whose N(S) the new N(R) passes, per
// spec §8 "No phantom acks" / §4.3's sequence-arithmetic rule:
// (N(R)-1-N(S)) mod 8 < window.
func (l *Link) applyAck(nr byte, now time.Time, o *Outcome) {
	w := l.window()
	kept := l.unacked[:0]
	for _, p := range l.unacked {
		if int((nr-1-p.ns+2*mod)%mod) < w {
			continue // acked
		}
		kept = append(kept, p)
	}
	l.unacked = kept
	l.va = nr
	if len(l.unacked) == 0 {
		l.stopT1()
	} else {
		l.startT1(now)
	}
	if l.state == Connected && !l.peerBusy && len(l.queuedLines) > 0 && l.windowOpen() {
		l.flushQueuedLines(now, o)
	}
}

func (l *Link) retransmitFrom(nr byte, now time.Time, o *Outcome) {
	for _, p := range l.unacked {
		o.emit(l.iFrame(p.ns, l.vr, p.info, false))
	}
	if len(l.unacked) > 0 {
		l.startT1(now)
	}
}

func (l *Link) handleAwaitingRelease(f ax25.Frame, now time.Time, o *Outcome) {
	if f.Control.Kind != ax25.KindU {
		return
	}
	switch f.Control.UType {
	case ax25.UUA, ax25.UDM:
		l.state = Disconnected
		l.stopT1()
		l.stopT3()
		l.peer = ax25.Callsign{}
		l.digis = nil
	}
}

// Poll checks whether T1, T3 or the ack-coalesce timer has expired as of
// now and applies the corresponding retry/keepalive/ack logic. The
// dispatcher calls this whenever NextDeadline() has passed.
func (l *Link) Poll(now time.Time) Outcome {
	var o Outcome
	if l.ackCoalesce.running && !now.Before(l.ackCoalesce.deadline) {
		l.ackCoalesce.running = false
		o.emit(l.sFrame(ax25.SRR, l.coalesceNR, false))
	}
	if l.t1.running && !now.Before(l.t1.deadline) {
		l.expireT1(now, &o)
	} else if l.t3.running && !now.Before(l.t3.deadline) {
		l.expireT3(now, &o)
	}
	return o
}

func (l *Link) expireT1(now time.Time, o *Outcome) {
	switch l.state {
	case AwaitingConnect:
		l.retryCount++
		if l.retryCount <= l.n2() {
			l.firstIsSABME = false
			o.emit(l.uFrame(ax25.USABM, true))
			l.startT1(now)
		} else {
			l.state = Disconnected
			l.stopT1()
			o.status(StatusConnectTimedOut, fmt.Sprintf("Connect timed out after %d attempts.", l.n2()))
		}
	case Connected:
		l.retryCount++
		if l.retryCount > l.n2() {
			l.state = Disconnected
			l.stopT1()
			l.stopT3()
			l.unacked = nil
			l.queuedLines = nil
			o.status(StatusLinkLost, "Link lost: no response.")
			return
		}
		if len(l.unacked) > 0 {
			oldest := l.unacked[0]
			o.emit(l.iFrame(oldest.ns, l.vr, oldest.info, false))
		} else {
			o.emit(l.sFrame(ax25.SRR, l.vr, true))
		}
		l.startT1(now)
	case AwaitingRelease:
		l.retryCount++
		if l.retryCount <= l.n2() {
			o.emit(l.uFrame(ax25.UDISC, true))
			l.startT1(now)
		} else {
			l.state = Disconnected
			l.stopT1()
		}
	}
}

func (l *Link) expireT3(now time.Time, o *Outcome) {
	if l.state != Connected {
		return
	}
	o.emit(l.sFrame(ax25.SRR, l.vr, true))
	l.startT1(now)
}

// SetPagerPending pauses (true) or resumes (false) T3 while the terminal
// reports a pager prompt pending, per spec §4.4: "T3 is paused, not
// cleared: its remaining time resumes when the flag drops."
func (l *Link) SetPagerPending(pending bool, now time.Time) {
	if pending == l.pagerPending {
		return
	}
	l.pagerPending = pending
	if pending {
		if l.t3.running {
			l.t3PausedFor = l.t3.deadline.Sub(now)
			l.t3.running = false
		}
		return
	}
	if l.t3PausedFor > 0 {
		l.t3 = timer{running: true, deadline: now.Add(l.t3PausedFor)}
		l.t3PausedFor = 0
	}
}
