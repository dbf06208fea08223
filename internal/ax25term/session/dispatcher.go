package session

import (
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
	"github.com/kc3smw/ax25term/internal/ax25term/config"
	"github.com/kc3smw/ax25term/internal/ax25term/link"
	"github.com/kc3smw/ax25term/internal/ax25term/logx"
	"github.com/kc3smw/ax25term/internal/ax25term/metrics"
)

// Transport is the L1 surface the dispatcher drives; kiss.Transport
// satisfies it.
type Transport interface {
	Send(rawAX25 []byte) error
	Inbound() <-chan []byte
	Errs() <-chan error
	Close() error
}

// Dispatcher is the session layer (L4): the single cooperative loop of
// spec §5 that multiplexes inbound frames, timers, and user input, and
// owns the UNPROTO persistent-destination state that lives above the
// connected-mode Link.
type Dispatcher struct {
	cfg       config.Config
	myCall    ax25.Callsign
	transport Transport
	link      *link.Link
	terminal  Terminal
	log       *logx.Logger
	metrics   *metrics.Metrics
	sessionID xid.ID

	echo bool

	unprotoActive bool
	unprotoDest   ax25.Callsign
	unprotoVia    []ax25.Digipeater

	inputCh chan inputLine
}

type inputLine struct {
	text string
	ok   bool
}

// New builds a Dispatcher. terminal, transport and log must be non-nil;
// m may be nil, in which case no metrics are recorded.
func New(cfg config.Config, myCall ax25.Callsign, transport Transport, terminal Terminal, log *logx.Logger, m *metrics.Metrics) *Dispatcher {
	return &Dispatcher{
		cfg:       cfg,
		myCall:    myCall,
		transport: transport,
		link:      link.New(cfg, myCall),
		terminal:  terminal,
		log:       log,
		metrics:   m,
		sessionID: xid.New(),
		echo:      true,
		inputCh:   make(chan inputLine, 1),
	}
}

// SessionID is the correlation ID attached to this dispatcher's log
// lines, so concurrent sessions can be told apart.
func (d *Dispatcher) SessionID() string { return d.sessionID.String() }

// Connect issues a /connect CALL as if the user had typed it, so the
// host program can auto-connect on start (spec §6's invocation-surface
// TARGET argument) before handing control to Run.
func (d *Dispatcher) Connect(dest ax25.Callsign, via []ax25.Digipeater) {
	d.flush(d.link.Connect(dest, via, time.Now()))
}

// Run drives the cooperative loop until the terminal's input is
// exhausted, the user enters /quit, or the transport goes down. Apart
// from Connect, it is the only place in this package that calls time.Now.
func (d *Dispatcher) Run() error {
	go d.pumpInput()

	for {
		deadline, hasDeadline := d.link.NextDeadline()
		var timerC <-chan time.Time
		if hasDeadline {
			wait := time.Until(deadline)
			if wait < 0 {
				wait = 0
			}
			timerC = time.After(wait)
		}

		select {
		case raw, ok := <-d.transport.Inbound():
			if !ok {
				return nil
			}
			d.onInboundRaw(raw, time.Now())

		case err, ok := <-d.transport.Errs():
			if ok {
				d.log.Logger.Error("transport down", "sid", d.sessionID, "err", err)
				d.terminal.OnStatus(link.StatusLinkLost, err.Error())
			}
			return err

		case in, ok := <-d.inputCh:
			if !ok || !in.ok {
				d.flush(d.link.Disconnect(time.Now()))
				return nil
			}
			d.onInputLine(in.text, time.Now())
			if cmd, err := parseCommand(in.text); err == nil && in.text[0] == '/' && cmd.kind == cmdQuit {
				return nil
			}

		case now := <-timerC:
			d.link.SetPagerPending(d.terminal.PagerPending(), now)
			o := d.link.Poll(now)
			for _, f := range o.Frames {
				if f.Control.Kind == ax25.KindI || (f.Control.Kind == ax25.KindU && (f.Control.UType == ax25.USABM || f.Control.UType == ax25.UDISC)) {
					d.metrics.Retransmit()
				}
			}
			d.flush(o)
		}
	}
}

func (d *Dispatcher) pumpInput() {
	for {
		line, ok := d.terminal.NextInput()
		d.inputCh <- inputLine{text: line, ok: ok}
		if !ok {
			return
		}
	}
}

func (d *Dispatcher) onInboundRaw(raw []byte, now time.Time) {
	f, err := ax25.Decode(raw)
	if err != nil {
		d.metrics.MalformedFrame()
		d.log.Logger.Warn("malformed frame dropped", "sid", d.sessionID, "err", err)
		return
	}
	d.log.TraceFrame("RX", raw)
	d.metrics.Received(ax25.Classify(f).String())

	if f.Control.Kind == ax25.KindU && f.Control.UType == ax25.UUI {
		d.terminal.OnRx(f.Info, f.Src, f.PID)
		return
	}
	if !f.Dest.Equal(d.myCall) {
		return // not addressed to us and not a UI broadcast
	}

	before := d.link.State()
	o := d.link.HandleFrame(f, now)
	if d.link.State() != before {
		d.metrics.Transition(d.link.State().String())
	}
	d.flush(o)
}

func (d *Dispatcher) onInputLine(line string, now time.Time) {
	if len(line) > 0 && line[0] == '/' {
		cmd, err := parseCommand(line)
		if err != nil {
			d.terminal.OnStatus(link.StatusProtocolError, err.Error())
			return
		}
		if cmd.kind == cmdUnknown {
			d.runUnknownCommand(line, now)
			return
		}
		d.runCommand(cmd, now)
		return
	}
	if d.unprotoActive {
		d.sendUnproto(d.unprotoDest, d.unprotoVia, line, now)
		return
	}
	switch d.link.State() {
	case link.Connected, link.AwaitingConnect:
		if d.echo {
			d.terminal.OnRx([]byte(line+d.cfg.LineTerminator), d.myCall, ax25.PID_NoLayer3)
		}
		o := d.link.SendLine([]byte(line+d.cfg.LineTerminator), now)
		d.flush(o)
	default:
		d.terminal.OnStatus(link.StatusDisconnected, "*** not connected")
	}
}

// runUnknownCommand implements spec §4.4's fallback for a slash-prefixed
// line that matches no known verb: forwarded as plain text to the peer
// while CONNECTED (nodes and BBSs have their own slash-commands), or
// answered with the literal "no ***" while DISCONNECTED.
func (d *Dispatcher) runUnknownCommand(line string, now time.Time) {
	switch d.link.State() {
	case link.Connected:
		if d.echo {
			d.terminal.OnRx([]byte(line+d.cfg.LineTerminator), d.myCall, ax25.PID_NoLayer3)
		}
		o := d.link.SendLine([]byte(line+d.cfg.LineTerminator), now)
		d.flush(o)
	default:
		d.terminal.OnRx([]byte("no ***"+d.cfg.LineTerminator), d.myCall, ax25.PID_NoLayer3)
	}
}

func (d *Dispatcher) runCommand(cmd command, now time.Time) {
	switch cmd.kind {
	case cmdConnect:
		o := d.link.Connect(cmd.dest, cmd.via, now)
		d.flush(o)
	case cmdDisconnect:
		o := d.link.Disconnect(now)
		d.flush(o)
	case cmdUnproto:
		if cmd.msg == "" {
			d.unprotoActive = true
			d.unprotoDest = cmd.dest
			d.unprotoVia = cmd.via
			return
		}
		d.sendUnproto(cmd.dest, cmd.via, cmd.msg, now)
	case cmdUnprotoExit:
		d.unprotoActive = false
	case cmdRetries:
		d.cfg = d.cfg.WithRetries(cmd.n)
		d.link.SetConfig(d.cfg)
	case cmdEcho:
		d.echo = cmd.on
	case cmdCRLF:
		if cmd.on {
			d.cfg.LineTerminator = "\r\n"
		} else {
			d.cfg.LineTerminator = "\r"
		}
		d.link.SetConfig(d.cfg)
	case cmdDebug:
		d.log.SetDebug(!d.log.Debugging())
	case cmdStatus:
		d.terminal.OnStatus(link.StatusInfo, d.statusLine())
	case cmdClear:
		d.unprotoActive = false
	case cmdHelp:
		d.terminal.OnRx([]byte(helpText), ax25.Callsign{}, 0)
	case cmdQuit:
		d.flush(d.link.Disconnect(now))
	}
}

func (d *Dispatcher) sendUnproto(dest ax25.Callsign, via []ax25.Digipeater, msg string, now time.Time) {
	f := ax25.Frame{
		Dest:    dest,
		Src:     d.myCall,
		Via:     via,
		Control: ax25.Control{Kind: ax25.KindU, UType: ax25.UUI, PF: false},
		HasPID:  true,
		PID:     ax25.PID_NoLayer3,
		Info:    []byte(msg),
	}
	d.send(f)
	d.terminal.OnStatus(link.StatusUnprotoSent, fmt.Sprintf("UNPROTO to %s", dest))
}

func (d *Dispatcher) statusLine() string {
	return fmt.Sprintf("state=%s peer=%s vs=%d vr=%d unacked=%d queued=%d",
		d.link.State(), d.link.Peer(), d.link.VS(), d.link.VR(), d.link.UnackedCount(), d.link.QueuedCount())
}

func (d *Dispatcher) flush(o link.Outcome) {
	for _, f := range o.Frames {
		if f.Control.Kind == ax25.KindS && f.Control.SType == ax25.SREJ {
			d.metrics.Reject()
		}
		d.send(f)
	}
	for _, dl := range o.Delivered {
		d.terminal.OnRx(dl.Info, dl.Source, dl.PID)
	}
	for _, s := range o.Status {
		d.terminal.OnStatus(s.Kind, s.Detail)
	}
}

func (d *Dispatcher) send(f ax25.Frame) {
	raw := ax25.Encode(f)
	if err := d.transport.Send(raw); err != nil {
		d.log.Logger.Warn("send failed", "sid", d.sessionID, "err", err)
		return
	}
	d.log.TraceFrame("TX", raw)
	d.metrics.Sent(ax25.Classify(f).String())
}

const helpText = `Commands:
  /connect CALL [via D1,D2,...]   connect to a station
  /disconnect                     release the current connection
  /unproto DEST [via ...] [msg]   send (or enter persistent) UNPROTO
  /upexit                         leave persistent UNPROTO mode
  /retries N                      set n2
  /echo on|off                    local echo
  /crlf on|off                    line terminator
  /debug                          toggle frame tracing
  /status                         show link state
  /clear                          clear persistent UNPROTO
  /help                           this text
  /quit                           disconnect and exit
`
