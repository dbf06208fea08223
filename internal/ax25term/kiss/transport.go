package kiss

import (
	"errors"
	"fmt"
	"net"
)

// ErrTransportDown signals the TCP peer (the TNC) has gone away.
var ErrTransportDown = errors.New("kiss: transport down")

// ErrTransportBusy signals the bounded outbound buffer is full; the
// caller may retry per spec §5/§7.
var ErrTransportBusy = errors.New("kiss: transport busy")

const outboundBufferSize = 64

// Transport is the L1 KISS-over-TCP connection to one TNC. It frames
// outbound AX.25 payloads and deframes inbound ones, exposing a channel
// of raw AX.25 payloads for the layer above (L2) to decode.
//
// Send never blocks past the outbound buffer: if the buffer is full it
// returns ErrTransportBusy immediately rather than stalling the caller,
// per spec §5 ("send operations push to a bounded outbound buffer and
// yield if full").
type Transport struct {
	conn net.Conn
	port byte

	outbound chan []byte
	inbound  chan []byte
	errs     chan error

	closed chan struct{}
}

// Dial connects to the TNC at addr (host:port) and starts the reader and
// writer goroutines. port is the KISS radio-channel nibble used for all
// outbound frames (the engine uses 0, per spec §4.1).
func Dial(addr string, port byte) (*Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("kiss: dial %s: %w", addr, err)
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true)
	}
	t := &Transport{
		conn:     conn,
		port:     port,
		outbound: make(chan []byte, outboundBufferSize),
		inbound:  make(chan []byte, outboundBufferSize),
		errs:     make(chan error, 1),
		closed:   make(chan struct{}),
	}
	go t.writeLoop()
	go t.readLoop()
	return t, nil
}

// Send frames raw AX.25 payload and queues it for transmission. It never
// blocks longer than enqueueing onto the bounded channel; if the channel
// is full it returns ErrTransportBusy immediately.
func (t *Transport) Send(rawAX25 []byte) error {
	frame := Frame(t.port, CmdDataFrame, rawAX25)
	select {
	case t.outbound <- frame:
		return nil
	case <-t.closed:
		return ErrTransportDown
	default:
		return ErrTransportBusy
	}
}

// Inbound returns the channel of decoded (deframed, unescaped) raw AX.25
// payloads from command-0 frames on any port. Frames with any other
// command are discarded (tolerated, per spec §6).
func (t *Transport) Inbound() <-chan []byte { return t.inbound }

// Errs surfaces ErrTransportDown exactly once when the TCP peer closes.
func (t *Transport) Errs() <-chan error { return t.errs }

// Close tears down the TCP connection and both goroutines.
func (t *Transport) Close() error {
	select {
	case <-t.closed:
	default:
		close(t.closed)
	}
	return t.conn.Close()
}

func (t *Transport) writeLoop() {
	for {
		select {
		case <-t.closed:
			return
		case frame := <-t.outbound:
			if _, err := t.conn.Write(frame); err != nil {
				t.surfaceDown()
				return
			}
		}
	}
}

func (t *Transport) readLoop() {
	var d Deframer
	buf := make([]byte, 4096)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			d.Feed(buf[:n])
			for {
				raw, ok := d.Next()
				if !ok {
					break
				}
				if raw.Command() != CmdDataFrame {
					continue // SET_HARDWARE, TXDELAY, etc. tolerated but ignored
				}
				select {
				case t.inbound <- raw.Payload:
				case <-t.closed:
					return
				}
			}
		}
		if err != nil {
			t.surfaceDown()
			return
		}
	}
}

func (t *Transport) surfaceDown() {
	select {
	case t.errs <- ErrTransportDown:
	default:
	}
	_ = t.Close()
}
