package link

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kc3smw/ax25term/internal/ax25term/ax25"
	"github.com/kc3smw/ax25term/internal/ax25term/config"
)

var (
	mycall = ax25.Callsign{Base: "KC3SMW", SSID: 0}
	peer   = ax25.Callsign{Base: "KC3SMW", SSID: 7}
)

func newLink(t *testing.T) *Link {
	t.Helper()
	return New(config.Default(), mycall)
}

func t0() time.Time { return time.Date(2026, 7, 30, 12, 0, 0, 0, time.UTC) }

// Scenario 1: clean connect/disconnect.
func TestCleanConnectDisconnect(t *testing.T) {
	l := newLink(t)
	now := t0()

	o := l.Connect(peer, nil, now)
	require.Len(t, o.Frames, 1)
	assert.Equal(t, ax25.USABME, o.Frames[0].Control.UType)
	assert.True(t, o.Frames[0].Control.PF)
	assert.Equal(t, AwaitingConnect, l.State())

	ua := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindU, UType: ax25.UUA, PF: true}}
	o = l.HandleFrame(ua, now.Add(time.Second))
	assert.Equal(t, Connected, l.State())
	require.Len(t, o.Status, 1)
	assert.Equal(t, StatusConnected, o.Status[0].Kind)

	o = l.Disconnect(now.Add(2 * time.Second))
	require.Len(t, o.Frames, 1)
	assert.Equal(t, ax25.UDISC, o.Frames[0].Control.UType)
	assert.Equal(t, AwaitingRelease, l.State())

	discUA := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindU, UType: ax25.UUA, PF: true}}
	o = l.HandleFrame(discUA, now.Add(3*time.Second))
	assert.Equal(t, Disconnected, l.State())
}

// Scenario 2: connect with retries.
func TestConnectWithRetries(t *testing.T) {
	cfg := config.Default().WithRetries(2)
	l := New(cfg, mycall)
	now := t0()

	o := l.Connect(peer, nil, now)
	require.Len(t, o.Frames, 1)
	assert.Equal(t, ax25.USABME, o.Frames[0].Control.UType)

	o = l.Poll(now.Add(l.cfg.T1()))
	require.Len(t, o.Frames, 1)
	assert.Equal(t, ax25.USABM, o.Frames[0].Control.UType)
	assert.Equal(t, AwaitingConnect, l.State())

	o = l.Poll(now.Add(2 * l.cfg.T1()))
	require.Empty(t, o.Frames)
	require.Len(t, o.Status, 1)
	assert.Equal(t, StatusConnectTimedOut, o.Status[0].Kind)
	assert.Equal(t, Disconnected, l.State())
}

// Scenario 3: I-frame exchange.
func TestIFrameExchange(t *testing.T) {
	l := connectLink(t)
	now := t0()

	o := l.SendLine([]byte("hello\r"), now)
	require.Len(t, o.Frames, 1)
	f := o.Frames[0]
	assert.Equal(t, ax25.KindI, f.Control.Kind)
	assert.Equal(t, byte(0), f.Control.NS)
	assert.Equal(t, byte(0), f.Control.NR)
	assert.Equal(t, byte(ax25.PID_NoLayer3), f.PID)
	assert.Equal(t, "hello\r", string(f.Info))

	reply := ax25.Frame{
		Dest:    mycall,
		Src:     peer,
		Control: ax25.Control{Kind: ax25.KindI, NS: 0, NR: 1},
		HasPID:  true,
		PID:     ax25.PID_NoLayer3,
		Info:    []byte("hi\r"),
	}
	o = l.HandleFrame(reply, now.Add(time.Second))
	require.Len(t, o.Delivered, 1)
	assert.Equal(t, "hi\r", string(o.Delivered[0].Info))
	assert.Equal(t, byte(1), l.VR())
	assert.Equal(t, byte(1), l.VA())
}

// Scenario 4: out-of-order recovery.
func TestOutOfOrderRecovery(t *testing.T) {
	l := connectLink(t)
	now := t0()

	outOfOrder := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindI, NS: 1, NR: 0}, HasPID: true, Info: []byte("second")}
	o := l.HandleFrame(outOfOrder, now)
	require.Len(t, o.Frames, 1)
	assert.Equal(t, ax25.KindS, o.Frames[0].Control.Kind)
	assert.Equal(t, ax25.SREJ, o.Frames[0].Control.SType)
	assert.Equal(t, byte(0), o.Frames[0].Control.NR)
	assert.Empty(t, o.Delivered)

	inOrder := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindI, NS: 0, NR: 0}, HasPID: true, Info: []byte("first")}
	o = l.HandleFrame(inOrder, now.Add(time.Second))
	require.Len(t, o.Delivered, 1)
	assert.Equal(t, "first", string(o.Delivered[0].Info))
	assert.Equal(t, byte(1), l.VR())
}

// Scenario 6: queued-during-handshake flush.
func TestQueuedDuringHandshakeFlush(t *testing.T) {
	l := newLink(t)
	now := t0()

	l.Connect(peer, nil, now)
	o := l.SendLine([]byte("HELP\r"), now.Add(time.Millisecond))
	assert.Empty(t, o.Frames)
	assert.Equal(t, 1, l.QueuedCount())

	ua := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindU, UType: ax25.UUA, PF: true}}
	o = l.HandleFrame(ua, now.Add(2*time.Millisecond))
	require.Len(t, o.Frames, 1)
	assert.Equal(t, ax25.KindI, o.Frames[0].Control.Kind)
	assert.Equal(t, byte(0), o.Frames[0].Control.NS)
	assert.Equal(t, "HELP\r", string(o.Frames[0].Info))
	assert.Equal(t, 0, l.QueuedCount())
}

func TestSequenceWindowInvariant(t *testing.T) {
	l := connectLink(t)
	now := t0()
	cfg := l.cfg
	for i := 0; i < cfg.WindowK+2; i++ {
		l.SendLine([]byte("x"), now)
		assert.LessOrEqual(t, int(seqDelta(l.VA(), l.VS())), cfg.WindowK)
	}
	assert.Equal(t, cfg.WindowK, l.UnackedCount())
}

func TestIdempotentDisconnect(t *testing.T) {
	l := connectLink(t)
	now := t0()
	o1 := l.Disconnect(now)
	require.Len(t, o1.Frames, 1)
	o2 := l.Disconnect(now.Add(time.Second))
	assert.Empty(t, o2.Frames)
	assert.Equal(t, AwaitingRelease, l.State())
}

func TestPagerSuppressesKeepalive(t *testing.T) {
	l := connectLink(t)
	now := t0()
	l.SetPagerPending(true, now)
	o := l.Poll(now.Add(l.cfg.T3() * 2))
	assert.Empty(t, o.Frames)
}

func connectLink(t *testing.T) *Link {
	t.Helper()
	l := newLink(t)
	now := t0()
	l.Connect(peer, nil, now)
	ua := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindU, UType: ax25.UUA, PF: true}}
	l.HandleFrame(ua, now.Add(time.Millisecond))
	require.Equal(t, Connected, l.State())
	return l
}

func TestReceivingREJRetransmits(t *testing.T) {
	l := connectLink(t)
	now := t0()
	l.SendLine([]byte("one"), now)
	l.SendLine([]byte("two"), now)
	require.Equal(t, 2, l.UnackedCount())

	rej := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindS, SType: ax25.SREJ, NR: 0}}
	o := l.HandleFrame(rej, now.Add(time.Second))
	require.Len(t, o.Frames, 2)
	assert.Equal(t, byte(0), o.Frames[0].Control.NS)
	assert.Equal(t, byte(1), o.Frames[1].Control.NS)
}

func TestRNRPausesSending(t *testing.T) {
	l := connectLink(t)
	now := t0()
	rnr := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindS, SType: ax25.SRNR, NR: 0}}
	l.HandleFrame(rnr, now)

	o := l.SendLine([]byte("x"), now.Add(time.Millisecond))
	assert.Empty(t, o.Frames)
	assert.Equal(t, 1, l.QueuedCount())

	rr := ax25.Frame{Dest: mycall, Src: peer, Control: ax25.Control{Kind: ax25.KindS, SType: ax25.SRR, NR: 0}}
	o = l.HandleFrame(rr, now.Add(2*time.Millisecond))
	require.Len(t, o.Frames, 1, "the RR clearing RNR must flush the line queued while busy")
	assert.Equal(t, byte(0), o.Frames[0].Control.NS, "the queued line, not a new one, must be what goes out")
	assert.Equal(t, 0, l.QueuedCount(), "queued line must not be stranded once the window reopens")

	o = l.SendLine([]byte("y"), now.Add(3*time.Millisecond))
	require.Len(t, o.Frames, 1)
}
