package remregs

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakePlatform is a deterministic Platform. Delay advances a virtual clock
// instead of sleeping, and every transmitted byte is handed to the scripted
// peer, which answers synchronously through the byte-arrival hook.
type fakePlatform struct {
	link *Link
	peer *testPeer

	sent     []byte
	elapsed  time.Duration
	delays   int
	liveness int

	// overruns is the number of polls that report an overrun condition.
	overruns int
	trace    []string

	txErr   error
	txLimit int // fail transmissions once len(sent) reaches txLimit, if > 0
}

var _ Platform = (*fakePlatform)(nil)

func (p *fakePlatform) TransmitByte(b byte) error {
	if p.txErr != nil && p.txLimit > 0 && len(p.sent) >= p.txLimit {
		return p.txErr
	}

	p.sent = append(p.sent, b)
	if p.peer != nil {
		p.peer.onTransmit(b)
	}

	return nil
}

func (p *fakePlatform) Delay(d time.Duration) {
	p.delays++
	p.elapsed += d

	if p.peer != nil {
		p.peer.onTick(p.elapsed)
	}
}

func (p *fakePlatform) ServiceLiveness() { p.liveness++ }

func (p *fakePlatform) Overrun() bool {
	if p.overruns > 0 {
		p.overruns--
		return true
	}

	return false
}

func (p *fakePlatform) ResetReceiver() { p.trace = append(p.trace, "reset") }

func (p *fakePlatform) EnterCritical() { p.trace = append(p.trace, "enter") }

func (p *fakePlatform) ExitCritical() { p.trace = append(p.trace, "exit") }

func (p *fakePlatform) resetCounters() {
	p.sent = nil
	p.elapsed = 0
	p.delays = 0
	p.liveness = 0
}

// testPeer is a scripted remregs peer.
//
// At a frame boundary it skips preamble bytes and answers the sync marker
// with syncReply. Every complete frame is recorded and answered with the
// next entry of replies; when replies is exhausted the peer stays silent.
type testPeer struct {
	t    *testing.T
	link *Link

	syncReply []byte
	replies   [][]byte

	// delayed bytes are delivered once the virtual clock reaches at.
	delayed []delayedBytes

	syncs  int
	frames []*Frame
	cur    []byte
}

type delayedBytes struct {
	at   time.Duration
	data []byte
}

func (p *testPeer) push(data ...byte) {
	for _, b := range data {
		p.link.OnByteReceived(b, false)
	}
}

func (p *testPeer) reply(data ...byte) {
	p.replies = append(p.replies, data)
}

func (p *testPeer) onTick(now time.Duration) {
	for len(p.delayed) > 0 && p.delayed[0].at <= now {
		p.push(p.delayed[0].data...)
		p.delayed = p.delayed[1:]
	}
}

func (p *testPeer) onTransmit(b byte) {
	if len(p.cur) == 0 {
		switch b {
		case SyncPreambleByte:
			return
		case SyncMarker:
			p.syncs++
			p.push(p.syncReply...)

			return
		}
	}

	p.cur = append(p.cur, b)

	f, err := ParseFrame(p.cur)
	if errors.Is(err, ErrIncompleteFrame) {
		return
	}
	require.NoError(p.t, err)

	p.cur = nil
	p.frames = append(p.frames, f)

	if len(p.replies) > 0 {
		r := p.replies[0]
		p.replies = p.replies[1:]
		p.push(r...)
	}
}

func (p *testPeer) lastFrame() *Frame {
	p.t.Helper()
	require.NotEmpty(p.t, p.frames)

	return p.frames[len(p.frames)-1]
}

// newTestLink creates a link wired to a fakePlatform and a peer that echoes
// the sync marker.
func newTestLink(t *testing.T, opts ...LinkOption) (*Link, *fakePlatform, *testPeer) {
	t.Helper()

	cfg, err := NewLinkConfig(opts...)
	require.NoError(t, err)

	plat := &fakePlatform{}
	link, err := NewLink(plat, cfg)
	require.NoError(t, err)

	peer := &testPeer{t: t, link: link, syncReply: []byte{SyncMarker}}
	plat.link = link
	plat.peer = peer

	return link, plat, peer
}

// newSyncedTestLink is newTestLink followed by a successful handshake.
// The platform counters are reset afterwards.
func newSyncedTestLink(t *testing.T, opts ...LinkOption) (*Link, *fakePlatform, *testPeer) {
	t.Helper()

	link, plat, peer := newTestLink(t, opts...)
	require.NoError(t, link.Sync())
	require.Equal(t, Synced, link.State())
	plat.resetCounters()

	return link, plat, peer
}

func expectedPreamble() []byte {
	p := make([]byte, 0, SyncPreambleLen+1)
	for i := 0; i < SyncPreambleLen; i++ {
		p = append(p, 0xFF)
	}

	return append(p, 0xAA)
}
