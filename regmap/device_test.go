package regmap

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-remregs/hostport"
	"github.com/arloliu/go-remregs/remregs"
	"github.com/arloliu/go-remregs/sim"
)

var testRegs = []Register{
	{Name: "status", Address: 0x10, Width: Width8, ReadOnly: true},
	{Name: "setpoint", Address: 0x11, Width: Width16},
	{Name: "counter", Address: 0x12, Width: Width32},
	{Name: "label", Address: 0x100, Width: WidthMultibyte},
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

func newTestDevice(t *testing.T, opts ...DeviceOption) (*Device, *sim.Device) {
	t.Helper()

	periph := sim.NewDevice()
	periph.Define(0x10, []byte{0x5A}, true)
	periph.Define(0x11, []byte{0x00, 0x00}, false)
	periph.Define(0x12, []byte{0x78, 0x56, 0x34, 0x12}, false)
	periph.Define(0x100, []byte("abc"), false)

	host, remote := net.Pipe()
	go func() { _ = periph.Serve(remote) }()

	port, err := hostport.New(host)
	require.NoError(t, err)

	cfg, err := remregs.NewLinkConfig(
		remregs.WithReadPoll(time.Millisecond, 200),
		remregs.WithSyncPoll(time.Millisecond, 200),
	)
	require.NoError(t, err)

	link, err := remregs.NewLink(port, cfg)
	require.NoError(t, err)
	require.NoError(t, port.Start(context.Background(), link))

	t.Cleanup(func() {
		_ = port.Close()
		_ = remote.Close()
		port.Wait()
	})

	m, err := NewMap(testRegs)
	require.NoError(t, err)

	dev, err := NewDevice("dev0", link, m, opts...)
	require.NoError(t, err)

	return dev, periph
}

func TestDevice_ReadWrite(t *testing.T) {
	dev, periph := newTestDevice(t)
	assert.Equal(t, "dev0", dev.Name())
	assert.Equal(t, 4, dev.Map().Len())

	v, err := dev.Read("status")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x5A), v.Uint)
	assert.Equal(t, "0x5A", v.Hex())
	assert.False(t, v.Cached)

	v, err = dev.Read("counter")
	require.NoError(t, err)
	assert.Equal(t, uint64(0x12345678), v.Uint)
	assert.Equal(t, "counter = 0x12345678 (305419896)", v.String())

	require.NoError(t, dev.WriteUint("setpoint", 0xBEEF))
	raw, _ := periph.Value(0x11)
	assert.Equal(t, []byte{0xEF, 0xBE}, raw)

	v, err = dev.Read("setpoint")
	require.NoError(t, err)
	assert.Equal(t, uint64(0xBEEF), v.Uint)

	v, err = dev.Read("label")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), v.Bytes)
	assert.Equal(t, "616263", v.Hex())

	require.NoError(t, dev.WriteString("label", "0102"))
	raw, _ = periph.Value(0x100)
	assert.Equal(t, []byte{1, 2}, raw)

	require.NoError(t, dev.WriteString("counter", "0x10"))
	raw, _ = periph.Value(0x12)
	assert.Equal(t, []byte{0x10, 0, 0, 0}, raw)
}

func TestDevice_WriteErrors(t *testing.T) {
	dev, periph := newTestDevice(t)

	require.ErrorIs(t, dev.WriteUint("status", 1), ErrReadOnly)
	require.ErrorIs(t, dev.WriteUint("nope", 1), ErrUnknownRegister)
	require.ErrorIs(t, dev.WriteUint("setpoint", 0x10000), ErrValueOutOfRange)
	require.ErrorIs(t, dev.WriteUint("label", 1), ErrWidthUnsupported)
	require.ErrorIs(t, dev.WriteBytes("setpoint", []byte{1}), ErrWidthUnsupported)
	require.ErrorIs(t, dev.WriteString("label", "xyz"), ErrInvalidValue)
	require.ErrorIs(t, dev.WriteBytes("label", make([]byte, 30)), remregs.ErrPayloadTooLarge)

	_, err := dev.Read("nope")
	require.ErrorIs(t, err, ErrUnknownRegister)

	// nothing above reached the peripheral
	assert.Zero(t, periph.Frames())
}

func TestDevice_PeerReject(t *testing.T) {
	dev, periph := newTestDevice(t)
	periph.Define(0x11, []byte{0, 0}, true)

	err := dev.WriteUint("setpoint", 1)
	require.ErrorIs(t, err, remregs.ErrOperationRejected)
	assert.True(t, dev.Link().IsSynced())
}

func TestDevice_Cache(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	dev, periph := newTestDevice(t, WithCacheDuration(time.Second), WithClock(clock.Now))

	v, err := dev.Read("counter")
	require.NoError(t, err)
	assert.False(t, v.Cached)
	frames := periph.Frames()

	clock.Advance(500 * time.Millisecond)
	v, err = dev.Read("counter")
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, uint64(0x12345678), v.Uint)
	assert.Equal(t, frames, periph.Frames())

	clock.Advance(time.Second)
	v, err = dev.Read("counter")
	require.NoError(t, err)
	assert.False(t, v.Cached)
	assert.Equal(t, frames+1, periph.Frames())

	// writes refresh the cache
	require.NoError(t, dev.WriteUint("counter", 7))
	v, err = dev.Read("counter")
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, uint64(7), v.Uint)

	dev.Invalidate()
	v, err = dev.Read("counter")
	require.NoError(t, err)
	assert.False(t, v.Cached)
	assert.Equal(t, uint64(7), v.Uint)
}

func TestDevice_CacheBytesAreCopied(t *testing.T) {
	dev, _ := newTestDevice(t, WithCacheDuration(time.Hour))

	v, err := dev.Read("label")
	require.NoError(t, err)
	v.Bytes[0] = 'z'

	v, err = dev.Read("label")
	require.NoError(t, err)
	assert.True(t, v.Cached)
	assert.Equal(t, []byte("abc"), v.Bytes)
}

func TestDevice_Concurrent(t *testing.T) {
	dev, _ := newTestDevice(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, dev.WriteUint("setpoint", uint64(i)))
			} else {
				_, err := dev.Read("counter")
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()
}

func TestNewDevice_Invalid(t *testing.T) {
	_, err := NewDevice("x", nil, &Map{})
	require.Error(t, err)
}

func TestDevice_ReadAll(t *testing.T) {
	dev, periph := newTestDevice(t, WithCacheDuration(time.Hour))

	values, err := dev.ReadAll()
	require.NoError(t, err)
	require.Len(t, values, 4)
	assert.Equal(t, "status", values[0].Register.Name)
	assert.Equal(t, "label", values[3].Register.Name)

	frames := periph.Frames()
	values, err = dev.ReadAll()
	require.NoError(t, err)
	assert.True(t, values[1].Cached)
	assert.Equal(t, frames, periph.Frames())

	values, err = dev.Refresh()
	require.NoError(t, err)
	assert.False(t, values[1].Cached)
	assert.Equal(t, frames+4, periph.Frames())
}

func TestDevice_ReadAllSkipsRejected(t *testing.T) {
	dev, _ := newTestDevice(t)

	m, err := NewMap(append(testRegs, Register{Name: "ghost", Address: 0x3FF, Width: Width8}))
	require.NoError(t, err)
	dev2, err := NewDevice("dev1", dev.Link(), m)
	require.NoError(t, err)

	values, err := dev2.ReadAll()
	require.NoError(t, err)
	assert.Len(t, values, 4)
}

func TestValue_View(t *testing.T) {
	at := time.Unix(1000, 0)

	v := Value{Register: testRegs[1], Uint: 0x1F, At: at}
	view := v.View()
	assert.Equal(t, "setpoint", view.Name)
	assert.Equal(t, uint16(0x11), view.Address)
	assert.Equal(t, "0x001F", view.Value)
	require.NotNil(t, view.Uint)
	assert.Equal(t, uint64(0x1F), *view.Uint)
	assert.Equal(t, at, view.At)

	mb := Value{Register: testRegs[3], Bytes: []byte{0xCA, 0xFE}, Cached: true}.View()
	assert.Equal(t, "cafe", mb.Value)
	assert.Nil(t, mb.Uint)
	assert.True(t, mb.Cached)
}

func TestDevice_RawAccess(t *testing.T) {
	dev, periph := newTestDevice(t, WithCacheDuration(time.Hour))

	v, err := dev.ReadAt(0x12, Width32)
	require.NoError(t, err)
	assert.Equal(t, "@0x012", v.Register.Name)
	assert.Equal(t, uint64(0x12345678), v.Uint)

	// prime the cache of the aliased named register
	_, err = dev.Read("setpoint")
	require.NoError(t, err)

	require.NoError(t, dev.WriteAt(0x11, Width16, "0x0102"))
	raw, _ := periph.Value(0x11)
	assert.Equal(t, []byte{0x02, 0x01}, raw)

	v, err = dev.Read("setpoint")
	require.NoError(t, err)
	assert.False(t, v.Cached)
	assert.Equal(t, uint64(0x0102), v.Uint)

	require.NoError(t, dev.WriteAt(0x100, WidthMultibyte, "de ad"))
	raw, _ = periph.Value(0x100)
	assert.Equal(t, []byte{0xDE, 0xAD}, raw)

	_, err = dev.ReadAt(0x400, Width8)
	require.ErrorIs(t, err, ErrInvalidRegister)
	require.ErrorIs(t, dev.WriteAt(0x11, Width8, "256"), ErrValueOutOfRange)
	require.ErrorIs(t, dev.WriteAt(0x11, Width(3), "1"), ErrInvalidWidth)

	_, err = dev.ReadAt(0x3FE, Width8)
	require.ErrorIs(t, err, remregs.ErrOperationRejected)
}
