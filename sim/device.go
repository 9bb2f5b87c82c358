// Package sim provides a simulated remregs peripheral. It answers the
// handshake and register frames on any byte stream and is used to exercise
// links and tools without hardware.
package sim

import (
	"bufio"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-remregs/internal/util"
	"github.com/arloliu/go-remregs/logger"
	"github.com/arloliu/go-remregs/remregs"
)

// Device is a simulated peripheral with a sparse register file.
//
// Frames addressing unknown registers and writes to read-only registers are
// answered with NAK. A muted device swallows frames without answering.
type Device struct {
	mu       sync.Mutex
	regs     map[uint16][]byte
	readOnly map[uint16]bool

	syncReply byte
	muted     atomic.Bool

	frames atomic.Uint64
	syncs  atomic.Uint64

	logger logger.Logger
}

// NewDevice creates a device with no registers that answers the handshake
// with remregs.SyncMarker.
func NewDevice() *Device {
	return &Device{
		regs:      make(map[uint16][]byte),
		readOnly:  make(map[uint16]bool),
		syncReply: remregs.SyncMarker,
		logger:    logger.GetLogger(),
	}
}

// SetSyncReply sets the byte answered to the handshake marker.
func (d *Device) SetSyncReply(b byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.syncReply = b
}

// SetLogger sets the logger of the device.
func (d *Device) SetLogger(l logger.Logger) {
	d.logger = l
}

// Define creates or replaces register addr with the given contents.
func (d *Device) Define(addr uint16, value []byte, readOnly bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.regs[addr] = util.CloneSlice(value, 0)
	d.readOnly[addr] = readOnly
}

// Value returns a copy of register addr.
func (d *Device) Value(addr uint16) ([]byte, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	v, ok := d.regs[addr]
	if !ok {
		return nil, false
	}

	return util.CloneSlice(v, 0), true
}

// Mute stops (true) or resumes (false) answering frames and handshakes.
func (d *Device) Mute(muted bool) {
	d.muted.Store(muted)
}

// Frames returns the number of complete frames received.
func (d *Device) Frames() uint64 { return d.frames.Load() }

// Syncs returns the number of handshake markers received.
func (d *Device) Syncs() uint64 { return d.syncs.Load() }

// Serve answers frames read from rw until the stream ends. A closed stream
// is not an error.
func (d *Device) Serve(rw io.ReadWriter) error {
	r := bufio.NewReader(rw)

	for {
		reply, err := d.next(r)
		if err != nil {
			return streamErr(err)
		}

		if len(reply) == 0 || d.muted.Load() {
			continue
		}

		if _, err := rw.Write(reply); err != nil {
			return streamErr(err)
		}
	}
}

func streamErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}

	return err
}

// next consumes one handshake or frame and returns the bytes to answer.
func (d *Device) next(r *bufio.Reader) ([]byte, error) {
	hdr, err := r.ReadByte()
	if err != nil {
		return nil, err
	}

	switch hdr {
	case remregs.SyncPreambleByte:
		return nil, nil
	case remregs.SyncMarker:
		d.syncs.Add(1)
		d.mu.Lock()
		defer d.mu.Unlock()

		return []byte{d.syncReply}, nil
	}

	if !remregs.Opcode(hdr >> 2).IsValid() {
		// not a header: stay at the boundary until the next handshake
		return nil, nil
	}

	raw := []byte{hdr}
	for {
		n, err := remregs.FrameSize(raw)
		if errors.Is(err, remregs.ErrIncompleteFrame) {
			b, rerr := r.ReadByte()
			if rerr != nil {
				return nil, rerr
			}
			raw = append(raw, b)

			continue
		}
		if err != nil {
			d.logger.Debug("sim: dropping malformed frame", "error", err)
			return nil, nil
		}

		for len(raw) < n {
			b, rerr := r.ReadByte()
			if rerr != nil {
				return nil, rerr
			}
			raw = append(raw, b)
		}

		break
	}

	frame, err := remregs.ParseFrame(raw)
	if err != nil {
		d.logger.Debug("sim: dropping malformed frame", "error", err)
		return nil, nil
	}

	d.frames.Add(1)

	return d.handle(frame), nil
}

func (d *Device) handle(f *remregs.Frame) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	val, ok := d.regs[f.Address]

	if f.Opcode.IsWrite() {
		if !ok || d.readOnly[f.Address] {
			return []byte{remregs.NAK}
		}
		d.regs[f.Address] = util.CloneSlice(f.Payload, 0)

		return []byte{remregs.ACK}
	}

	if !ok {
		return []byte{remregs.NAK}
	}

	if f.Opcode.IsMultibyte() {
		if len(val) > remregs.MaxMultibyteSize {
			val = val[:remregs.MaxMultibyteSize]
		}
		reply := append([]byte{remregs.ACK, byte(len(val))}, val...)

		return reply
	}

	// fixed width: zero-extend or truncate the stored value
	reply := append([]byte{remregs.ACK}, util.CloneSlice(val, f.Opcode.ValueSize())...)

	return reply
}
