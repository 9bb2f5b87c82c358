package remregs

import (
	"encoding/binary"
	"fmt"
)

// All-ones values returned by the getters on failure.
const (
	Invalid8  uint8  = 0xFF
	Invalid16 uint16 = 0xFFFF
	Invalid32 uint32 = 0xFFFFFFFF
)

// readPayload pulls a read response payload after an ACK. A timeout in the
// middle of the payload means the frame boundary is lost, so the link is
// unsynced.
func (l *Link) readPayload(frame *Frame, buf []byte) error {
	if err := l.ReadBytes(buf); err != nil {
		l.metrics.incPayloadTimeoutCount()
		l.logger.Warn("remregs: payload timeout, link unsynced",
			"op", frame.Opcode,
			"addr", frame.Address,
			"want", len(buf),
		)
		l.setState(Unsynced)

		return fmt.Errorf("%w: %s addr=%d payload", ErrLinkTimeout, frame.Opcode, frame.Address)
	}

	return nil
}

func (l *Link) getFixed(op Opcode, addr uint16, buf []byte) error {
	frame, err := NewFrame(op, addr, nil)
	if err != nil {
		return err
	}

	if err := l.perform(frame); err != nil {
		return err
	}

	return l.readPayload(frame, buf)
}

// GetReg8 reads an 8-bit register. On failure it returns Invalid8 and the error.
func (l *Link) GetReg8(addr uint16) (uint8, error) {
	var buf [1]byte
	if err := l.getFixed(OpRead8, addr, buf[:]); err != nil {
		return Invalid8, err
	}

	return buf[0], nil
}

// GetReg16 reads a 16-bit register. On failure it returns Invalid16 and the error.
func (l *Link) GetReg16(addr uint16) (uint16, error) {
	var buf [2]byte
	if err := l.getFixed(OpRead16, addr, buf[:]); err != nil {
		return Invalid16, err
	}

	return binary.LittleEndian.Uint16(buf[:]), nil
}

// GetReg32 reads a 32-bit register. On failure it returns Invalid32 and the error.
func (l *Link) GetReg32(addr uint16) (uint32, error) {
	var buf [4]byte
	if err := l.getFixed(OpRead32, addr, buf[:]); err != nil {
		return Invalid32, err
	}

	return binary.LittleEndian.Uint32(buf[:]), nil
}

// GetRegMultibyte reads a multibyte register into dst and returns the number
// of bytes read.
//
// dst must hold at least MaxMultibyteSize bytes since the register length is
// only known once the peer answers. A length byte above MaxMultibyteSize
// means the link lost its framing: the link is unsynced and
// ErrInvalidLength is returned.
func (l *Link) GetRegMultibyte(addr uint16, dst []byte) (int, error) {
	if len(dst) < MaxMultibyteSize {
		return 0, fmt.Errorf("%w: need %d bytes, got %d", ErrShortBuffer, MaxMultibyteSize, len(dst))
	}

	frame, err := NewFrame(OpReadMultibyte, addr, nil)
	if err != nil {
		return 0, err
	}

	if err := l.perform(frame); err != nil {
		return 0, err
	}

	var n [1]byte
	if err := l.readPayload(frame, n[:]); err != nil {
		return 0, err
	}

	if n[0] > MaxMultibyteSize {
		l.logger.Warn("remregs: invalid multibyte length, link unsynced",
			"addr", addr,
			"length", n[0],
		)
		l.setState(Unsynced)

		return 0, fmt.Errorf("%w: multibyte length %d > %d", ErrInvalidLength, n[0], MaxMultibyteSize)
	}

	if err := l.readPayload(frame, dst[:n[0]]); err != nil {
		return 0, err
	}

	return int(n[0]), nil
}

// SetReg8 writes an 8-bit register.
func (l *Link) SetReg8(addr uint16, val uint8) error {
	return l.Perform(OpWrite8, addr, []byte{val})
}

// SetReg16 writes a 16-bit register, little-endian on the wire.
func (l *Link) SetReg16(addr uint16, val uint16) error {
	return l.Perform(OpWrite16, addr, binary.LittleEndian.AppendUint16(nil, val))
}

// SetReg32 writes a 32-bit register, little-endian on the wire.
func (l *Link) SetReg32(addr uint16, val uint32) error {
	return l.Perform(OpWrite32, addr, binary.LittleEndian.AppendUint32(nil, val))
}

// SetRegMultibyte writes a multibyte register of up to MaxMultibyteSize bytes.
// The length byte is inserted by the frame encoder.
func (l *Link) SetRegMultibyte(addr uint16, data []byte) error {
	return l.Perform(OpWriteMultibyte, addr, data)
}
