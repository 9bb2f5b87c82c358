package remregs

import (
	"fmt"
)

// Wire-level constants of the register protocol.
const (
	// ACK is the positive acknowledgement of a register operation.
	ACK byte = 0x06

	// NAK is the negative acknowledgement of a register operation.
	NAK byte = 0x0F

	// TimeoutSentinel is what the byte reader yields when its window expires.
	// It is also a legitimate data byte; a response byte with this value is
	// treated as a timeout.
	TimeoutSentinel byte = 0xFF

	// SyncPreambleByte is repeated SyncPreambleLen times to flush the peer parser.
	SyncPreambleByte byte = 0xFF

	// SyncPreambleLen is the number of SyncPreambleByte sent before SyncMarker.
	SyncPreambleLen = 24

	// SyncMarker terminates the preamble; peers echo it as the handshake reply.
	SyncMarker byte = 0xAA

	// SyncMarkerAlt is the handshake reply sent by the alternate peer firmware.
	SyncMarkerAlt byte = 0x55
)

// Register space limits.
const (
	// MaxAddress is the highest register address (10-bit address space).
	MaxAddress = 0x3FF

	// MaxMultibyteSize is the largest multibyte register payload.
	MaxMultibyteSize = 29
)

// Opcode selects the width and direction of a register operation (3 bits).
type Opcode uint8

const (
	OpRead8 Opcode = iota
	OpRead16
	OpRead32
	OpReadMultibyte
	OpWrite8
	OpWrite16
	OpWrite32
	OpWriteMultibyte
)

// IsValid returns if op fits the 3-bit opcode field.
func (op Opcode) IsValid() bool { return op <= OpWriteMultibyte }

// IsRead returns if op reads a register.
func (op Opcode) IsRead() bool { return op <= OpReadMultibyte }

// IsWrite returns if op writes a register.
func (op Opcode) IsWrite() bool { return op >= OpWrite8 && op <= OpWriteMultibyte }

// IsMultibyte returns if op addresses a variable-length register.
func (op Opcode) IsMultibyte() bool { return op == OpReadMultibyte || op == OpWriteMultibyte }

// ValueSize returns the fixed value size in bytes implied by op, or 0 for
// multibyte opcodes.
func (op Opcode) ValueSize() int {
	switch op & 0x03 {
	case 0:
		return 1
	case 1:
		return 2
	case 2:
		return 4
	default:
		return 0
	}
}

// String returns string representation of the opcode.
func (op Opcode) String() string {
	switch op {
	case OpRead8:
		return "read8"
	case OpRead16:
		return "read16"
	case OpRead32:
		return "read32"
	case OpReadMultibyte:
		return "read-mb"
	case OpWrite8:
		return "write8"
	case OpWrite16:
		return "write16"
	case OpWrite32:
		return "write32"
	case OpWriteMultibyte:
		return "write-mb"
	default:
		return fmt.Sprintf("opcode(%d)", uint8(op))
	}
}

// Frame is one register request.
//
// On the wire: [Header][Address][Length (write-mb only)][Payload].
// Header is (opcode << 2) | address bits 9..8, Address is address bits 7..0.
type Frame struct {
	Opcode  Opcode
	Address uint16
	Payload []byte
}

// NewFrame creates a validated frame.
func NewFrame(op Opcode, addr uint16, payload []byte) (*Frame, error) {
	f := &Frame{Opcode: op, Address: addr, Payload: payload}
	if err := f.Validate(); err != nil {
		return nil, err
	}

	return f, nil
}

// Validate checks the opcode, address range and payload size.
func (f *Frame) Validate() error {
	if !f.Opcode.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidOpcode, uint8(f.Opcode))
	}

	if f.Address > MaxAddress {
		return fmt.Errorf("%w: %d > %d", ErrInvalidAddress, f.Address, MaxAddress)
	}

	switch {
	case f.Opcode.IsRead():
		if len(f.Payload) != 0 {
			return fmt.Errorf("%w: %s carries no payload, got %d bytes", ErrInvalidLength, f.Opcode, len(f.Payload))
		}
	case f.Opcode == OpWriteMultibyte:
		if len(f.Payload) > MaxMultibyteSize {
			return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(f.Payload), MaxMultibyteSize)
		}
	default:
		if want := f.Opcode.ValueSize(); len(f.Payload) != want {
			return fmt.Errorf("%w: %s needs %d bytes, got %d", ErrInvalidLength, f.Opcode, want, len(f.Payload))
		}
	}

	return nil
}

// Header returns the header byte.
func (f *Frame) Header() byte {
	return byte(f.Opcode)<<2 | byte(f.Address>>8)&0x03
}

// Size returns the number of bytes Pack produces.
func (f *Frame) Size() int {
	n := 2 + len(f.Payload)
	if f.Opcode == OpWriteMultibyte {
		n++
	}

	return n
}

// Pack serializes the frame to its wire format.
func (f *Frame) Pack() []byte {
	buf := make([]byte, 0, f.Size())
	buf = append(buf, f.Header(), byte(f.Address))
	if f.Opcode == OpWriteMultibyte {
		buf = append(buf, byte(len(f.Payload)))
	}

	return append(buf, f.Payload...)
}

// FrameSize returns the total wire size of the frame starting at data[0].
//
// It returns ErrIncompleteFrame when data is too short to tell, which for a
// write-mb frame means the length byte has not been seen yet.
func FrameSize(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrIncompleteFrame
	}

	if data[0]>>2 > byte(OpWriteMultibyte) {
		return 0, fmt.Errorf("%w: header 0x%02X", ErrInvalidOpcode, data[0])
	}

	op := Opcode(data[0] >> 2)
	switch {
	case op.IsRead():
		return 2, nil
	case op == OpWriteMultibyte:
		if len(data) < 3 {
			return 0, ErrIncompleteFrame
		}
		if data[2] > MaxMultibyteSize {
			return 0, fmt.Errorf("%w: announced %d > %d", ErrPayloadTooLarge, data[2], MaxMultibyteSize)
		}

		return 3 + int(data[2]), nil
	default:
		return 2 + op.ValueSize(), nil
	}
}

// ParseFrame decodes a frame from its wire format.
//
// data must hold exactly one frame; ErrIncompleteFrame is returned when
// more bytes are needed.
func ParseFrame(data []byte) (*Frame, error) {
	size, err := FrameSize(data)
	if err != nil {
		return nil, err
	}

	if len(data) < size {
		return nil, ErrIncompleteFrame
	}
	if len(data) > size {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrInvalidLength, len(data)-size)
	}

	f := &Frame{
		Opcode:  Opcode(data[0] >> 2),
		Address: uint16(data[0]&0x03)<<8 | uint16(data[1]),
	}

	offset := 2
	if f.Opcode == OpWriteMultibyte {
		offset = 3
	}
	if size > offset {
		f.Payload = make([]byte, size-offset)
		copy(f.Payload, data[offset:])
	}

	return f, nil
}
