package remregs

import (
	"fmt"
)

// Perform executes one register operation and interprets its acknowledgement.
//
// The sequence is:
//
//  1. Synchronize first if the link is Unsynced; a failed handshake fails
//     the operation before any frame is sent.
//  2. Transmit the frame (header, address, length byte for write-mb only,
//     payload).
//  3. Read one response byte:
//     - TimeoutSentinel: the link becomes Unsynced and ErrLinkTimeout is returned.
//     This is the only outcome that forces a new handshake.
//     - ACK: success. For read opcodes the caller pulls the payload with
//     ReadByte/ReadBytes; nothing more is read for writes.
//     - anything else, NAK included: ErrOperationRejected. The link stays Synced.
//
// Perform never retries. A frame that fails validation is rejected before
// anything is transmitted.
func (l *Link) Perform(op Opcode, addr uint16, payload []byte) error {
	frame, err := NewFrame(op, addr, payload)
	if err != nil {
		return err
	}

	return l.perform(frame)
}

func (l *Link) perform(frame *Frame) error {
	if !l.IsSynced() {
		if err := l.Sync(); err != nil {
			return err
		}
	}

	l.metrics.incOpCount()

	if err := l.transmit(frame.Pack()...); err != nil {
		// A partial frame leaves the peer parser mid-frame.
		l.setState(Unsynced)
		return err
	}

	// The sentinel check is on the value, not the error: a genuine 0xFF
	// reply is indistinguishable from silence and is handled as a timeout.
	r, _ := l.ReadByte()

	switch r {
	case TimeoutSentinel:
		l.metrics.incResponseTimeoutCount()
		l.logger.Warn("remregs: no response, link unsynced",
			"op", frame.Opcode,
			"addr", frame.Address,
			"timeout", l.cfg.ReadTimeout(),
		)
		l.setState(Unsynced)

		return fmt.Errorf("%w: %s addr=%d", ErrLinkTimeout, frame.Opcode, frame.Address)

	case ACK:
		l.metrics.incAckCount()

		return nil

	default:
		l.metrics.incRejectCount()
		l.logger.Debug("remregs: operation rejected",
			"op", frame.Opcode,
			"addr", frame.Address,
			"reply", fmt.Sprintf("0x%02X", r),
		)

		return &RejectError{Opcode: frame.Opcode, Address: frame.Address, Reply: r}
	}
}

// RejectError reports an operation answered with NAK or another non-ACK byte.
// It matches ErrOperationRejected with errors.Is.
type RejectError struct {
	Opcode  Opcode
	Address uint16
	Reply   byte
}

// Error implements error.
func (e *RejectError) Error() string {
	if e.Reply == NAK {
		return fmt.Sprintf("%s: %s addr=%d NAK", ErrOperationRejected, e.Opcode, e.Address)
	}

	return fmt.Sprintf("%s: %s addr=%d reply=0x%02X", ErrOperationRejected, e.Opcode, e.Address, e.Reply)
}

// Is reports whether target is ErrOperationRejected.
func (e *RejectError) Is(target error) bool {
	return target == ErrOperationRejected
}

// IsNAK returns if the peer replied with NAK rather than an unexpected byte.
func (e *RejectError) IsNAK() bool {
	return e.Reply == NAK
}
