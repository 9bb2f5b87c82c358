package remregs

import "time"

// Transmitter puts bytes on the wire.
type Transmitter interface {
	// TransmitByte blocks until the transmitter is idle, then sends b.
	TransmitByte(b byte) error
}

// Delayer provides the wall-clock wait used by every polling loop.
type Delayer interface {
	Delay(d time.Duration)
}

// Watchdog is serviced at least once per polling iteration so that a
// long wait never triggers a platform reset.
type Watchdog interface {
	ServiceLiveness()
}

// Receiver exposes the receiver overrun condition.
type Receiver interface {
	// Overrun reports whether the receiver lost a byte before it was read
	// from hardware.
	Overrun() bool
	// ResetReceiver clears the overrun condition by re-enabling the receiver.
	ResetReceiver()
}

// CriticalSection disables and re-enables the byte-arrival event.
type CriticalSection interface {
	EnterCritical()
	ExitCritical()
}

// Platform bundles the collaborators a link needs from its host.
//
// The byte-arrival side is not part of Platform: the host calls
// [Link.OnByteReceived] from its receive context instead.
type Platform interface {
	Transmitter
	Delayer
	Watchdog
	Receiver
	CriticalSection
}

// ByteSink receives bytes from the byte-arrival context.
type ByteSink interface {
	OnByteReceived(b byte, framingErr bool)
}
