package remregs

import (
	"time"
)

// boundedPoll calls try up to ceiling times, waiting interval and running
// idle after every unsuccessful attempt. It reports whether try succeeded.
//
// This is the only way the link waits: there is no scheduler to block on,
// so idle must service liveness on every iteration.
func boundedPoll(d Delayer, interval time.Duration, ceiling int, try func() bool, idle func()) bool {
	for i := 0; i < ceiling; i++ {
		if try() {
			return true
		}

		d.Delay(interval)
		idle()
	}

	return false
}

// clearOverrun re-enables the receiver after an overrun. The reset runs with
// the byte-arrival event disabled so that no byte is lost while it happens.
func (l *Link) clearOverrun() {
	if !l.platform.Overrun() {
		return
	}

	l.platform.EnterCritical()
	l.platform.ResetReceiver()
	l.platform.ExitCritical()

	l.metrics.incOverrunCount()
	l.logger.Debug("remregs: receiver overrun cleared")
}

func (l *Link) readIdle() {
	l.clearOverrun()
	l.platform.ServiceLiveness()
}

// ReadByte returns the next received byte, waiting up to the configured
// read window.
//
// On timeout it returns TimeoutSentinel together with ErrLinkTimeout. The
// link state is not changed here; Perform and the register getters decide
// what a timeout means.
func (l *Link) ReadByte() (byte, error) {
	var b byte

	ok := boundedPoll(l.platform, l.cfg.readPollInterval, l.cfg.readPollCeiling,
		func() bool {
			var popped bool
			b, popped = l.ring.TryPop()

			return popped
		},
		l.readIdle,
	)

	l.noteOverwrites()

	if !ok {
		return TimeoutSentinel, ErrLinkTimeout
	}

	return b, nil
}

// ReadBytes fills buf by calling ReadByte len(buf) times.
//
// Every slot is read even after a timeout, so timed-out slots hold
// TimeoutSentinel. ErrLinkTimeout is returned if any read timed out.
func (l *Link) ReadBytes(buf []byte) error {
	var firstErr error

	for i := range buf {
		b, err := l.ReadByte()
		buf[i] = b

		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

// noteOverwrites publishes ring overflow losses detected by the consumer.
func (l *Link) noteOverwrites() {
	n := l.ring.Overwritten()
	prev := l.metrics.OverwriteCount.Swap(n)
	if n != prev {
		l.logger.Warn("remregs: receive buffer overflow, oldest bytes dropped",
			"dropped", n-prev,
			"bufferSize", l.ring.Cap(),
		)
	}
}
