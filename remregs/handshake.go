package remregs

import "fmt"

// handshakePreamble is transmitted to bring the peer parser to a frame
// boundary: SyncPreambleLen x SyncPreambleByte followed by SyncMarker.
var handshakePreamble = func() []byte {
	p := make([]byte, SyncPreambleLen+1)
	for i := 0; i < SyncPreambleLen; i++ {
		p[i] = SyncPreambleByte
	}
	p[SyncPreambleLen] = SyncMarker

	return p
}()

// isHandshakeReply reports whether b acknowledges the preamble. Peers
// answer either SyncMarker or SyncMarkerAlt depending on their firmware.
func isHandshakeReply(b byte) bool {
	return b == SyncMarker || b == SyncMarkerAlt
}

// Sync runs the handshake that establishes a frame boundary with the peer.
//
// The link is set Unsynced, bytes left in the receive ring are dropped,
// the preamble is transmitted and the ring is polled at the sync cadence for a handshake reply. Other bytes are
// discarded. On success the link becomes Synced; when the ceiling is
// exhausted ErrHandshakeTimeout is returned and the link stays Unsynced.
func (l *Link) Sync() error {
	l.setState(Unsynced)
	l.metrics.incSyncCount()

	l.logger.Debug("remregs: start handshake", "stale", l.ring.Len())

	// a late reply to a timed-out exchange must not pass for the marker
	l.ring.Reset()

	if err := l.transmit(handshakePreamble...); err != nil {
		l.metrics.incSyncFailCount()
		return err
	}

	ok := boundedPoll(l.platform, l.cfg.syncPollInterval, l.cfg.syncPollCeiling,
		l.drainUntilHandshakeReply,
		l.platform.ServiceLiveness,
	)

	l.noteOverwrites()

	if !ok {
		l.metrics.incSyncFailCount()
		l.logger.Warn("remregs: handshake timeout", "timeout", l.cfg.SyncTimeout())

		return fmt.Errorf("%w: no reply within %v", ErrHandshakeTimeout, l.cfg.SyncTimeout())
	}

	l.setState(Synced)

	return nil
}

// drainUntilHandshakeReply consumes buffered bytes until a handshake reply
// is found or the ring is empty.
func (l *Link) drainUntilHandshakeReply() bool {
	for {
		b, ok := l.ring.TryPop()
		if !ok {
			return false
		}

		if isHandshakeReply(b) {
			return true
		}
	}
}
