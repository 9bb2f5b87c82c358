package remregs

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-remregs/internal/ringbuf"
	"github.com/arloliu/go-remregs/logger"
)

// Sentinel errors of the register protocol.
var (
	// Link-level errors.
	ErrLinkTimeout      = errors.New("remregs: no response within the read window")
	ErrHandshakeTimeout = errors.New("remregs: handshake timeout")
	ErrTransmit         = errors.New("remregs: transmit failed")

	// Operation-level errors.
	ErrOperationRejected = errors.New("remregs: operation rejected by peer")
	ErrInvalidLength     = errors.New("remregs: invalid length")

	// Validation errors, reported before anything is transmitted.
	ErrInvalidOpcode   = errors.New("remregs: invalid opcode")
	ErrInvalidAddress  = errors.New("remregs: register address out of range")
	ErrPayloadTooLarge = errors.New("remregs: multibyte payload too large")
	ErrShortBuffer     = errors.New("remregs: destination buffer too small")

	// ErrIncompleteFrame is returned by ParseFrame and FrameSize when more bytes are needed.
	ErrIncompleteFrame = errors.New("remregs: incomplete frame")
)

// Link is the initiator side of one serial register link.
//
// A Link owns the receive ring, the synchronization state and the metrics of
// one physical connection. The platform delivers received bytes through
// OnByteReceived from its byte-arrival context; every other method belongs
// to a single foreground context.
//
// Except for OnByteReceived, State and GetMetrics, Link is NOT goroutine-safe.
// Callers sharing a link between goroutines must serialize access.
type Link struct {
	platform Platform
	cfg      *LinkConfig
	logger   logger.Logger

	ring  *ringbuf.Ring
	state atomicLinkState

	metrics LinkMetrics
}

var _ ByteSink = (*Link)(nil)

// NewLink creates a link driving platform. The link starts Unsynced; the
// handshake runs on the first operation or an explicit Sync.
//
// cfg may be nil, in which case the defaults of NewLinkConfig are used.
func NewLink(platform Platform, cfg *LinkConfig) (*Link, error) {
	if platform == nil {
		return nil, errors.New("remregs: platform is nil")
	}

	if cfg == nil {
		var err error
		if cfg, err = NewLinkConfig(); err != nil {
			return nil, err
		}
	}

	ring, err := ringbuf.New(cfg.bufferSize)
	if err != nil {
		return nil, fmt.Errorf("remregs: %w", err)
	}

	l := &Link{
		platform: platform,
		cfg:      cfg,
		logger:   cfg.logger,
		ring:     ring,
	}
	l.state.Swap(Unsynced)

	return l, nil
}

// OnByteReceived is the byte-arrival hook. The platform calls it once per
// received byte from its receive context. Bytes flagged with a framing
// error are discarded.
func (l *Link) OnByteReceived(b byte, framingErr bool) {
	if framingErr {
		l.metrics.incFramingErrCount()
		return
	}

	l.ring.Push(b)
	l.metrics.incBytesRecv()
}

// State returns the current synchronization state.
func (l *Link) State() LinkState {
	return l.state.Get()
}

// IsSynced returns if the link is synchronized with its peer.
func (l *Link) IsSynced() bool {
	return l.State().IsSynced()
}

// Buffered returns the number of received bytes not yet consumed.
func (l *Link) Buffered() int {
	return l.ring.Len()
}

// Config returns the link configuration.
func (l *Link) Config() *LinkConfig {
	return l.cfg
}

// GetLogger returns the logger associated with the link.
func (l *Link) GetLogger() logger.Logger {
	return l.logger
}

// GetMetrics returns the metrics associated with the link.
func (l *Link) GetMetrics() *LinkMetrics {
	return &l.metrics
}

func (l *Link) setState(state LinkState) {
	prev := l.state.Swap(state)
	if prev == state {
		return
	}

	l.logger.Info("remregs: link state changed", "prevState", prev, "newState", state)

	if h := l.cfg.stateHandler; h != nil {
		h(l, prev, state)
	}
}

// transmit sends data byte by byte through the platform transmitter.
func (l *Link) transmit(data ...byte) error {
	for _, b := range data {
		if err := l.platform.TransmitByte(b); err != nil {
			return fmt.Errorf("%w: %w", ErrTransmit, err)
		}
		l.metrics.incBytesSent()
	}

	return nil
}
