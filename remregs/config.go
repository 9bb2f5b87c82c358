package remregs

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-remregs/internal/ringbuf"
	"github.com/arloliu/go-remregs/logger"
)

// Default polling parameters of the byte reader and the synchronizer.
const (
	DefaultReadPollInterval = 10 * time.Millisecond // Byte reader cadence
	DefaultReadPollCeiling  = 200                   // ~2s response window

	DefaultSyncPollInterval = 1 * time.Millisecond // Handshake reply cadence
	DefaultSyncPollCeiling  = 250                  // ~250ms handshake window

	DefaultBufferSize = ringbuf.DefaultSize
)

// Limits accepted by the With* options.
const (
	MinPollInterval = 100 * time.Microsecond
	MaxPollInterval = 1 * time.Second

	MinPollCeiling = 1
	MaxPollCeiling = 65535

	MinBufferSize = 2
	MaxBufferSize = 4096
)

// LinkConfig holds the configuration of a register link.
type LinkConfig struct {
	readPollInterval time.Duration
	readPollCeiling  int

	syncPollInterval time.Duration
	syncPollCeiling  int

	// bufferSize is the receive ring capacity, a power of two.
	bufferSize int

	stateHandler LinkStateChangeHandler

	logger logger.Logger
}

// NewLinkConfig creates a link configuration.
//
// opts are functional options applied in order; see With* functions.
func NewLinkConfig(opts ...LinkOption) (*LinkConfig, error) {
	cfg := &LinkConfig{
		readPollInterval: DefaultReadPollInterval,
		readPollCeiling:  DefaultReadPollCeiling,
		syncPollInterval: DefaultSyncPollInterval,
		syncPollCeiling:  DefaultSyncPollCeiling,
		bufferSize:       DefaultBufferSize,
		logger:           logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// ReadPollInterval returns the byte reader poll cadence.
func (cfg *LinkConfig) ReadPollInterval() time.Duration { return cfg.readPollInterval }

// ReadPollCeiling returns the number of byte reader poll iterations before a timeout.
func (cfg *LinkConfig) ReadPollCeiling() int { return cfg.readPollCeiling }

// ReadTimeout returns the nominal response window (interval x ceiling).
func (cfg *LinkConfig) ReadTimeout() time.Duration {
	return cfg.readPollInterval * time.Duration(cfg.readPollCeiling)
}

// SyncPollInterval returns the handshake reply poll cadence.
func (cfg *LinkConfig) SyncPollInterval() time.Duration { return cfg.syncPollInterval }

// SyncPollCeiling returns the number of handshake poll iterations before giving up.
func (cfg *LinkConfig) SyncPollCeiling() int { return cfg.syncPollCeiling }

// SyncTimeout returns the nominal handshake window (interval x ceiling).
func (cfg *LinkConfig) SyncTimeout() time.Duration {
	return cfg.syncPollInterval * time.Duration(cfg.syncPollCeiling)
}

// BufferSize returns the receive ring capacity.
func (cfg *LinkConfig) BufferSize() int { return cfg.bufferSize }

// GetLogger returns the configured logger.
func (cfg *LinkConfig) GetLogger() logger.Logger { return cfg.logger }

// --- LinkOption ---

// LinkOption is a functional option for configuring a LinkConfig.
type LinkOption interface {
	apply(*LinkConfig) error
}

type linkOptFunc func(*LinkConfig) error

func (f linkOptFunc) apply(cfg *LinkConfig) error { return f(cfg) }

func validatePoll(what string, interval time.Duration, ceiling int) error {
	if interval < MinPollInterval || interval > MaxPollInterval {
		return fmt.Errorf("remregs: %s poll interval %v out of range [%v, %v]",
			what, interval, MinPollInterval, MaxPollInterval)
	}
	if ceiling < MinPollCeiling || ceiling > MaxPollCeiling {
		return fmt.Errorf("remregs: %s poll ceiling %d out of range [%d, %d]",
			what, ceiling, MinPollCeiling, MaxPollCeiling)
	}

	return nil
}

// WithReadPoll sets the byte reader cadence and its iteration ceiling.
// The response window is interval x ceiling.
func WithReadPoll(interval time.Duration, ceiling int) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if err := validatePoll("read", interval, ceiling); err != nil {
			return err
		}
		cfg.readPollInterval = interval
		cfg.readPollCeiling = ceiling

		return nil
	})
}

// WithSyncPoll sets the handshake reply cadence and its iteration ceiling.
func WithSyncPoll(interval time.Duration, ceiling int) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if err := validatePoll("sync", interval, ceiling); err != nil {
			return err
		}
		cfg.syncPollInterval = interval
		cfg.syncPollCeiling = ceiling

		return nil
	})
}

// WithBufferSize sets the receive ring capacity. It must be a power of two
// in [MinBufferSize, MaxBufferSize].
func WithBufferSize(size int) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if size < MinBufferSize || size > MaxBufferSize || !ringbuf.IsPowerOfTwo(size) {
			return fmt.Errorf("remregs: buffer size %d must be a power of two in [%d, %d]",
				size, MinBufferSize, MaxBufferSize)
		}
		cfg.bufferSize = size

		return nil
	})
}

// WithStateChangeHandler registers a handler invoked on every link state transition.
func WithStateChangeHandler(h LinkStateChangeHandler) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if h == nil {
			return errors.New("remregs: state change handler must not be nil")
		}
		cfg.stateHandler = h

		return nil
	})
}

// WithLogger sets the logger for the link.
func WithLogger(l logger.Logger) LinkOption {
	return linkOptFunc(func(cfg *LinkConfig) error {
		if l == nil {
			return errors.New("remregs: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
