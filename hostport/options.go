package hostport

import (
	"errors"
	"fmt"

	"github.com/arloliu/go-remregs/logger"
)

const (
	DefaultReadChunk = 64

	MinReadChunk = 1
	MaxReadChunk = 4096
)

// PortOption is a functional option for configuring a Port.
type PortOption interface {
	apply(*Port) error
}

type portOptFunc func(*Port) error

func (f portOptFunc) apply(p *Port) error { return f(p) }

// WithLivenessHook sets the function called on every poll iteration of the
// link, typically to kick a hardware or service watchdog.
func WithLivenessHook(fn func()) PortOption {
	return portOptFunc(func(p *Port) error {
		if fn == nil {
			return errors.New("hostport: liveness hook must not be nil")
		}
		p.liveness = fn

		return nil
	})
}

// WithReadChunk sets the size of the buffer the receive goroutine reads into.
func WithReadChunk(size int) PortOption {
	return portOptFunc(func(p *Port) error {
		if size < MinReadChunk || size > MaxReadChunk {
			return fmt.Errorf("hostport: read chunk %d out of range [%d, %d]", size, MinReadChunk, MaxReadChunk)
		}
		p.readChunk = size

		return nil
	})
}

// WithLogger sets the logger of the port.
func WithLogger(l logger.Logger) PortOption {
	return portOptFunc(func(p *Port) error {
		if l == nil {
			return errors.New("hostport: logger must not be nil")
		}
		p.logger = l

		return nil
	})
}
