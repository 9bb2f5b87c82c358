// Package hostport runs a remregs link on an operating system: a serial
// device, a TCP socket to a serial bridge, or any other byte stream.
//
// A Port implements remregs.Platform on top of an io.ReadWriteCloser. A
// receive goroutine stands in for the byte-arrival interrupt and a mutex
// stands in for masking it.
//
//	rwc, err := hostport.Dial("/dev/ttyUSB0", 115200)
//	port, err := hostport.New(rwc)
//	link, err := remregs.NewLink(port, nil)
//	err = port.Start(ctx, link)
//	defer port.Close()
package hostport

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-remregs/internal/pool"
	"github.com/arloliu/go-remregs/logger"
	"github.com/arloliu/go-remregs/remregs"
)

var (
	ErrPortClosed     = errors.New("hostport: port closed")
	ErrAlreadyStarted = errors.New("hostport: receive loop already started")
)

// Port adapts a byte stream to the remregs platform model.
type Port struct {
	rwc    io.ReadWriteCloser
	logger logger.Logger

	liveness  func()
	readChunk int

	// rxMu is held while a received byte is delivered; holding it from the
	// foreground masks byte arrival.
	rxMu sync.Mutex

	started   atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	readErr atomic.Pointer[error]
}

var _ remregs.Platform = (*Port)(nil)

// New creates a Port over rwc. The port owns rwc and closes it on Close.
func New(rwc io.ReadWriteCloser, opts ...PortOption) (*Port, error) {
	if rwc == nil {
		return nil, errors.New("hostport: stream is nil")
	}

	p := &Port{
		rwc:       rwc,
		logger:    logger.GetLogger(),
		readChunk: DefaultReadChunk,
		done:      make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt.apply(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

// Start launches the receive goroutine, which feeds every byte read from
// the stream to sink until ctx is cancelled, the port is closed or the
// stream fails.
func (p *Port) Start(ctx context.Context, sink remregs.ByteSink) error {
	if sink == nil {
		return errors.New("hostport: sink is nil")
	}

	if p.isClosed() {
		return ErrPortClosed
	}

	if !p.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	p.wg.Add(2)

	go func() {
		defer p.wg.Done()
		p.receiveLoop(sink)
	}()

	go func() {
		defer p.wg.Done()
		select {
		case <-ctx.Done():
			_ = p.Close()
		case <-p.done:
		}
	}()

	return nil
}

// Close stops the receive goroutine and closes the stream. Pending Delay
// calls return early.
func (p *Port) Close() error {
	var err error

	p.closeOnce.Do(func() {
		close(p.done)

		if cerr := p.rwc.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) {
			err = cerr
		}

		p.logger.Debug("hostport: port closed")
	})

	return err
}

// Wait blocks until the goroutines started by Start have exited.
func (p *Port) Wait() {
	p.wg.Wait()
}

// Done returns a channel closed when the port closes.
func (p *Port) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that stopped the receive goroutine, if any.
func (p *Port) Err() error {
	if e := p.readErr.Load(); e != nil {
		return *e
	}

	return nil
}

func (p *Port) isClosed() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *Port) receiveLoop(sink remregs.ByteSink) {
	buf := make([]byte, p.readChunk)

	for {
		n, err := p.rwc.Read(buf)

		if n > 0 {
			p.rxMu.Lock()
			for _, b := range buf[:n] {
				sink.OnByteReceived(b, false)
			}
			p.rxMu.Unlock()
		}

		if err != nil {
			if !p.isClosed() && !isClosedError(err) {
				p.logger.Error("hostport: receive failed", "error", err)
				p.readErr.Store(&err)
			}
			_ = p.Close()

			return
		}

		if p.isClosed() {
			return
		}
	}
}

// --- remregs.Platform ---

// TransmitByte writes one byte to the stream.
func (p *Port) TransmitByte(b byte) error {
	if p.isClosed() {
		return ErrPortClosed
	}

	n, err := p.rwc.Write([]byte{b})
	if err != nil {
		return err
	}

	if n != 1 {
		return io.ErrShortWrite
	}

	return nil
}

// Delay sleeps for d. It returns early once the port is closed so that a
// link polling a dead port unwinds quickly.
func (p *Port) Delay(d time.Duration) {
	pool.Sleep(d, p.done)
}

// ServiceLiveness calls the liveness hook, if any.
func (p *Port) ServiceLiveness() {
	if p.liveness != nil {
		p.liveness()
	}
}

// Overrun always reports false: the operating system buffers the stream.
func (p *Port) Overrun() bool { return false }

// ResetReceiver is a no-op on hosted streams.
func (p *Port) ResetReceiver() {}

// EnterCritical blocks byte delivery until ExitCritical.
func (p *Port) EnterCritical() { p.rxMu.Lock() }

// ExitCritical resumes byte delivery.
func (p *Port) ExitCritical() { p.rxMu.Unlock() }

func isClosedError(err error) bool {
	return errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe)
}
