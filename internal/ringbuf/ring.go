// Package ringbuf provides the wait-free byte ring that decouples the
// byte-arrival context from the foreground protocol logic.
package ringbuf

import (
	"errors"
	"sync/atomic"
)

// DefaultSize is the capacity used when none is configured.
const DefaultSize = 32

// ErrInvalidSize is returned when the requested capacity is not a power of two.
var ErrInvalidSize = errors.New("ringbuf: size must be a power of two >= 2")

// Ring is a fixed-capacity single-producer/single-consumer byte queue.
//
// The producer (Push) owns the write cursor and the consumer (TryPop) owns
// the read cursor. Cursors are free running and wrapped with a bitmask.
// Push never fails: when the producer laps the consumer the oldest unread
// bytes are overwritten, and the consumer skips forward on its next pop.
//
// At most one goroutine may call Push and at most one other goroutine may
// call TryPop, Len or Reset concurrently.
type Ring struct {
	buf  []atomic.Uint32
	mask uint32

	write atomic.Uint32
	read  atomic.Uint32

	overwritten atomic.Uint64
}

// New creates a Ring with the given capacity, which must be a power of two.
func New(size int) (*Ring, error) {
	if !IsPowerOfTwo(size) {
		return nil, ErrInvalidSize
	}

	return &Ring{
		buf:  make([]atomic.Uint32, size),
		mask: uint32(size - 1), //nolint:gosec
	}, nil
}

// IsPowerOfTwo reports whether n is a power of two greater than one.
func IsPowerOfTwo(n int) bool {
	return n >= 2 && n&(n-1) == 0
}

// Cap returns the capacity of the ring.
func (r *Ring) Cap() int {
	return len(r.buf)
}

// Push stores b at the write cursor and advances it.
func (r *Ring) Push(b byte) {
	w := r.write.Load()
	r.buf[w&r.mask].Store(uint32(b))
	r.write.Store(w + 1)
}

// TryPop returns the oldest unread byte, or false when the ring is empty.
func (r *Ring) TryPop() (byte, bool) {
	w := r.write.Load()
	rd := r.read.Load()

	if w == rd {
		return 0, false
	}

	if lag := w - rd; lag > uint32(len(r.buf)) {
		r.overwritten.Add(uint64(lag - uint32(len(r.buf))))
		rd = w - uint32(len(r.buf))
	}

	b := byte(r.buf[rd&r.mask].Load())
	r.read.Store(rd + 1)

	return b, true
}

// Len returns the number of unread bytes, capped at the capacity.
func (r *Ring) Len() int {
	n := r.write.Load() - r.read.Load()
	if n > uint32(len(r.buf)) {
		return len(r.buf)
	}

	return int(n)
}

// Overwritten returns how many unread bytes the consumer found overwritten.
func (r *Ring) Overwritten() uint64 {
	return r.overwritten.Load()
}

// Reset discards all unread bytes. Must be called from the consumer side.
func (r *Ring) Reset() {
	r.read.Store(r.write.Load())
}
