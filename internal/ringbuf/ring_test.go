package ringbuf

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSize(t *testing.T) {
	for _, size := range []int{-8, 0, 1, 3, 12, 100} {
		r, err := New(size)
		assert.ErrorIs(t, err, ErrInvalidSize, "size %d", size)
		assert.Nil(t, r)
	}
}

func TestRing_Empty(t *testing.T) {
	r, err := New(DefaultSize)
	require.NoError(t, err)

	assert.Equal(t, DefaultSize, r.Cap())
	assert.Equal(t, 0, r.Len())

	_, ok := r.TryPop()
	assert.False(t, ok)
}

func TestRing_FIFO(t *testing.T) {
	r, err := New(16)
	require.NoError(t, err)

	in := []byte{0x06, 0x34, 0x12, 0xFF, 0x00, 0xAA, 0x55}
	for _, b := range in {
		r.Push(b)
	}
	assert.Equal(t, len(in), r.Len())

	out := make([]byte, 0, len(in))
	for {
		b, ok := r.TryPop()
		if !ok {
			break
		}
		out = append(out, b)
	}

	assert.Equal(t, in, out)
	assert.Equal(t, 0, r.Len())
	assert.Zero(t, r.Overwritten())
}

func TestRing_FIFO_AcrossWrap(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)

	// Interleave to walk the cursors around the ring several times.
	next := byte(0)
	expect := byte(0)
	for round := 0; round < 10; round++ {
		for i := 0; i < 3; i++ {
			r.Push(next)
			next++
		}
		for i := 0; i < 3; i++ {
			b, ok := r.TryPop()
			require.True(t, ok)
			assert.Equal(t, expect, b)
			expect++
		}
	}
}

func TestRing_OverflowDropsOldest(t *testing.T) {
	r, err := New(4)
	require.NoError(t, err)

	for b := byte(1); b <= 5; b++ {
		r.Push(b)
	}
	assert.Equal(t, 4, r.Len())

	var out []byte
	for {
		b, ok := r.TryPop()
		if !ok {
			break
		}
		out = append(out, b)
	}

	assert.Equal(t, []byte{2, 3, 4, 5}, out)
	assert.Equal(t, uint64(1), r.Overwritten())
}

func TestRing_Reset(t *testing.T) {
	r, err := New(8)
	require.NoError(t, err)

	r.Push(1)
	r.Push(2)
	r.Reset()

	assert.Equal(t, 0, r.Len())
	_, ok := r.TryPop()
	assert.False(t, ok)

	r.Push(3)
	b, ok := r.TryPop()
	require.True(t, ok)
	assert.Equal(t, byte(3), b)
}

func TestRing_ConcurrentProducerConsumer(t *testing.T) {
	r, err := New(1024)
	require.NoError(t, err)

	const total = 512

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			r.Push(byte(i))
		}
	}()

	got := make([]byte, 0, total)
	for len(got) < total {
		if b, ok := r.TryPop(); ok {
			got = append(got, b)
		}
	}
	wg.Wait()

	for i, b := range got {
		assert.Equal(t, byte(i), b)
	}
}

func BenchmarkRing_PushPop(b *testing.B) {
	r, _ := New(DefaultSize)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r.Push(byte(i))
		_, _ = r.TryPop()
	}
}
