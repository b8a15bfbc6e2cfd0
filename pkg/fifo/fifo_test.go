package fifo

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapacityForDuration(t *testing.T) {
	c := CapacityForDuration(0.5, 48000, 2)
	assert.Equal(t, int(0.5*48000*2), c)
	// Below MinSeconds is clamped up.
	cMin := CapacityForDuration(0.01, 48000, 2)
	assert.Equal(t, int(MinSeconds*48000*2), cMin)
}

func TestWriteReadBasic(t *testing.T) {
	f := New(8)
	n := f.Write([]float32{1, 2, 3})
	assert.Equal(t, 3, n)
	assert.Equal(t, 3, f.AvailableRead())
	assert.Equal(t, 5, f.AvailableWrite())

	dst := make([]float32, 3)
	r := f.Read(dst)
	assert.Equal(t, 3, r)
	assert.Equal(t, []float32{1, 2, 3}, dst)
	assert.Equal(t, 0, f.AvailableRead())
}

func TestWriteOverrunDropsAndCounts(t *testing.T) {
	f := New(4)
	n := f.Write([]float32{1, 2, 3, 4, 5, 6})
	assert.Equal(t, 4, n)
	assert.Equal(t, uint64(2), f.Overruns())
}

func TestReadUnderrunReturnsShort(t *testing.T) {
	f := New(4)
	f.Write([]float32{1, 2})
	dst := make([]float32, 4)
	n := f.Read(dst)
	assert.Equal(t, 2, n)
	// dst[n:] is left for the caller to pad; the fifo itself does not zero it.
}

func TestWrapAroundPreservesOrder(t *testing.T) {
	f := New(4)
	f.Write([]float32{1, 2, 3})
	dst := make([]float32, 2)
	f.Read(dst) // consumes 1, 2; tail now at 2
	f.Write([]float32{4, 5})
	rest := make([]float32, 3)
	n := f.Read(rest)
	require.Equal(t, 3, n)
	assert.Equal(t, []float32{3, 4, 5}, rest)
}

// Invariant 10: FIFO conservation under concurrent SPSC access. The
// producer retries on back-pressure so this run is drop-free, isolating
// the conservation identity from overrun bookkeeping (covered above).
func TestConservationUnderConcurrentAccess(t *testing.T) {
	f := New(16)
	const total = 50000
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		source := []float32{1, 2, 3}
		written := 0
		for written < total {
			remaining := total - written
			chunk := source
			if remaining < len(chunk) {
				chunk = chunk[:remaining]
			}
			// Offer only what fits, so Write never drops (and never counts
			// an overrun); a full FIFO makes this an empty write, retried.
			if avail := f.AvailableWrite(); avail < len(chunk) {
				chunk = chunk[:avail]
			}
			written += f.Write(chunk)
		}
	}()

	go func() {
		defer wg.Done()
		dst := make([]float32, 5)
		read := 0
		for read < total {
			read += f.Read(dst)
		}
	}()

	wg.Wait()
	assert.Equal(t, uint64(total), f.TotalWritten())
	assert.Equal(t, uint64(total), f.TotalRead())
	assert.Equal(t, uint64(0), f.Overruns())
	assert.Equal(t, f.TotalWritten(), f.TotalRead()+uint64(f.AvailableRead())+f.Overruns())
}
