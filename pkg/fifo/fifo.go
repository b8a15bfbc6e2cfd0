// Package fifo implements DeviceFifo: a single-producer/
// single-consumer ring of device-format float32 samples bridging the
// pipeline worker (producer) and the device callback (consumer).
package fifo

import (
	"math"
	"sync/atomic"
)

const (
	// DefaultSeconds is the default ring capacity in seconds of audio.
	DefaultSeconds = 0.5
	// MinSeconds is the minimum allowed ring capacity in seconds.
	MinSeconds = 0.1
)

// CapacityForDuration computes capacity = ceil(seconds*rate*channels),
// clamping seconds up to MinSeconds first.
func CapacityForDuration(seconds float64, deviceRate uint32, deviceChannels uint16) int {
	if seconds < MinSeconds {
		seconds = MinSeconds
	}
	return int(math.Ceil(seconds * float64(deviceRate) * float64(deviceChannels)))
}

// Fifo is the C5 component: exactly one goroutine may call Write (the
// pipeline worker) and exactly one goroutine may call Read (the device
// callback). Capacity is fixed at construction.
//
// head/tail are monotonically increasing total-sample counters rather than
// indices already wrapped modulo capacity; wrapping happens only at the
// point of indexing into buf. This makes available-space/available-data
// arithmetic overflow-free for the lifetime of a realistic session and
// keeps the acquire/release pairing simple: the producer's atomic Store to
// writtenTotal happens-after every buf write it just performed, and the
// consumer's atomic Load of writtenTotal happens-before it reads those same
// buf slots, per the Go memory model's atomic guarantees.
type Fifo struct {
	buf      []float32
	capacity int

	writtenTotal atomic.Uint64
	readTotal    atomic.Uint64
	overruns     atomic.Uint64
}

// New constructs a Fifo with room for capacity float32 samples.
func New(capacity int) *Fifo {
	if capacity < 1 {
		capacity = 1
	}
	return &Fifo{
		buf:      make([]float32, capacity),
		capacity: capacity,
	}
}

func (f *Fifo) Capacity() int { return f.capacity }

// AvailableWrite returns how many samples can currently be written without
// overrunning.
func (f *Fifo) AvailableWrite() int {
	size := int(f.writtenTotal.Load() - f.readTotal.Load())
	return f.capacity - size
}

// AvailableRead returns how many valid samples are currently queued.
func (f *Fifo) AvailableRead() int {
	return int(f.writtenTotal.Load() - f.readTotal.Load())
}

// Overruns returns the cumulative count of samples dropped because Write
// was called with more data than fit.
func (f *Fifo) Overruns() uint64 {
	return f.overruns.Load()
}

// Write copies as many leading samples of src as fit and returns the
// count written; it never blocks and never partially commits a sample.
// Samples beyond available capacity are dropped and counted as an overrun.
func (f *Fifo) Write(src []float32) int {
	written := f.writtenTotal.Load()
	read := f.readTotal.Load()
	avail := f.capacity - int(written-read)
	if avail < 0 {
		avail = 0
	}
	n := len(src)
	if n > avail {
		n = avail
	}
	for i := 0; i < n; i++ {
		f.buf[int(written+uint64(i))%f.capacity] = src[i]
	}
	if n > 0 {
		f.writtenTotal.Store(written + uint64(n))
	}
	if dropped := len(src) - n; dropped > 0 {
		f.overruns.Add(uint64(dropped))
	}
	return n
}

// Read copies up to len(dst) queued samples into dst and returns the count
// read. Fifo does not pad the remainder with silence; the device callback
// caller is responsible for zeroing dst[n:] itself.
func (f *Fifo) Read(dst []float32) int {
	written := f.writtenTotal.Load()
	read := f.readTotal.Load()
	size := int(written - read)
	n := len(dst)
	if n > size {
		n = size
	}
	for i := 0; i < n; i++ {
		dst[i] = f.buf[int(read+uint64(i))%f.capacity]
	}
	if n > 0 {
		f.readTotal.Store(read + uint64(n))
	}
	return n
}

// TotalWritten and TotalRead expose the monotonic counters used to check
// FIFO conservation.
func (f *Fifo) TotalWritten() uint64 { return f.writtenTotal.Load() }
func (f *Fifo) TotalRead() uint64    { return f.readTotal.Load() }
