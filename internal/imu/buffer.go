package imu

// Buffer is a fixed-capacity ring buffer of IMU samples.
// It always holds the last Cap() samples in arrival order; the oldest
// sample is evicted when a push exceeds capacity. Reads are
// non-destructive, so the buffer can be inspected for diagnostics
// without disturbing recognition.
type Buffer struct {
	samples []Sample
	head    int // index of the oldest sample
	size    int
}

// NewBuffer creates a Buffer with the given capacity.
// Capacities below 1 are clamped to 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		samples: make([]Sample, capacity),
	}
}

// Push appends a sample, evicting the oldest one if the buffer is full.
func (b *Buffer) Push(s Sample) {
	tail := (b.head + b.size) % len(b.samples)
	b.samples[tail] = s
	if b.size < len(b.samples) {
		b.size++
	} else {
		// Overwrote the oldest sample
		b.head = (b.head + 1) % len(b.samples)
	}
}

// Latest returns a copy of the last min(n, Len()) samples, oldest first.
func (b *Buffer) Latest(n int) []Sample {
	if n <= 0 || b.size == 0 {
		return nil
	}
	if n > b.size {
		n = b.size
	}

	out := make([]Sample, n)
	start := (b.head + b.size - n) % len(b.samples)
	for i := 0; i < n; i++ {
		out[i] = b.samples[(start+i)%len(b.samples)]
	}
	return out
}

// Len returns the number of samples currently held.
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return len(b.samples)
}

// Clear discards all buffered samples.
func (b *Buffer) Clear() {
	b.head = 0
	b.size = 0
}
