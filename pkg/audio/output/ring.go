package output

// ringBuffer is a circular buffer of interleaved samples.
// Not synchronized; PCM guards it with its own mutex.
type ringBuffer struct {
	buffer   []int16
	readPos  int
	writePos int
	size     int
	count    int // samples currently buffered
}

func newRingBuffer(capacity int) *ringBuffer {
	return &ringBuffer{
		buffer: make([]int16, capacity),
		size:   capacity,
	}
}

// write appends as many samples as fit and returns how many were taken
func (rb *ringBuffer) write(samples []int16) int {
	n := min(len(samples), rb.size-rb.count)
	for i := 0; i < n; i++ {
		rb.buffer[rb.writePos] = samples[i]
		rb.writePos = (rb.writePos + 1) % rb.size
	}
	rb.count += n
	return n
}

// read moves up to len(samples) samples out of the buffer
func (rb *ringBuffer) read(samples []int16) int {
	n := min(len(samples), rb.count)
	for i := 0; i < n; i++ {
		samples[i] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % rb.size
	}
	rb.count -= n
	return n
}

func (rb *ringBuffer) available() int { return rb.count }
func (rb *ringBuffer) free() int      { return rb.size - rb.count }

func (rb *ringBuffer) reset() {
	rb.readPos = 0
	rb.writePos = 0
	rb.count = 0
}
