package audio

// DefaultFrameSize is the number of samples per captured frame. At 16 kHz it
// bounds capture latency to roughly a quarter of a second.
const DefaultFrameSize = 4096

// Framer re-blocks device periods of arbitrary length into frames of a fixed
// size. It is not safe for concurrent use; device callbacks are serial.
type Framer struct {
	size    int
	pending []float32
}

func NewFramer(size int) *Framer {
	if size <= 0 {
		size = DefaultFrameSize
	}
	return &Framer{size: size, pending: make([]float32, 0, size)}
}

func (f *Framer) Size() int { return f.size }

// Write appends samples and calls emit for every completed frame. Emitted
// frames are freshly allocated and may be retained by the receiver.
func (f *Framer) Write(samples []float32, emit func(Frame)) {
	for len(samples) > 0 {
		n := min(f.size-len(f.pending), len(samples))
		f.pending = append(f.pending, samples[:n]...)
		samples = samples[n:]

		if len(f.pending) == f.size {
			frame := make(Frame, f.size)
			copy(frame, f.pending)
			f.pending = f.pending[:0]
			emit(frame)
		}
	}
}

// Reset discards a partially filled frame.
func (f *Framer) Reset() {
	f.pending = f.pending[:0]
}
