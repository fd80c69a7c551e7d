package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrOddPayload is returned when a PCM16 payload does not hold a whole
// number of samples.
var ErrOddPayload = errors.New("pcm16 payload length is not a multiple of 2")

// Frame is one fixed-size block of captured mono samples in [-1, 1].
type Frame []float32

// Buffer is a decoded, playable block of mono samples.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

// Duration is the playback length of the buffer at its sample rate.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}

// EncodePCM16 converts float samples to 16-bit signed little-endian PCM.
// Each sample becomes round(s*32768) clipped to the int16 range.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	EncodePCM16Into(out, samples)
	return out
}

// EncodePCM16Into writes samples into dst, which must hold 2 bytes per
// sample. It returns the number of bytes written.
func EncodePCM16Into(dst []byte, samples []float32) int {
	n := min(len(samples), len(dst)/2)
	for i := range n {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(quantize(samples[i])))
	}
	return n * 2
}

func quantize(sample float32) int16 {
	v := math.Round(float64(sample) * 32768)
	if v > math.MaxInt16 {
		return math.MaxInt16
	} else if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}

// DecodePCM16 turns a 16-bit signed little-endian mono payload into a
// playable buffer, dividing each sample by 32768.
func DecodePCM16(data []byte, sampleRate int) (Buffer, error) {
	if len(data)%2 != 0 {
		return Buffer{}, fmt.Errorf("failed to decode %d bytes: %w", len(data), ErrOddPayload)
	}

	samples := make([]float32, len(data)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(data[i*2:]))) / 32768.0
	}
	return Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// DecodeFloat32 reads little-endian IEEE-754 float32 samples, the layout
// capture devices deliver in f32 mode.
func DecodeFloat32(data []byte) []float32 {
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples
}
