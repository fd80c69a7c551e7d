package audio

import (
	"fmt"
	"time"
)

const (
	// InputSampleRate is the capture rate negotiated with the live model.
	InputSampleRate = 16000
	// OutputSampleRate is the rate of the audio the live model responds with.
	OutputSampleRate = 24000
)

// InputEncodingInfo describes captured microphone audio as sent upstream.
func InputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: InputSampleRate, Format: EncodingLinear16, Channels: 1}
}

// OutputEncodingInfo describes response audio as received from the model.
func OutputEncodingInfo() EncodingInfo {
	return EncodingInfo{SampleRate: OutputSampleRate, Format: EncodingLinear16, Channels: 1}
}

type EncodingInfo struct {
	SampleRate int
	Format     encodingFormat
	Channels   int
}

func (e EncodingInfo) IsZero() bool {
	return e.SampleRate == 0 || e.Format.Name() == ""
}

// MIMEType returns the mime type the live protocol uses to tag PCM payloads,
// e.g. "audio/pcm;rate=16000".
func (e EncodingInfo) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", e.SampleRate)
}

func (e EncodingInfo) channels() int {
	if e.Channels <= 0 {
		return 1
	}
	return e.Channels
}

// Duration returns how long byteLen bytes of audio in this encoding play for.
func (e EncodingInfo) Duration(byteLen int) time.Duration {
	frameSize := e.Format.ByteSize() * e.channels()
	if e.SampleRate <= 0 || frameSize <= 0 {
		return 0
	}
	return time.Duration(float64(byteLen/frameSize) / float64(e.SampleRate) * float64(time.Second))
}

// encodingFormat names the sample format of an encoding. The live protocol
// only carries 16-bit little-endian PCM.
type encodingFormat string

const EncodingLinear16 encodingFormat = "linear16"

func (e encodingFormat) Name() string {
	return string(e)
}

func (e encodingFormat) ByteSize() int {
	if e == EncodingLinear16 {
		return 2
	}
	return -1
}
