package audio

import (
	"context"
	"errors"
	"time"
)

// ErrInputUnavailable wraps failures to acquire the capture device, which on
// most hosts means microphone access was refused.
var ErrInputUnavailable = errors.New("audio input unavailable")

// ErrOutputUnavailable wraps failures to open or start the playback device.
var ErrOutputUnavailable = errors.New("audio output unavailable")

// Input is a capture device delivering fixed-size frames.
//
// Frames acquires the device and streams frames until ctx is cancelled, at
// which point the device is released and the channel closed. Implementations
// must never block on a slow consumer; frames that cannot be delivered are
// dropped.
type Input interface {
	EncodingInfo() EncodingInfo
	Frames(ctx context.Context) (<-chan Frame, error)
}

// Output is a playback device with its own timeline.
//
// Now reports the current position of the device timeline and Schedule places
// a buffer to start at a given timeline position. Positions in the past are
// played starting immediately.
type Output interface {
	EncodingInfo() EncodingInfo
	Start() error
	Stop() error
	Now() time.Duration
	Schedule(buffer Buffer, at time.Duration) (Handle, error)
}

// Handle refers to one scheduled buffer.
type Handle interface {
	// Stop cancels the buffer. Stopping a finished buffer is a no-op.
	Stop()
	// Done is closed once the buffer finished playing or was stopped.
	Done() <-chan struct{}
}
