// Package transport defines what the live session needs from a remote
// conversational endpoint: a connection that accepts PCM frames and a
// callback receiving typed events.
package transport

import (
	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
)

// Conn is an open live session with the remote endpoint.
type Conn interface {
	// ID is the opaque session identifier assigned by the remote.
	ID() string
	// SendAudio transmits one PCM payload encoded as described by
	// ConnectOptions.InputEncodingInfo.
	SendAudio(pcm []byte) error
	// Close ends the session. It is safe to call more than once.
	Close() error
}

type ConnectOptions struct {
	SystemInstruction string
	Voice             string

	InputEncodingInfo  audio.EncodingInfo
	OutputEncodingInfo audio.EncodingInfo

	InputTranscription  bool
	OutputTranscription bool

	// OnEvent receives every incoming event in arrival order. It is called
	// from the transport's read loop and must not block for long.
	OnEvent func(events.Event)
}

type ConnectOption func(*ConnectOptions)

// DefaultConnectOptions returns the formats and flags the live model is
// normally opened with.
func DefaultConnectOptions() ConnectOptions {
	return ConnectOptions{
		InputEncodingInfo:   audio.InputEncodingInfo(),
		OutputEncodingInfo:  audio.OutputEncodingInfo(),
		InputTranscription:  true,
		OutputTranscription: true,
		OnEvent:             func(events.Event) {},
	}
}

func WithSystemInstruction(instruction string) ConnectOption {
	return func(o *ConnectOptions) {
		o.SystemInstruction = instruction
	}
}

func WithVoice(voice string) ConnectOption {
	return func(o *ConnectOptions) {
		o.Voice = voice
	}
}

func WithInputEncodingInfo(encodingInfo audio.EncodingInfo) ConnectOption {
	return func(o *ConnectOptions) {
		o.InputEncodingInfo = encodingInfo
	}
}

func WithOutputEncodingInfo(encodingInfo audio.EncodingInfo) ConnectOption {
	return func(o *ConnectOptions) {
		o.OutputEncodingInfo = encodingInfo
	}
}

// WithTranscription toggles input (user) and output (model) transcription.
func WithTranscription(input, output bool) ConnectOption {
	return func(o *ConnectOptions) {
		o.InputTranscription = input
		o.OutputTranscription = output
	}
}

func WithEventCallback(callback func(events.Event)) ConnectOption {
	return func(o *ConnectOptions) {
		if callback != nil {
			o.OnEvent = callback
		}
	}
}
