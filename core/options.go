package live

import (
	"context"

	"github.com/koscakluka/ema-live/core/audio"
	"github.com/koscakluka/ema-live/core/events"
	"github.com/koscakluka/ema-live/core/transport"
)

// Connector opens live sessions with a remote model.
type Connector interface {
	Connect(ctx context.Context, opts ...transport.ConnectOption) (transport.Conn, error)
}

type ManagerOption func(*ManagerOptions)

type ManagerOptions struct {
	systemInstruction string
	voice             string

	onOpen         func(sessionID string)
	onStatus       func(text string)
	onTranscript   func(speaker events.Speaker, text string)
	onSpeaking     func(speaking bool)
	onError        func(message string)
	onTurnComplete func()
	onEvent        func(events.Event)
}

func defaultManagerOptions() ManagerOptions {
	return ManagerOptions{
		systemInstruction: SystemInstruction(""),
		onOpen:            func(string) {},
		onStatus:          func(string) {},
		onTranscript:      func(events.Speaker, string) {},
		onSpeaking:        func(bool) {},
		onError:           func(string) {},
		onTurnComplete:    func() {},
		onEvent:           func(events.Event) {},
	}
}

// WithInventorySummary sets the system instruction from a summary of the
// pantry contents.
func WithInventorySummary(summary string) ManagerOption {
	return func(o *ManagerOptions) {
		o.systemInstruction = SystemInstruction(summary)
	}
}

// WithSystemInstruction replaces the system instruction entirely.
func WithSystemInstruction(instruction string) ManagerOption {
	return func(o *ManagerOptions) {
		o.systemInstruction = instruction
	}
}

func WithVoice(voice string) ManagerOption {
	return func(o *ManagerOptions) {
		o.voice = voice
	}
}

// WithOpenCallback is called with the remote session id once the session is
// listening.
func WithOpenCallback(callback func(sessionID string)) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onOpen = callback
		}
	}
}

func WithStatusCallback(callback func(text string)) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onStatus = callback
		}
	}
}

// WithTranscriptCallback receives the whole running transcript of a speaker
// every time it grows.
func WithTranscriptCallback(callback func(speaker events.Speaker, text string)) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onTranscript = callback
		}
	}
}

func WithSpeakingCallback(callback func(speaking bool)) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onSpeaking = callback
		}
	}
}

// WithErrorCallback receives a message meant for display whenever a session
// fails.
func WithErrorCallback(callback func(message string)) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onError = callback
		}
	}
}

func WithTurnCompleteCallback(callback func()) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onTurnComplete = callback
		}
	}
}

// WithEventCallback taps every event of the current session as it arrives,
// before the manager acts on it. It is called from the transport goroutine.
func WithEventCallback(callback func(events.Event)) ManagerOption {
	return func(o *ManagerOptions) {
		if callback != nil {
			o.onEvent = callback
		}
	}
}

func (o ManagerOptions) connectOptions(input audio.Input, output audio.Output, onEvent func(events.Event)) []transport.ConnectOption {
	opts := []transport.ConnectOption{
		transport.WithSystemInstruction(o.systemInstruction),
		transport.WithInputEncodingInfo(input.EncodingInfo()),
		transport.WithOutputEncodingInfo(output.EncodingInfo()),
		transport.WithTranscription(true, true),
		transport.WithEventCallback(onEvent),
	}
	if o.voice != "" {
		opts = append(opts, transport.WithVoice(o.voice))
	}
	return opts
}
